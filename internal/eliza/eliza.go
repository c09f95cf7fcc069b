// Package eliza implements Weizenbaum's keyword/decomposition/reassembly
// conversation engine driven by a YAML script.
package eliza

import (
	_ "embed"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed doctor.yaml
var doctorYAML []byte

// Script is the parsed form of a script file.
type Script struct {
	Initials []string            `yaml:"initials"`
	Finals   []string            `yaml:"finals"`
	Quits    []string            `yaml:"quits"`
	Pre      map[string]string   `yaml:"pre"`
	Post     map[string]string   `yaml:"post"`
	Synonyms map[string][]string `yaml:"synonyms"`
	Keys     []Key               `yaml:"keys"`
}

// Key is a keyword with its rank and decomposition rules.
type Key struct {
	Word   string   `yaml:"word"`
	Weight int      `yaml:"weight"`
	Decomp []Decomp `yaml:"decomp"`
}

// Decomp is one decomposition pattern and the reassemblies tried in turn
// when it matches. A reassembly of the form "goto <key>" delegates to
// another key. Save marks replies that are stored for later instead of
// being returned.
type Decomp struct {
	Pattern  string   `yaml:"pattern"`
	Save     bool     `yaml:"save"`
	Reassemb []string `yaml:"reassemb"`
}

// fallbackKey is the key used when no keyword of the input matches.
const fallbackKey = "xnone"

type decomp struct {
	parts    []string
	save     bool
	reassemb [][]string
	next     int
}

type key struct {
	word    string
	weight  int
	decomps []*decomp
}

// Engine is a stateful responder. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	initials []string
	finals   []string
	quits    map[string]bool
	pre      map[string][]string
	post     map[string][]string
	synonyms map[string][]string
	keys     map[string]*key
	memory   [][]string
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse eliza script: %w", err)
	}
	return &s, nil
}

// NewDoctor returns an engine running the embedded doctor script. A nil rng
// seeds one from the clock.
func NewDoctor(rng *rand.Rand) (*Engine, error) {
	s, err := ParseScript(doctorYAML)
	if err != nil {
		return nil, err
	}
	return New(s, rng)
}

// New builds an engine from a parsed script.
func New(s *Script, rng *rand.Rand) (*Engine, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(s.Initials) == 0 || len(s.Finals) == 0 {
		return nil, fmt.Errorf("eliza script needs at least one initial and one final line")
	}

	e := &Engine{
		rng:      rng,
		initials: s.Initials,
		finals:   s.Finals,
		quits:    make(map[string]bool),
		pre:      make(map[string][]string),
		post:     make(map[string][]string),
		synonyms: make(map[string][]string),
		keys:     make(map[string]*key),
	}
	for _, q := range s.Quits {
		e.quits[strings.ToLower(q)] = true
	}
	for k, v := range s.Pre {
		e.pre[strings.ToLower(k)] = strings.Fields(v)
	}
	for k, v := range s.Post {
		e.post[strings.ToLower(k)] = strings.Fields(v)
	}
	for root, words := range s.Synonyms {
		all := append([]string{root}, words...)
		for i := range all {
			all[i] = strings.ToLower(all[i])
		}
		e.synonyms[strings.ToLower(root)] = all
	}
	for _, k := range s.Keys {
		ek := &key{word: strings.ToLower(k.Word), weight: k.Weight}
		for _, d := range k.Decomp {
			if len(d.Reassemb) == 0 {
				return nil, fmt.Errorf("key %q: decomposition %q has no reassembly", k.Word, d.Pattern)
			}
			ed := &decomp{parts: strings.Fields(d.Pattern), save: d.Save}
			for _, r := range d.Reassemb {
				ed.reassemb = append(ed.reassemb, strings.Fields(r))
			}
			ek.decomps = append(ek.decomps, ed)
		}
		e.keys[ek.word] = ek
	}
	fb, ok := e.keys[fallbackKey]
	if !ok || len(fb.decomps) == 0 {
		return nil, fmt.Errorf("eliza script needs a %q key", fallbackKey)
	}
	return e, nil
}

// Initial returns an opening line.
func (e *Engine) Initial() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initials[e.rng.Intn(len(e.initials))]
}

// Final returns a closing line.
func (e *Engine) Final() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finals[e.rng.Intn(len(e.finals))]
}

var (
	reDots  = regexp.MustCompile(`\s*\.+\s*`)
	reComma = regexp.MustCompile(`\s*,+\s*`)
	reSemi  = regexp.MustCompile(`\s*;+\s*`)
)

// Respond returns the reply to text. It reports false when text is a quit
// word, signalling the end of the conversation.
func (e *Engine) Respond(text string) (string, bool) {
	if e.quits[strings.ToLower(strings.TrimSpace(text))] {
		return "", false
	}

	text = reDots.ReplaceAllString(text, " . ")
	text = reComma.ReplaceAllString(text, " , ")
	text = reSemi.ReplaceAllString(text, " ; ")

	words := substitute(strings.Fields(text), e.pre)

	e.mu.Lock()
	defer e.mu.Unlock()

	var candidates []*key
	for _, w := range words {
		if k, ok := e.keys[strings.ToLower(w)]; ok {
			candidates = append(candidates, k)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weight > candidates[j].weight
	})

	var out []string
	for _, k := range candidates {
		if out = e.matchKey(words, k, 0); out != nil {
			break
		}
	}
	if out == nil {
		if len(e.memory) > 0 {
			i := e.rng.Intn(len(e.memory))
			out = e.memory[i]
			e.memory = append(e.memory[:i], e.memory[i+1:]...)
		} else {
			out = e.nextReassemb(e.keys[fallbackKey].decomps[0])
		}
	}
	return strings.Join(out, " "), true
}

// maxGoto bounds chains of "goto" reassemblies.
const maxGoto = 8

func (e *Engine) matchKey(words []string, k *key, depth int) []string {
	if depth > maxGoto {
		return nil
	}
	for _, d := range k.decomps {
		results, ok := e.matchDecomp(d.parts, words)
		if !ok {
			continue
		}
		for i, r := range results {
			results[i] = substitute(r, e.post)
		}
		reassemb := e.nextReassemb(d)
		if len(reassemb) == 2 && reassemb[0] == "goto" {
			target, ok := e.keys[strings.ToLower(reassemb[1])]
			if !ok {
				continue
			}
			return e.matchKey(words, target, depth+1)
		}
		out := reassemble(reassemb, results)
		if d.save {
			e.memory = append(e.memory, out)
			continue
		}
		return out
	}
	return nil
}

func (e *Engine) nextReassemb(d *decomp) []string {
	r := d.reassemb[d.next%len(d.reassemb)]
	d.next++
	return r
}

func (e *Engine) matchDecomp(parts, words []string) ([][]string, bool) {
	var results [][]string
	if !e.matchParts(parts, words, &results) {
		return nil, false
	}
	return results, true
}

func (e *Engine) matchParts(parts, words []string, results *[][]string) bool {
	if len(parts) == 0 {
		return len(words) == 0
	}
	if len(words) == 0 && !(len(parts) == 1 && parts[0] == "*") {
		return false
	}

	switch p := parts[0]; {
	case p == "*":
		for i := len(words); i >= 0; i-- {
			*results = append(*results, words[:i])
			if e.matchParts(parts[1:], words[i:], results) {
				return true
			}
			*results = (*results)[:len(*results)-1]
		}
		return false
	case strings.HasPrefix(p, "@"):
		root := strings.ToLower(p[1:])
		syns, ok := e.synonyms[root]
		if !ok || !contains(syns, strings.ToLower(words[0])) {
			return false
		}
		*results = append(*results, words[:1])
		if e.matchParts(parts[1:], words[1:], results) {
			return true
		}
		*results = (*results)[:len(*results)-1]
		return false
	default:
		if !strings.EqualFold(p, words[0]) {
			return false
		}
		return e.matchParts(parts[1:], words[1:], results)
	}
}

var reGroup = regexp.MustCompile(`^\((\d+)\)(.*)$`)

func reassemble(reassemb []string, results [][]string) []string {
	var out []string
	for _, w := range reassemb {
		m := reGroup.FindStringSubmatch(w)
		if m == nil {
			out = append(out, w)
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		if idx < 1 || idx > len(results) {
			continue
		}
		insert := results[idx-1]
		for i, iw := range insert {
			if iw == "," || iw == "." || iw == ";" {
				insert = insert[:i]
				break
			}
		}
		if len(insert) == 0 {
			continue
		}
		insert = append([]string(nil), insert...)
		insert[len(insert)-1] += m[2]
		out = append(out, insert...)
	}
	return out
}

func substitute(words []string, table map[string][]string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if repl, ok := table[strings.ToLower(w)]; ok {
			out = append(out, repl...)
		} else {
			out = append(out, w)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
