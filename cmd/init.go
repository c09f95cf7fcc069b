package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/termwave/termwave/internal/config"
	"github.com/termwave/termwave/internal/provider"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up termwave: choose a default provider, enter its API key, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			return runInit(path, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// noKeyProviders run without credentials.
var noKeyProviders = map[string]bool{"mock": true, "eliza": true}

func runInit(path string, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "Welcome to the termwave configuration wizard!")
	fmt.Fprintln(out)

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config file already exists at %s\n", path)
		fmt.Fprint(out, "Update it? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	} else if err := config.WriteDefaults(path); err != nil {
		return fmt.Errorf("write defaults: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	// Provider selection
	defs := config.LoadProviderDefaults(path)
	providers := provider.DefaultRegistry(config.Endpoints(defs)).Names()
	fmt.Fprintln(out, "Available providers:")
	for i, p := range providers {
		fmt.Fprintf(out, "  %d. %s\n", i+1, p)
	}
	fmt.Fprintf(out, "\nSelect provider (1-%d) [%s]: ", len(providers), cfg.DefaultProvider)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	name := cfg.DefaultProvider
	if input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(providers) {
			return fmt.Errorf("invalid selection %q", input)
		}
		name = providers[n-1]
	}
	fmt.Fprintf(out, "Selected: %s\n\n", name)

	// API key
	options := map[string]any{}
	if !noKeyProviders[name] && !defs[name].KeyOptional {
		fmt.Fprintf(out, "Enter API key for %s (leave empty to use the environment): ", name)
		apiKey, _ := reader.ReadString('\n')
		if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
			options["api_key"] = apiKey
		}
	}

	if err := cfg.SaveProvider(name, options); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConfig saved to %s\n", path)
	fmt.Fprintln(out, "You can now run: termwave")
	return nil
}
