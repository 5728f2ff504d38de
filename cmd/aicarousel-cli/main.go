// Package main provides the aicarousel-cli admin tool: API key management,
// provider enable/priority settings, and models config editing.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	aicarousel "github.com/aicarousel/aicarousel"
	"github.com/aicarousel/aicarousel/internal/modelcfg"
	"github.com/aicarousel/aicarousel/internal/store"
	"github.com/aicarousel/aicarousel/internal/version"
	"github.com/aicarousel/aicarousel/providers"
	"github.com/spf13/cobra"
)

var (
	flagDBPath      string
	flagDatabaseURL string
	flagModelsPath  string
)

func openStore() (*store.Store, error) {
	if flagDatabaseURL != "" {
		return store.OpenPostgres(flagDatabaseURL)
	}
	return store.Open(flagDBPath)
}

func openModels() *modelcfg.Store {
	return modelcfg.NewStore(flagModelsPath)
}

func main() {
	if err := aicarousel.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "aicarousel-cli",
		Short:         "Manage the aicarousel gateway: API keys, providers, and models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDBPath, "db", "aicarousel.db", "SQLite database file")
	root.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres DSN (overrides --db)")
	root.PersistentFlags().StringVar(&flagModelsPath, "models", "models.json", "models config file")

	root.AddCommand(keysCmd(), providersCmd(), modelsCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Manage caller API keys"}

	var keyName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Mint a new API key (plaintext is printed once)",
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			plaintext, rec, err := s.CreateKey(keyName)
			if err != nil {
				return err
			}
			fmt.Printf("Created key %s\n", rec.ID)
			fmt.Printf("  %s\n", plaintext)
			fmt.Println("Store this key now; it cannot be recovered later.")
			return nil
		},
	}
	create.Flags().StringVar(&keyName, "name", "", "human-readable label")

	list := &cobra.Command{
		Use:   "list",
		Short: "List key records (newest first)",
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			keys, err := s.ListKeys()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Println("No keys.")
				return nil
			}
			for _, k := range keys {
				status := "active"
				if !k.IsActive {
					status = "revoked"
				}
				name := k.Name
				if name == "" {
					name = "-"
				}
				lastUsed := "never"
				if k.LastUsedAt != nil {
					lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("%s  %s  %-8s  name=%s  uses=%d  last=%s\n",
					k.ID, k.KeyPrefix, status, name, k.UsageCount, lastUsed)
			}
			return nil
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Deactivate a key without deleting its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if err := s.RevokeKey(args[0]); err != nil {
				return err
			}
			fmt.Printf("Revoked %s\n", args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a key record entirely",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if err := s.DeleteKey(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, revoke, del)
	return cmd
}

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "providers", Short: "Manage provider enable flags and priorities"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show known providers with their settings and key status",
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			settings, err := s.ListProviderSettings()
			if err != nil {
				return err
			}
			byKey := make(map[string]store.ProviderSetting, len(settings))
			for _, ps := range settings {
				byKey[ps.ProviderKey] = ps
			}

			for _, d := range providers.Known() {
				enabled := "enabled"
				priority := "-"
				if ps, ok := byKey[d.Key]; ok {
					if !ps.IsEnabled {
						enabled = "disabled"
					}
					priority = strconv.Itoa(ps.Priority)
				}
				keyStatus := "no key"
				if strings.TrimSpace(os.Getenv(d.APIKeyEnv)) != "" {
					keyStatus = "key set"
				}
				fmt.Printf("%-12s %-16s %-8s priority=%-3s %s (%s)\n",
					d.Key, d.Name, enabled, priority, keyStatus, d.APIKeyEnv)
			}
			return nil
		},
	}

	setEnabled := func(use, short string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <provider>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if _, ok := providers.Lookup(args[0]); !ok {
					return fmt.Errorf("unknown provider: %s", args[0])
				}
				s, err := openStore()
				if err != nil {
					return err
				}
				defer func() { _ = s.Close() }()
				if err := s.SetProviderEnabled(args[0], enabled); err != nil {
					return err
				}
				fmt.Printf("%s: enabled=%v\n", args[0], enabled)
				return nil
			},
		}
	}

	priority := &cobra.Command{
		Use:   "priority <provider> <n>",
		Short: "Set a provider's dispatch priority (lower sorts first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if _, ok := providers.Lookup(args[0]); !ok {
				return fmt.Errorf("unknown provider: %s", args[0])
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("priority must be an integer: %s", args[1])
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if err := s.SetProviderPriority(args[0], n); err != nil {
				return err
			}
			fmt.Printf("%s: priority=%d\n", args[0], n)
			return nil
		},
	}

	cmd.AddCommand(list,
		setEnabled("enable", "Enable a provider", true),
		setEnabled("disable", "Disable a provider", false),
		priority)
	return cmd
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "models", Short: "Edit the per-provider models config"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show each provider's models, default, and fallback flag",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := openModels().Read()
			if err != nil {
				return err
			}
			for key, pm := range cfg {
				fallback := "fallback off"
				if pm.EnableFallback {
					fallback = "fallback on"
				}
				fmt.Printf("%s (%s)\n", key, fallback)
				for _, m := range pm.Models {
					marker := " "
					if m == pm.Default {
						marker = "*"
					}
					fmt.Printf("  %s %s\n", marker, m)
				}
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <provider> <model>",
		Short: "Append a model to a provider's list",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return openModels().AddModel(args[0], args[1])
		},
	}

	remove := &cobra.Command{
		Use:   "remove <provider> <model>",
		Short: "Remove a model (cannot remove the default or sole model)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return openModels().RemoveModel(args[0], args[1])
		},
	}

	setDefault := &cobra.Command{
		Use:   "set-default <provider> <model>",
		Short: "Set the provider's default model",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return openModels().SetDefault(args[0], args[1])
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle-fallback <provider> [on|off]",
		Short: "Flip or set the provider's model fallback flag",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			var desired *bool
			if len(args) == 2 {
				switch args[1] {
				case "on":
					v := true
					desired = &v
				case "off":
					v := false
					desired = &v
				default:
					return fmt.Errorf("expected on or off, got %s", args[1])
				}
			}
			now, err := openModels().ToggleFallback(args[0], desired)
			if err != nil {
				return err
			}
			fmt.Printf("%s: enableFallback=%v\n", args[0], now)
			return nil
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <provider> <model>...",
		Short: "Replace the model order (must be a permutation of the current list)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return openModels().Reorder(args[0], args[1:])
		},
	}

	rename := &cobra.Command{
		Use:   "rename <provider> <old> <new>",
		Short: "Rename a model in place, updating the default if it matched",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return openModels().Rename(args[0], args[1], args[2])
		},
	}

	cmd.AddCommand(list, add, remove, setDefault, toggle, reorder, rename)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("aicarousel-cli %s\n", version.String())
		},
	}
}
