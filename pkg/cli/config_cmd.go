package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connection profiles",
	}
	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetProfileCmd(),
		newConfigUseProfileCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			name := activeProfileName(cmd, cfg)
			prof := cfg.Profiles[name]
			if prof == nil {
				prof = &Profile{}
			}

			token := prof.Token
			if !reveal {
				token = maskSecret(token)
			}

			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"profile":    name,
					"host":       prof.Host,
					"token":      token,
					"client_key": prof.ClientKey,
					"output":     prof.Output,
					"profiles":   profileNames(cfg),
				})
			}

			PrintDetail(cmd.OutOrStdout(), map[string]string{
				"profile":    name,
				"host":       prof.Host,
				"token":      token,
				"client-key": prof.ClientKey,
				"output":     prof.Output,
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the token unmasked")
	return cmd
}

func newConfigSetProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Create or update a profile",
		Long: `Create or update the profile selected with --profile (or the current
profile when none is given). Only the flags you pass are changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			name := activeProfileName(cmd, cfg)
			prof := cfg.profile(name)

			changed := false
			if cmd.Flags().Changed("host") {
				host, _ := cmd.Flags().GetString("host")
				if err := validateHostURL(host); err != nil {
					return err
				}
				prof.Host = host
				changed = true
			}
			if cmd.Flags().Changed("token") {
				prof.Token, _ = cmd.Flags().GetString("token")
				changed = true
			}
			if cmd.Flags().Changed("client-key") {
				prof.ClientKey, _ = cmd.Flags().GetString("client-key")
				changed = true
			}
			if cmd.Flags().Changed("output") {
				out, _ := cmd.Flags().GetString("output")
				if out != outputTable && out != outputJSON {
					return fmt.Errorf("unknown output format %q, want %s or %s", out, outputTable, outputJSON)
				}
				prof.Output = out
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to set, pass at least one of --host, --token, --client-key, --output")
			}

			if err := saveUserConfig(cfg); err != nil {
				return err
			}
			if !isQuiet(cmd) {
				fmt.Fprintf(cmd.OutOrStdout(), "Profile %q updated\n", name)
			}
			return nil
		},
	}

	// Local flags shadow the persistent connection flags on purpose: here
	// they are values to store, not the connection to use.
	cmd.Flags().String("host", "", "gateway base URL to store")
	cmd.Flags().String("token", "", "bearer token to store")
	cmd.Flags().String("client-key", "", "client key to store")
	cmd.Flags().String("output", "", "default output format to store")
	return cmd
}

func newConfigUseProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("unknown profile %q, create it with config set-profile -p %s", name, name)
			}
			cfg.CurrentProfile = name
			if err := saveUserConfig(cfg); err != nil {
				return err
			}
			if !isQuiet(cmd) {
				fmt.Fprintf(cmd.OutOrStdout(), "Current profile is now %q\n", name)
			}
			return nil
		},
	}
}

func profileNames(cfg *UserConfig) []string {
	names := make([]string, 0, len(cfg.Profiles))
	for n := range cfg.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// maskSecret hides a token for display. Short values mask entirely so the
// length leaks nothing; longer ones keep the edges for recognition.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
