// Package cli implements scout, the terminal client for the query gateway.
// It wraps the /v1 surface: submitting ad-hoc SQL for validation, executing
// approved queries, and reading the audit trail. Connection settings resolve
// in order: command-line flag, SCOUT_* environment variable, the active
// profile in ~/.scout/config.yaml, then the built-in default.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	defaultHost = "http://localhost:8080"

	envHost      = "SCOUT_HOST"
	envToken     = "SCOUT_TOKEN"
	envClientKey = "SCOUT_CLIENT_KEY"
	envOutput    = "SCOUT_OUTPUT"
)

// Execute runs the command tree and returns the process exit code. Errors
// print to stderr, as JSON when the output format is json so scripted
// callers can parse failures the same way as successes.
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if getOutputFormat(cmd) == outputJSON {
			obj := map[string]interface{}{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				obj["http_status"] = apiErr.HTTPStatus
				if apiErr.Code != 0 {
					obj["code"] = apiErr.Code
				}
				if apiErr.RetryAfterSeconds > 0 {
					obj["retry_after_seconds"] = apiErr.RetryAfterSeconds
				}
			}
			_ = PrintJSON(os.Stderr, obj)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Client for the Scout query gateway",
		Long: `scout submits ad-hoc SQL to the query gateway, executes approved
queries, and inspects the audit trail.

Connection settings come from flags, SCOUT_* environment variables, or the
active profile in ~/.scout/config.yaml, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if isCompletionCommand(cmd) {
				return nil
			}
			if err := resolveConnection(cmd); err != nil {
				return err
			}
			if needsConnection(cmd) {
				return validateConnection(cmd)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("host", "", "gateway base URL (default "+defaultHost+")")
	flags.String("token", "", "bearer token for the authenticated surface")
	flags.String("client-key", "", "client key sent as X-Client-Id for rate accounting")
	flags.StringP("output", "o", "", "output format: table or json")
	flags.StringP("profile", "p", "", "named profile from ~/.scout/config.yaml")
	flags.BoolP("quiet", "q", false, "suppress confirmation messages")

	cmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newAuthCmd(),
		newCapabilitiesCmd(),
		newTemplatesCmd(),
		newSubmitCmd(),
		newExecuteCmd(),
		newAuditCmd(),
		newCompletionCmd(),
	)
	return cmd
}

// resolveConnection fills every unset persistent flag from the environment,
// the active profile, and finally the built-in default, so commands read
// flags only. A --profile naming an unknown profile is not an error here:
// config set-profile creates profiles through the same path.
func resolveConnection(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()

	cfg, err := loadUserConfig()
	if err != nil {
		return err
	}
	profileName, _ := flags.GetString("profile")
	if profileName == "" {
		profileName = cfg.CurrentProfile
	}
	prof := cfg.Profiles[profileName]
	if prof == nil {
		prof = &Profile{}
	}

	if err := fillFlag(flags, "host", envHost, prof.Host, defaultHost); err != nil {
		return err
	}
	if err := fillFlag(flags, "token", envToken, prof.Token, ""); err != nil {
		return err
	}
	if err := fillFlag(flags, "client-key", envClientKey, prof.ClientKey, ""); err != nil {
		return err
	}
	return fillFlag(flags, "output", envOutput, prof.Output, outputTable)
}

// fillFlag writes the first non-empty value of environment variable, profile
// setting, and default into a flag the user did not pass explicitly.
func fillFlag(flags *pflag.FlagSet, name, envName, profileVal, def string) error {
	if flags.Changed(name) {
		return nil
	}
	val := os.Getenv(envName)
	if val == "" {
		val = profileVal
	}
	if val == "" {
		val = def
	}
	if val == "" {
		return nil
	}
	return flags.Set(name, val)
}

func validateConnection(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	host, _ := flags.GetString("host")
	if err := validateHostURL(host); err != nil {
		return err
	}
	out, _ := flags.GetString("output")
	if out != outputTable && out != outputJSON {
		return fmt.Errorf("unknown output format %q, want %s or %s", out, outputTable, outputJSON)
	}
	return nil
}

// needsConnection reports whether the command talks to the gateway. Local
// commands skip host validation so a broken profile can still be repaired
// with config set-profile.
func needsConnection(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "auth", "version", "completion", "help":
			return false
		}
	}
	return true
}

func isCompletionCommand(cmd *cobra.Command) bool {
	return cmd.Name() == cobra.ShellCompRequestCmd || cmd.Name() == cobra.ShellCompNoDescRequestCmd
}

// clientFromCmd builds a Client from the resolved persistent flags.
func clientFromCmd(cmd *cobra.Command) *Client {
	flags := cmd.Root().PersistentFlags()
	host, _ := flags.GetString("host")
	token, _ := flags.GetString("token")
	clientKey, _ := flags.GetString("client-key")
	return NewClient(host, token, clientKey)
}

// getOutputFormat reads the resolved output format, defaulting to table for
// local commands that skip resolution.
func getOutputFormat(cmd *cobra.Command) string {
	f := cmd.Root().PersistentFlags().Lookup("output")
	if f == nil || f.Value.String() == "" {
		return outputTable
	}
	return f.Value.String()
}

func isQuiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

// activeProfileName resolves which profile a writing command targets:
// the explicit --profile flag, else the config file's current profile.
func activeProfileName(cmd *cobra.Command, cfg *UserConfig) string {
	name, _ := cmd.Root().PersistentFlags().GetString("profile")
	if name == "" {
		name = cfg.CurrentProfile
	}
	if name == "" {
		name = defaultProfile
	}
	return name
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate a shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}
}
