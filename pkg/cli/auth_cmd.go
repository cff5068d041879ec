package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Obtain and store gateway tokens",
	}
	cmd.AddCommand(
		newAuthTokenCmd(),
		newAuthLoginCmd(),
	)
	return cmd
}

// newAuthTokenCmd mints an HS256 token for development setups where the
// gateway runs with JWT_SECRET instead of an identity provider. The claims
// mirror what the gateway extracts: sub, role, and an optional admin flag.
func newAuthTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		admin   bool
		secret  string
		expires time.Duration
		noSave  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with the shared secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			claims := jwt.MapClaims{
				"sub": subject,
				"iat": now.Unix(),
				"exp": now.Add(expires).Unix(),
			}
			if role != "" {
				claims["role"] = role
			}
			if admin {
				claims["admin"] = true
			}

			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			if !noSave {
				cfg, err := loadUserConfig()
				if err != nil {
					return err
				}
				name := activeProfileName(cmd, cfg)
				cfg.profile(name).Token = signed
				if err := saveUserConfig(cfg); err != nil {
					return err
				}
				if !isQuiet(cmd) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Token saved to profile %q\n", name)
				}
			}

			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"token":      signed,
					"subject":    subject,
					"expires_at": now.Add(expires).UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "sub claim, the identity the audit trail records")
	cmd.Flags().StringVar(&role, "role", "", "role claim (analyst, manager, executive)")
	cmd.Flags().BoolVar(&admin, "admin", false, "set the admin claim")
	cmd.Flags().StringVar(&secret, "secret", "", "shared HS256 secret the gateway was started with")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "print the token without storing it in the profile")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

// newAuthLoginCmd stores a token obtained elsewhere, typically copied from
// an identity provider. Terminal input is read without echo.
func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token in the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readTokenInput(cmd)
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("no token given")
			}

			cfg, err := loadUserConfig()
			if err != nil {
				return err
			}
			name := activeProfileName(cmd, cfg)
			cfg.profile(name).Token = token
			if err := saveUserConfig(cfg); err != nil {
				return err
			}
			if !isQuiet(cmd) {
				fmt.Fprintf(cmd.OutOrStdout(), "Token saved to profile %q\n", name)
			}
			return nil
		},
	}
}

func readTokenInput(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<16))
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
