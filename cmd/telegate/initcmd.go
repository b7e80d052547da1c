package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// initCmd walks through a minimal working configuration and writes it
// to disk. Everything it asks for can also be edited in the YAML later.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a telegate.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")

			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists, move it aside first", out)
			}

			var (
				appID      string
				botToken   string
				webhookURL string
				bind       = "127.0.0.1:8080"
				telemetry  bool
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("App ID").
						Description("Short identifier for this bot, used in webhook paths and cookies.").
						Placeholder("mybot").
						Validate(validateAppID).
						Value(&appID),
					huh.NewInput().
						Title("Bot token").
						Description("From @BotFather. Stored in the config, keep the file private.").
						EchoMode(huh.EchoModePassword).
						Validate(validateRequired("bot token")).
						Value(&botToken),
					huh.NewInput().
						Title("Webhook URL").
						Description("Public HTTPS URL Telegram will deliver updates to.").
						Placeholder("https://example.com/telegram/webhook/mybot").
						Validate(validateWebhookURL).
						Value(&webhookURL),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("HTTP bind address").
						Value(&bind),
					huh.NewConfirm().
						Title("Enable OpenTelemetry tracing?").
						Value(&telemetry),
				),
			)

			if err := form.Run(); err != nil {
				return err
			}

			secret, err := randomSecret()
			if err != nil {
				return err
			}

			cfg := renderConfig(appID, botToken, webhookURL, bind, secret, telemetry)
			if err := os.WriteFile(out, []byte(cfg), 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", out)
			fmt.Println("Next: telegate start --config", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "telegate.yaml", "Where to write the configuration")
	return cmd
}

func validateAppID(s string) error {
	if s == "" {
		return fmt.Errorf("app id is required")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return fmt.Errorf("use lowercase letters, digits, and dashes")
		}
	}
	return nil
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateWebhookURL(s string) error {
	if !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("Telegram requires an https:// webhook URL")
	}
	return nil
}

// randomSecret returns 32 hex-encoded random bytes for the internal
// secret that seeds webhook token derivation and cookie signing.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func renderConfig(appID, botToken, webhookURL, bind, secret string, telemetry bool) string {
	var b strings.Builder
	b.WriteString("version: \"1\"\n\n")
	b.WriteString("security:\n")
	fmt.Fprintf(&b, "  internal_secret: %q\n\n", secret)
	b.WriteString("modules:\n")
	b.WriteString("  store.sqlite: {}\n\n")
	b.WriteString("  bot.telegram:\n")
	b.WriteString("    apps:\n")
	fmt.Fprintf(&b, "      %s:\n", appID)
	fmt.Fprintf(&b, "        token: %q\n", botToken)
	fmt.Fprintf(&b, "        webhook_url: %q\n\n", webhookURL)
	b.WriteString("  gateway.http:\n")
	fmt.Fprintf(&b, "    bind: %q\n", bind)
	if telemetry {
		b.WriteString("\n  telemetry.otel:\n")
		b.WriteString("    endpoint: \"localhost:4318\"\n")
		b.WriteString("    insecure: true\n")
	}
	return b.String()
}
