package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Grant-Gate/grantgate/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter grantgate.yaml to the current directory.

The generated file seeds one agent, one API key (for the key
"dev-api-key"), one tool, and a business-hours policy. Edit it and
replace the signing secret and API key hash before real use.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing grantgate.yaml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	const path = "grantgate.yaml"

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(starterConfig())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	header := []byte("# Grant Gate configuration.\n" +
		"# Replace signing.secret and the seeded API key hash before real use.\n" +
		"# Generate key hashes with: grantgate hash-key <raw-key>\n\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// starterConfig is the seeded example written by "grantgate init".
func starterConfig() config.GateConfig {
	return config.GateConfig{
		Server: config.ServerConfig{
			LogLevel:    "info",
			MetricsAddr: "127.0.0.1:9102",
		},
		Signing: config.SigningConfig{
			Secret:     "change-me",
			Issuer:     "grantgate",
			DefaultTTL: "15m",
		},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Limit:   100,
			Window:  "1m",
		},
		Audit: config.AuditConfig{
			Output: "stdout",
		},
		Auth: config.AuthConfig{
			Agents: []config.AgentConfig{
				{ID: "dev-agent", Name: "Development Agent", Roles: []string{"user"}},
			},
			APIKeys: []config.APIKeyConfig{
				// SHA256 of "dev-api-key"
				{
					KeyHash: "sha256:6e1e4e1b8f8b36d08901cdb51b97841dfe20f5efd2fd2fd00768971408c46274",
					AgentID: "dev-agent",
				},
			},
		},
		Tools: []config.ToolConfig{
			{
				ID:       "notebook",
				Name:     "Notebook",
				Scopes:   []string{"read", "write"},
				Tags:     []string{"internal"},
				Policies: []string{"business-hours"},
			},
		},
		Policies: []config.PolicyConfig{
			{
				ID:       "business-hours",
				Name:     "Business Hours",
				Priority: 10,
				Roles:    []string{"user"},
				Scopes:   []string{"read"},
				Time: &config.TimeConfig{
					Days:  []int{0, 1, 2, 3, 4},
					Hours: []config.HourRangeConfig{{Start: 9, End: 17}},
				},
				Limits: &config.LimitsConfig{MaxCallsPerMinute: 30},
			},
		},
		Cleanup: config.CleanupConfig{Interval: "1m"},
	}
}
