package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Grant-Gate/grantgate/internal/service"
)

var (
	grantAgentID string
	grantAPIKey  string
	grantScopes  []string
)

var grantCmd = &cobra.Command{
	Use:   "grant [tool-id]",
	Short: "Request access for an agent (one-shot)",
	Long: `Run a single access request through the trust core and print the
decision as JSON. When access is granted, the output includes the signed
credential token.

The requesting agent is named with --agent (a seeded agent ID) or
authenticated with --api-key.

Examples:
  grantgate grant notebook --agent dev-agent
  grantgate grant notebook --api-key "$MY_API_KEY" --scope read --scope write`,
	Args: cobra.ExactArgs(1),
	RunE: runGrant,
}

func init() {
	grantCmd.Flags().StringVar(&grantAgentID, "agent", "", "seeded agent ID to request as")
	grantCmd.Flags().StringVar(&grantAPIKey, "api-key", "", "raw API key to authenticate with")
	grantCmd.Flags().StringArrayVar(&grantScopes, "scope", nil, "requested scope (repeatable; empty requests the decision's scopes)")
	rootCmd.AddCommand(grantCmd)
}

// grantOutput is the JSON shape printed for one request.
type grantOutput struct {
	Granted         bool     `json:"granted"`
	Reason          string   `json:"reason"`
	Scopes          []string `json:"scopes,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	CredentialID    string   `json:"credential_id,omitempty"`
	Token           string   `json:"token,omitempty"`
	ExpiresAt       string   `json:"expires_at,omitempty"`
}

func runGrant(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWithFlags()
	if err != nil {
		return err
	}
	if grantAgentID == "" && grantAPIKey == "" {
		return fmt.Errorf("one of --agent or --api-key is required")
	}

	logger := newLogger(cfg)

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := c.access.RequestAccess(ctx, service.AccessRequest{
		APIKey:  grantAPIKey,
		AgentID: grantAgentID,
		ToolID:  args[0],
		Scopes:  grantScopes,
	})
	if err != nil {
		return err
	}

	out := grantOutput{
		Granted:         result.Decision.Granted,
		Reason:          result.Decision.Reason,
		Scopes:          result.Decision.Scopes,
		DurationMinutes: result.Decision.DurationMinutes,
	}
	if result.Credential != nil {
		out.CredentialID = result.Credential.ID
		out.Token = result.Credential.Token
		out.ExpiresAt = result.Credential.ExpiresAt.Format(time.RFC3339)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
