package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/spf13/cobra"
)

var tokenProfile bool

// tokenCmd shows which token would be used, never its value
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show the resolved auth token source and claims",
	Long: `Resolve the auth token the way the gateway does (--token, then JWT_TOKEN)
and print its source, fingerprint and unverified claims. The token value is
never printed. With --profile the client-details API is called to show the
company profile the token maps to.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenProfile, "profile", false, "look up the client profile for the token")
}

type tokenReport struct {
	Source      credential.Source     `json:"source"`
	Anonymous   bool                  `json:"anonymous"`
	Fingerprint string                `json:"fingerprint"`
	Claims      *credential.Claims    `json:"claims,omitempty"`
	ClaimsError string                `json:"claims_error,omitempty"`
	Profile     *domain.ClientProfile `json:"profile,omitempty"`
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg := config.FromEnv()
	tok := resolveToken(cfg)

	report := tokenReport{
		Source:      tok.Source,
		Anonymous:   tok.IsAnonymous(),
		Fingerprint: tok.Fingerprint(),
	}
	if !tok.IsAnonymous() {
		claims, err := credential.Inspect(tok.Value, time.Now())
		if err != nil {
			report.ClaimsError = "not a JWT"
		} else {
			report.Claims = &claims
		}
	}
	if tokenProfile {
		if cfg.ClientAPIBase() == "" {
			return fmt.Errorf("--profile needs CLIENT_API_URL")
		}
		p := newProfileResolver(cfg).Profile(ctx, tok)
		report.Profile = &p
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(out, report)
	}

	fmt.Fprintf(out, "source:      %s\n", report.Source)
	fmt.Fprintf(out, "fingerprint: %s\n", report.Fingerprint)
	switch {
	case report.Claims != nil:
		c := report.Claims
		if c.Subject != "" {
			fmt.Fprintf(out, "subject:     %s\n", c.Subject)
		}
		if c.Issuer != "" {
			fmt.Fprintf(out, "issuer:      %s\n", c.Issuer)
		}
		if !c.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "expires:     %s (expired: %t)\n", c.ExpiresAt.Format(time.RFC3339), c.Expired)
		}
	case report.ClaimsError != "":
		fmt.Fprintf(out, "claims:      %s\n", report.ClaimsError)
	}
	if p := report.Profile; p != nil {
		fmt.Fprintf(out, "client:      %s (%s)\n", p.ID, p.Company)
		if len(p.IndustryReports) > 0 {
			fmt.Fprintf(out, "reports:     %s\n", strings.Join(p.IndustryReports, ", "))
		}
	}
	return nil
}
