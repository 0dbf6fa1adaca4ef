package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/model"
)

var (
	leadsTier     string
	leadsMinScore int
	leadsLimit    int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unexported leads for a tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if leadsTier != model.ExportTierBasic && leadsTier != model.ExportTierPro {
			return eris.Errorf("invalid tier %q: must be basic or pro", leadsTier)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		minScore := leadsMinScore
		if minScore <= 0 {
			minScore = cfg.Scoring.MinScoreToInclude
		}

		leads, err := st.UnexportedLeads(ctx, minScore, leadsTier, leadsLimit)
		if err != nil {
			return eris.Wrap(err, "load unexported leads")
		}
		return printJSON(leads)
	},
}

var leadsUnverifiedCmd = &cobra.Command{
	Use:   "unverified",
	Short: "List the manual-review queue of unverified leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.UnverifiedLeads(ctx, leadsLimit)
		if err != nil {
			return eris.Wrap(err, "load unverified leads")
		}
		return printJSON(leads)
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <place-id>",
	Short: "Show one lead by place ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load lead")
		}
		if lead == nil {
			return eris.Errorf("no lead with place_id %s", args[0])
		}
		return printJSON(lead)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsTier, "tier", model.ExportTierBasic, "subscriber tier: basic or pro")
	leadsListCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "minimum score to include (0 uses scoring.min_score_to_include)")
	leadsListCmd.Flags().IntVar(&leadsLimit, "limit", 0, "maximum leads to list (0 uses the store default)")
	leadsUnverifiedCmd.Flags().IntVar(&leadsLimit, "limit", 0, "maximum leads to list (0 uses the store default)")

	leadsCmd.AddCommand(leadsListCmd, leadsUnverifiedCmd, leadsShowCmd)
	rootCmd.AddCommand(leadsCmd)
}
