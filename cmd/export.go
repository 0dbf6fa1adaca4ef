package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

var (
	exportTier     string
	exportFormat   string
	exportOut      string
	exportMinScore int
	exportLimit    int
	exportMark     bool
)

var exportHeader = []string{
	"name", "website", "address", "phone", "city", "category",
	"review_count", "score", "lead_tier", "reasons", "first_seen",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export unexported leads for a subscriber tier",
	Long:  "Writes the current batch of unexported leads to CSV or XLSX. Basic exports exclude leads under an active pro exclusivity window. Use --mark to record the batch as delivered.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if exportTier != model.ExportTierBasic && exportTier != model.ExportTierPro {
			return eris.Errorf("invalid tier %q: must be basic or pro", exportTier)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		minScore := exportMinScore
		if minScore <= 0 {
			minScore = cfg.Scoring.MinScoreToInclude
		}

		leads, err := st.UnexportedLeads(ctx, minScore, exportTier, exportLimit)
		if err != nil {
			return eris.Wrap(err, "load unexported leads")
		}
		if len(leads) == 0 {
			fmt.Println("no leads to export")
			return nil
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("leads_%s_%s.%s", exportTier, time.Now().Format("2006-01-02"), exportFormat)
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return eris.Wrap(err, "create export dir")
			}
		}

		switch exportFormat {
		case "csv":
			err = writeCSV(out, leads)
		case "xlsx":
			err = writeXLSX(out, leads)
		default:
			return eris.Errorf("invalid format %q: must be csv or xlsx", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", out),
			zap.String("tier", exportTier),
			zap.Int("leads", len(leads)),
		)

		if exportMark {
			if err := markDelivered(ctx, st, leads, exportTier, out); err != nil {
				return err
			}
		}

		fmt.Printf("exported %d leads to %s\n", len(leads), out)
		return nil
	},
}

// markDelivered takes the batch out of the tier's export queue and
// records it in export history. Manual exports are not tied to a
// pipeline run, so the history row carries no run id.
func markDelivered(ctx context.Context, st store.Store, leads []model.Lead, tier, path string) error {
	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.PlaceID
	}
	if err := st.MarkExported(ctx, ids, tier); err != nil {
		return eris.Wrap(err, "mark exported")
	}
	rec := store.Export{
		LeadCount:  len(leads),
		CSVPath:    path,
		SentAt:     time.Now().UTC(),
		Tier:       tier,
		ExportType: "manual",
	}
	return eris.Wrap(st.RecordExport(ctx, rec), "record export")
}

func leadRow(l model.Lead) []string {
	return []string{
		l.Name,
		l.Website,
		l.Address,
		l.Phone,
		l.City,
		l.Category,
		reviewCountCell(l.ReviewCount),
		strconv.Itoa(l.Score),
		l.Tier,
		strings.Join(l.Reasons, ";"),
		l.FirstSeen.Format(time.RFC3339),
	}
}

func reviewCountCell(n int) string {
	if n < 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func writeCSV(path string, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, l := range leads {
		if err := w.Write(leadRow(l)); err != nil {
			return eris.Wrapf(err, "write csv row for %s", l.PlaceID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func writeXLSX(path string, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportHeader {
		header.AddCell().SetString(col)
	}
	for _, l := range leads {
		row := sheet.AddRow()
		for _, cell := range leadRow(l) {
			row.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(f.Save(path), "save xlsx")
}

func init() {
	exportCmd.Flags().StringVar(&exportTier, "tier", model.ExportTierBasic, "subscriber tier: basic or pro")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default leads_<tier>_<date>.<format>)")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "minimum score to include (0 uses scoring.min_score_to_include)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum leads per export (0 uses the store default)")
	exportCmd.Flags().BoolVar(&exportMark, "mark", false, "record the batch as delivered for this tier")
	rootCmd.AddCommand(exportCmd)
}
