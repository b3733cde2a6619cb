package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/correlate"
	"github.com/northquay/surveil-cli/internal/ingest"
	"github.com/northquay/surveil-cli/internal/pipeline"
	"github.com/northquay/surveil-cli/internal/report"
	"github.com/northquay/surveil-cli/internal/store"
	anthropicpkg "github.com/northquay/surveil-cli/pkg/anthropic"
)

var runDateFlag string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the surveillance batch for a trade date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runDate, err := ingest.ParseRunDate(runDateFlag)
		if err != nil {
			return eris.Wrapf(err, "invalid --date %q, want DDMMYYYY", runDateFlag)
		}

		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, runDateFlag)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		// Ingest. A missing or malformed source aborts the whole run.
		orders, err := ingest.LoadOrders(ctx, cfg.Sources.OrdersDir, cfg.Sources.DealerPrefix, runDate)
		if err != nil {
			return failRun(cmd, st, run.ID, err)
		}
		registry, err := ingest.LoadClientRegistry(cfg.Sources.UCCFile)
		if err != nil {
			return failRun(cmd, st, run.ID, err)
		}
		metas, err := ingest.LoadCallMeta(cfg.Sources.CallInfoFile, registry, runDate)
		if err != nil {
			return failRun(cmd, st, run.ID, err)
		}
		transcripts := ingest.LoadTranscripts(cfg.Sources.TranscriptsDir)
		comms := ingest.BuildCallComms(metas, transcripts)

		emails, err := ingest.LoadEmails(cfg.Sources.EmailFile)
		if err != nil {
			return failRun(cmd, st, run.ID, err)
		}
		comms = append(comms, emails...)

		zap.L().Info("sources loaded",
			zap.String("run_date", runDateFlag),
			zap.Int("orders", len(orders)),
			zap.Int("calls", len(metas)),
			zap.Int("emails", len(emails)),
		)

		// Classify and extract.
		p := pipeline.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic, cfg.Pipeline)
		classified, failures, usage := p.Process(ctx, comms)
		usage.LogCost(cfg.Anthropic.ClassifierModel, "batch")

		// Correlate against the order snapshot.
		matches := correlate.Match(classified, orders, correlate.Options{
			Tolerance: time.Duration(cfg.Match.ToleranceMinutes) * time.Minute,
			HighBand:  time.Duration(cfg.Match.HighBandMinutes) * time.Minute,
		})

		// Aggregate and write outputs.
		rows := report.Aggregate(classified, matches, orders, metas)
		summary := report.Summarize(runDate, classified, matches, len(failures))

		if err := os.MkdirAll(cfg.Report.OutputDir, 0o755); err != nil {
			return failRun(cmd, st, run.ID, eris.Wrap(err, "report: create output dir"))
		}
		workbookPath := filepath.Join(cfg.Report.OutputDir, fmt.Sprintf("resolved_%s.xlsx", runDateFlag))
		if err := report.WriteWorkbook(workbookPath, rows, summary); err != nil {
			return failRun(cmd, st, run.ID, err)
		}

		artifact := report.BuildArtifact(summary, classified, matches, failures)
		artifactPath := filepath.Join(cfg.Report.OutputDir, fmt.Sprintf("run_%s.json", runDateFlag))
		if err := artifact.WriteFile(artifactPath); err != nil {
			return failRun(cmd, st, run.ID, err)
		}
		artifactJSON, err := artifact.JSON()
		if err != nil {
			return failRun(cmd, st, run.ID, err)
		}

		if err := st.CompleteRun(ctx, run.ID, summary, artifactJSON); err != nil {
			return eris.Wrap(err, "complete run")
		}

		fmt.Printf("run %s complete: processed=%d matched=%d instructions=%d failed=%d\n",
			runDateFlag, summary.Processed, summary.Matched, summary.Instructed, summary.Failed)
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  failed %s (%s stage): %s\n", f.CommID, f.Stage, f.Reason)
		}
		fmt.Printf("report: %s\nartifact: %s\n", workbookPath, artifactPath)
		return nil
	},
}

// failRun records the abort reason on the run row before surfacing the error.
func failRun(cmd *cobra.Command, st *store.SQLiteStore, runID string, cause error) error {
	if err := st.FailRun(cmd.Context(), runID, cause.Error()); err != nil {
		zap.L().Error("mark run failed", zap.String("run_id", runID), zap.Error(err))
	}
	return cause
}

func init() {
	runCmd.Flags().StringVar(&runDateFlag, "date", "", "trade date in DDMMYYYY form (required)")
	_ = runCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(runCmd)
}
