// cmd/subval/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openbdc/subval/pkg/config"
	"github.com/openbdc/subval/pkg/ingest"
	"github.com/openbdc/subval/pkg/pipeline"
	"github.com/openbdc/subval/pkg/report"
	"github.com/openbdc/subval/pkg/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Missing .env is fine; real deployments use actual environment variables.
	_ = godotenv.Load()

	var (
		company    string
		period     string
		outputDir  string
		skipSmarty bool
		removeDups bool
		noProgress bool
	)

	exitCode := report.ExitReady

	rootCmd := &cobra.Command{
		Use:           "subval",
		Short:         "FCC BDC subscriber file validation",
		Long:          "Validates, corrects and scores broadband subscriber CSV files ahead of FCC BDC submission.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [input.csv]",
		Short: "Validate a subscriber CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runValidate(cmd.Context(), args[0], company, period, outputDir, skipSmarty, removeDups, noProgress)
			exitCode = code
			return err
		},
	}
	validateCmd.Flags().StringVar(&company, "company", "", "company identifier recorded with the run")
	validateCmd.Flags().StringVar(&period, "period", "", "filing period recorded with the run")
	validateCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: alongside the input file)")
	validateCmd.Flags().BoolVar(&skipSmarty, "skip-verification", false, "skip the external address verification stage")
	validateCmd.Flags().BoolVar(&removeDups, "remove-duplicates", false, "remove duplicate customer rows instead of renaming their IDs")
	validateCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(validateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		if exitCode == report.ExitReady {
			exitCode = report.ExitBadInput
		}
	}
	return exitCode
}

func runValidate(ctx context.Context, inputPath, company, period, outputDir string, skipSmarty, removeDups, noProgress bool) (int, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return report.ExitBadInput, fmt.Errorf("configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return report.ExitBadInput, fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	p := pipeline.New(cfg, prometheus.DefaultRegisterer, logger)

	var bar *pb.ProgressBar
	opts := pipeline.Options{SkipVerification: skipSmarty, RemoveDuplicates: removeDups}
	if !noProgress {
		opts.Progress = func(done, total int) {
			if bar == nil {
				bar = pb.StartNew(total)
			}
			bar.SetCurrent(int64(done))
		}
	}

	result, err := p.Run(ctx, inputPath, opts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if errors.Is(err, ingest.ErrHeaderNotFound) {
			return report.ExitBadInput, fmt.Errorf("malformed input: %w", err)
		}
		return report.ExitBadInput, err
	}

	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	writer := report.NewWriter(outputDir, base, logger)
	runReport, err := writer.WriteAll(result.Records, result.Ledger, result.Decision,
		result.Smarty, result.RunID, inputPath, result.Elapsed)
	if err != nil {
		return report.ExitBadInput, fmt.Errorf("writing artifacts: %w", err)
	}

	persistRun(ctx, cfg, result, runReport, company, period, logger)
	printSummary(result, runReport)

	return report.ExitCode(result.Decision), nil
}

// persistRun writes the run to the ledger database when one is configured.
// Persistence failures are logged but never fail the validation run.
func persistRun(ctx context.Context, cfg *config.Config, result *pipeline.Result, runReport *report.RunReport, company, period string, logger *zap.Logger) {
	if cfg.Ledger == nil || !cfg.Ledger.Enabled() {
		return
	}

	st, err := store.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		logger.Error("Ledger database unavailable", zap.Error(err))
		return
	}
	defer st.Close()

	run := store.RunRecord{
		RunID:            result.RunID,
		SourceFile:       runReport.SourceFile,
		Company:          company,
		Period:           period,
		FileStatus:       string(result.Decision.Status),
		Reason:           result.Decision.Reason,
		TotalSubscribers: result.Decision.TotalSubscribers,
		RemovedRows:      runReport.Summary.RemovedRows,
		CorrectionCount:  runReport.Summary.TotalCorrections,
		ErrorCount:       runReport.Summary.TotalErrors,
		StartedAt:        runReport.GeneratedAt.Add(-result.Elapsed),
		DurationSeconds:  result.Elapsed.Seconds(),
	}
	if err := st.SaveRun(ctx, run, result.Ledger.Corrections(), result.Ledger.Errors()); err != nil {
		logger.Error("Failed to persist run", zap.Error(err))
		return
	}

	if result.Smarty != nil && result.Smarty.AddressesSent > 0 {
		rate := float64(result.Smarty.SuccessfulCorrections) / float64(result.Smarty.AddressesSent) * 100
		usage := store.VerificationUsage{
			RunID:             result.RunID,
			Company:           company,
			APICalls:          result.Smarty.AddressesSent,
			Successes:         result.Smarty.SuccessfulCorrections,
			Failures:          result.Smarty.FailedCorrections,
			SuccessRate:       rate,
			BatchesSent:       result.Smarty.BatchesSent,
			ProcessingSeconds: result.Smarty.ProcessingTime.Seconds(),
		}
		if err := st.SaveVerificationUsage(ctx, usage); err != nil {
			logger.Error("Failed to persist verification usage", zap.Error(err))
		}
	}
}

func printSummary(result *pipeline.Result, runReport *report.RunReport) {
	status := color.GreenString(string(result.Decision.Status))
	if result.Decision.Status != report.StatusValid {
		status = color.RedString(string(result.Decision.Status))
	}

	fmt.Printf("\nFile status:   %s\n", status)
	fmt.Printf("Reason:        %s\n", result.Decision.Reason)
	fmt.Printf("Subscribers:   %d (removed %d)\n",
		result.Decision.TotalSubscribers, runReport.Summary.RemovedRows)
	fmt.Printf("Corrections:   %d\n", runReport.Summary.TotalCorrections)
	fmt.Printf("Errors:        %d\n", runReport.Summary.TotalErrors)
	if runReport.Verification != nil {
		fmt.Printf("Verification:  %d sent, %d corrected, %d flagged (%s)\n",
			runReport.Verification.AddressesSent,
			runReport.Verification.SuccessfulCorrections,
			runReport.Verification.FailedCorrections,
			runReport.Verification.Action)
	}
	fmt.Printf("Corrected CSV: %s\n", runReport.Artifacts.CorrectedCSV)
	fmt.Printf("Run report:    %s\n", runReport.Artifacts.ReportJSON)
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
