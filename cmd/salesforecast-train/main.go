// Command salesforecast-train trains the sales model from a CSV and writes
// the artifact bundle.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/config"
	"github.com/YuminosukeSato/salesforecast/pipeline"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
	"github.com/YuminosukeSato/salesforecast/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.GetLogger().Error("Training failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Read(config.DefaultEnvFile)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("salesforecast-train", flag.ContinueOnError)
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "input CSV path")
	fs.StringVar(&cfg.ModelsDir, "out", cfg.ModelsDir, "artifact output directory")
	fs.StringVar(&cfg.TargetColumn, "target", cfg.TargetColumn, "target column (empty = detect)")
	fs.Float64Var(&cfg.TestSize, "test-size", cfg.TestSize, "held-out fraction")
	fs.Int64Var(&cfg.RandomState, "seed", cfg.RandomState, "random seed for split and CV")
	fs.IntVar(&cfg.CVFolds, "cv", cfg.CVFolds, "cross-validation folds")
	fs.StringVar(&cfg.PlotsDir, "plots", cfg.PlotsDir, "directory for diagnostic PNGs (empty = none)")
	fs.BoolVar(&cfg.SortedClasses, "sorted-classes", cfg.SortedClasses, "order encoder classes lexicographically")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	verify := fs.Bool("verify", false, "only verify the artifacts in -out and print a report")
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	// フラグは環境変数より優先されるので、検証は上書き後に行う
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("train")

	if *verify {
		rep := artifact.Verify(cfg.ModelsDir)
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if !rep.OK() {
			return errors.Newf("artifacts in %s are not usable: %s", cfg.ModelsDir, rep.Error)
		}
		return nil
	}

	opts := pipeline.DefaultOptions()
	opts.DataPath = cfg.DataPath
	opts.Target = cfg.TargetColumn
	opts.TestSize = cfg.TestSize
	opts.RandomState = cfg.RandomState
	opts.CVFolds = cfg.CVFolds
	opts.SortedClasses = cfg.SortedClasses
	opts.Logger = logger

	res, err := pipeline.Train(ctx, opts)
	if err != nil {
		return err
	}
	if err := res.Bundle.Save(cfg.ModelsDir); err != nil {
		return err
	}

	if cfg.PlotsDir != "" {
		paths, err := report.WriteAll(cfg.PlotsDir, res.Eval, res.Bundle.Metadata.FeatureImportance)
		if err != nil {
			return err
		}
		logger.Info("Diagnostic plots written", "files", paths)
	}

	m := res.Bundle.Metadata.Metrics
	fmt.Fprintf(stdout, "R2 train %.4f  test %.4f\n", m.R2Train, m.R2Test)
	fmt.Fprintf(stdout, "MAE test %.4f  RMSE test %.4f\n", m.MAETest, m.RMSETest)
	fmt.Fprintf(stdout, "CV R2 %.4f (+/- %.4f)\n", m.CVMean, 2*m.CVStd)
	fmt.Fprintf(stdout, "verdict: %s\n", pipeline.Verdict(m.R2Test))
	fmt.Fprintf(stdout, "artifacts written to %s\n", cfg.ModelsDir)
	return nil
}
