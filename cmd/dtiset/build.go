package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/chembl"
	"github.com/fyrsmithlabs/dtiset/internal/config"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/fyrsmithlabs/dtiset/internal/output"
	"github.com/fyrsmithlabs/dtiset/internal/pipeline"
	"github.com/fyrsmithlabs/dtiset/internal/refcache"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// buildFlags are the command-line overrides of the build command.
type buildFlags struct {
	configPath string
	allSources bool
	outputPath string
	strict     bool
	writeBF    bool
	writeB     bool
	debug      bool
}

func newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build, check and write the dataset",
		Long: `Build the compound-target dataset from ChEMBL.

The database is read from source.postgres_dsn (DTISET_SOURCE_POSTGRES_DSN).
The full dataset, the enabled subsets, their stats and a JSON run report are
written to the output directory.

Examples:
  # Literature-only dataset with default thresholds
  dtiset build --config ~/.config/dtiset/config.yaml

  # Include every source and write both subset families
  dtiset build --all-sources --bf --b --output ./out

  # Fail on any invariant violation
  dtiset build --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *f)
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), cfg, f.debug)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (f *buildFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.configPath, "config", "", "path to config file (default ~/.config/dtiset/config.yaml)")
	flags.BoolVar(&f.allSources, "all-sources", false, "include non-literature sources such as BindingDB")
	flags.StringVarP(&f.outputPath, "output", "o", "", "output directory")
	flags.BoolVar(&f.strict, "strict", false, "fail on any invariant violation")
	flags.BoolVar(&f.writeBF, "bf", false, "write binding+functional subsets")
	flags.BoolVar(&f.writeB, "b", false, "write binding-only subsets")
	flags.BoolVar(&f.debug, "debug", false, "enable debug logging")
}

// loadConfig loads the config file and applies flags set on cmd.
func loadConfig(cmd *cobra.Command, f buildFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("all-sources") {
		cfg.Aggregation.AllSources = f.allSources
	}
	if flags.Changed("output") {
		cfg.Output.Path = f.outputPath
	}
	if flags.Changed("strict") {
		cfg.Checks.Strict = f.strict
	}
	if flags.Changed("bf") {
		cfg.Output.WriteBF = f.writeBF
	}
	if flags.Changed("b") {
		cfg.Output.WriteB = f.writeB
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runBuild wires the sources, runs the pipeline and writes its output. The
// report is written even when the build fails.
func runBuild(ctx context.Context, cfg *config.Config, debug bool) (err error) {
	if !cfg.Source.PostgresDSN.IsSet() {
		return errors.New("source.postgres_dsn is required (set DTISET_SOURCE_POSTGRES_DSN)")
	}

	runID := logging.NewRunID()
	obs, err := initObservability(ctx, cfg, runID, debug)
	if err != nil {
		return err
	}
	defer obs.Close()
	logger := obs.logger
	ctx = logging.WithLogger(ctx, logger)

	started := time.Now()
	logger.Info(ctx, "starting build",
		zap.String("run.id", runID),
		zap.String("chembl_version", cfg.Source.ChEMBLVersion),
		zap.Bool("literature_only", cfg.Aggregation.LiteratureOnly()),
		logging.Endpoint("database", cfg.Source.PostgresDSN.Value()),
	)

	src, err := chembl.Open(ctx, chembl.Options{
		DSN:          cfg.Source.PostgresDSN.Value(),
		MaxConns:     cfg.Source.MaxConns,
		QueryTimeout: cfg.Source.QueryTimeout.Duration(),
		Logger:       logger.Underlying(),
	})
	if err != nil {
		return err
	}
	defer src.Close()

	var mechanisms pipeline.MechanismSource = src
	if cfg.Cache.Enabled {
		client, err := refcache.Connect(ctx, cfg.Cache.RedisURL.Value())
		if err != nil {
			logger.Warn(ctx, "mechanism cache unavailable, reading from chembl", zap.Error(err))
		} else {
			defer client.Close()
			mechanisms = refcache.New(src, client, cfg.Source.ChEMBLVersion, cfg.Cache.TTL.Duration(), logger.Underlying())
		}
	}

	metrics, err := pipeline.NewMetrics(obs.telemetry.Meter(pipeline.InstrumentationName))
	if err != nil {
		logger.Warn(ctx, "pipeline metrics disabled", zap.Error(err))
	}

	pcfg := pipelineConfig(cfg)
	pcfg.RunID = runID
	pcfg.Logger = logger
	pcfg.Tracer = obs.telemetry.Tracer(pipeline.InstrumentationName)
	pcfg.Metrics = metrics

	res, err := pipeline.Build(ctx, pipeline.Sources{
		Measurements: src,
		Mechanisms:   mechanisms,
		Enricher:     src,
	}, pcfg)

	writer, werr := output.NewWriter(output.Options{
		Dir:           cfg.Output.Path,
		Delimiter:     cfg.Output.Delimiter,
		ChEMBLVersion: cfg.Source.ChEMBLVersion,
		WriteFull:     true,
		WriteBF:       cfg.Output.WriteBF,
		WriteB:        cfg.Output.WriteB,
		Logger:        logger.Underlying(),
	})
	if werr != nil {
		return errors.Join(err, werr)
	}
	defer func() {
		if _, rerr := writer.WriteReport(res.Report); rerr != nil {
			err = errors.Join(err, rerr)
		}
		pushRunMetrics(ctx, cfg.Metrics, res.Report, time.Since(started), err == nil, logger)
	}()
	if err != nil {
		return err
	}

	if _, err := pipeline.Check(ctx, res, cfg.Checks.Strict); err != nil {
		return err
	}

	written, err := writer.WriteResult(res)
	if err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	logger.Info(ctx, "build finished",
		zap.Int("pairs", len(res.Rows)),
		zap.Int("files", len(written)),
		zap.String("output", cfg.Output.Path),
		zap.Duration("duration", time.Since(started)),
	)
	return nil
}

// pipelineConfig maps the file configuration onto a pipeline run.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	pcfg := pipeline.DefaultConfig()
	pcfg.Aggregation.LiteratureOnly = cfg.Aggregation.LiteratureOnly()
	pcfg.Aggregation.MinEvidenceCount = cfg.Aggregation.MinEvidenceCount
	pcfg.MinCompoundsBF = cfg.Subsets.MinCompoundsBF
	pcfg.MinCompoundsB = cfg.Subsets.MinCompoundsB
	return pcfg
}
