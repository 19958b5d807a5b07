package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/config"
)

type rootOptions struct {
	getenv     func(string) string
	configPath string
	verbose    bool
	logFormat  string
	logger     *zap.Logger
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	o := &rootOptions{getenv: getenv}

	cmd := &cobra.Command{
		Use:   "enricher",
		Short: "Add a competitor Yes/No column to a CSV of features",
		Long: `enricher reads a CSV of product features, searches the web for
"<competitor> <feature>", asks Gemini whether the competitor has the feature,
and writes the CSV back out with one extra column named after the competitor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), o.logFormat, o.verbose)
			if err != nil {
				return err
			}
			o.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/feature-matrix/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&o.logFormat, "log-format", "console", "Log encoding: console or json")

	cmd.AddCommand(
		newRunCmd(o),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return cmd
}

func newLogger(w io.Writer, format string, verbose bool) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid --log-format %q: must be console or json", format)
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, zap.AddCaller()), nil
}

// settingsFlags mirror the config file keys that can be set per invocation.
type settingsFlags struct {
	input          string
	output         string
	competitor     string
	featureColumn  string
	searchBackend  string
	searchBaseURL  string
	numResults     int
	model          string
	modelBaseURL   string
	temperature    float32
	strict         bool
	workers        int
	rateLimitRPS   float64
	requestTimeout time.Duration
}

func (f *settingsFlags) register(fs *pflag.FlagSet) {
	d := config.Defaults()
	fs.StringVarP(&f.input, "input", "i", d.Input, "Input CSV path")
	fs.StringVarP(&f.output, "output", "o", d.Output, "Output CSV path")
	fs.StringVarP(&f.competitor, "competitor", "c", "", "Competitor name; also the output column name")
	fs.StringVar(&f.featureColumn, "feature-column", d.FeatureColumn, "Input column holding the feature name")
	fs.StringVar(&f.searchBackend, "search-backend", d.Search.Backend, "Web search backend: cse or gemini")
	fs.StringVar(&f.searchBaseURL, "search-base-url", "", "Override the Custom Search API endpoint")
	fs.IntVar(&f.numResults, "num-results", d.Search.NumResults, "Search results to use as evidence (max 10)")
	fs.StringVar(&f.model, "gemini-model", d.Model.Name, "Gemini model name")
	fs.StringVar(&f.modelBaseURL, "gemini-base-url", "", "Override the Gemini API base URL")
	fs.Float32Var(&f.temperature, "temperature", d.Model.Temperature, "Sampling temperature for the judgment model")
	fs.BoolVar(&f.strict, "strict", d.Model.Strict, "Accept only Yes/No answers; anything else becomes Error")
	fs.IntVar(&f.workers, "workers", d.Workers, "Rows processed concurrently; output order is preserved")
	fs.Float64Var(&f.rateLimitRPS, "rate-limit-rps", d.RateLimitRPS, "Max rows started per second (0 disables)")
	fs.DurationVar(&f.requestTimeout, "request-timeout", d.RequestTimeout, "Per-row timeout for search plus judgment (0 disables)")
}

// apply overlays only the flags set on the command line.
func (f *settingsFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("input", func() { cfg.Input = f.input })
	set("output", func() { cfg.Output = f.output })
	set("competitor", func() { cfg.Competitor = f.competitor })
	set("feature-column", func() { cfg.FeatureColumn = f.featureColumn })
	set("search-backend", func() { cfg.Search.Backend = f.searchBackend })
	set("search-base-url", func() { cfg.Search.BaseURL = f.searchBaseURL })
	set("num-results", func() { cfg.Search.NumResults = f.numResults })
	set("gemini-model", func() { cfg.Model.Name = f.model })
	set("gemini-base-url", func() { cfg.Model.BaseURL = f.modelBaseURL })
	set("temperature", func() { cfg.Model.Temperature = f.temperature })
	set("strict", func() { cfg.Model.Strict = f.strict })
	set("workers", func() { cfg.Workers = f.workers })
	set("rate-limit-rps", func() { cfg.RateLimitRPS = f.rateLimitRPS })
	set("request-timeout", func() { cfg.RequestTimeout = f.requestTimeout })
}

func (o *rootOptions) loadConfig(cmd *cobra.Command, flags *settingsFlags) (config.Config, error) {
	cfg, err := config.Load(config.FindConfigFile(o.configPath), o.getenv)
	if err != nil {
		return config.Config{}, err
	}
	flags.apply(cmd.Flags(), &cfg)
	return cfg, nil
}
