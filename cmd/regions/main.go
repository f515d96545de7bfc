package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/regions/pkg/config"
	"github.com/TFMV/regions/pkg/metrics"
	"github.com/TFMV/regions/pkg/provider"
)

var version = "0.1.0" // Will be set during build

// env carries what every command needs once the configuration is loaded
type env struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	out     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var cfgFile string
	e := &env{out: out}

	rootCmd := &cobra.Command{
		Use:   "regions",
		Short: "Inspect and convert feature region files",
		Long: `regions reads the per-view feature (.feat) and descriptor (.desc) files
written by feature extraction, and inspects, filters, compresses and serves them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.regions.yaml or $HOME/.regions.yaml)")
	flags.String("features-dir", "", "directory holding the .feat and .desc files")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("describer", "", "describer of the region files")
	flags.Int("workers", 0, "number of views loaded in parallel")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		for key, name := range map[string]string{
			"features_dir": "features-dir",
			"log_level":    "log-level",
			"describer":    "describer",
			"workers":      "workers",
		} {
			if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
				return fmt.Errorf("failed to bind %s flag: %w", name, err)
			}
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		for _, issue := range config.ValidateConfig(cfg) {
			if issue.Severity == config.Warning {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", issue.Severity, issue.Field, issue.Message)
			}
		}

		e.cfg = cfg
		e.log = setupLogger(cfg.LogLevel)
		e.metrics = metrics.NewCollector(cfg.MetricsEnabled)
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if e.log != nil {
			_ = e.log.Sync()
		}
	}

	// Add commands
	rootCmd.AddCommand(
		infoCmd(e),
		describersCmd(e),
		distanceCmd(e),
		filterCmd(e),
		compressCmd(e),
		exportCmd(e),
		importCmd(e),
		serveCmd(e),
	)
	return rootCmd
}

// provider creates a provider over the configured features directory
func (e *env) provider() (*provider.Provider, error) {
	return e.providerFor(e.cfg.FeaturesDir, e.cfg.Describer)
}

func (e *env) providerFor(dir, describer string) (*provider.Provider, error) {
	return provider.New(provider.Options{
		Dir:         dir,
		Describer:   describer,
		Compression: e.cfg.Compression(),
		Workers:     e.cfg.Workers,
		Logger:      e.log,
		Metrics:     e.metrics,
	})
}
