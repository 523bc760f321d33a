package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/signed-graph-colgen/pkg/colgen"
	"github.com/gilchrisn/signed-graph-colgen/pkg/metrics"
)

// cliOptions holds flags that are not part of the viper config
type cliOptions struct {
	configFile  string
	outputFile  string
	metricsFile string
}

func main() {
	if err := newRootCmd(colgen.NewConfig()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *colgen.Config) *cobra.Command {
	opts := &cliOptions{}
	rootCmd := &cobra.Command{
		Use:   "colgen",
		Short: "Signed graph community detection by column generation",
		Long: `colgen partitions a signed graph into communities by solving the
set-partitioning LP relaxation with column generation. The graph is read
from the graph section of the config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile == "" {
				return nil
			}
			if err := cfg.LoadFromFile(opts.configFile); err != nil {
				return fmt.Errorf("failed to load config %s: %w", opts.configFile, err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file holding the graph and algorithm settings")
	flags.StringVarP(&opts.outputFile, "output", "o", "", "Write the JSON result to this file instead of stdout")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	flags.Float64("lambda", 0.5, "Resolution parameter in [0, 1]")
	flags.Float64("tolerance", colgen.DefaultTolerance, "Reduced cost, membership and integrality tolerance")
	flags.Int("max-iterations", 0, "Stop after this many iterations, 0 for no limit")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	v := cfg.Viper()
	_ = v.BindPFlag("algorithm.lambda", flags.Lookup("lambda"))
	_ = v.BindPFlag("algorithm.tolerance", flags.Lookup("tolerance"))
	_ = v.BindPFlag("algorithm.max_iterations", flags.Lookup("max-iterations"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run column generation adding the best community per iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, cfg, opts, colgen.VariantClassic)
		},
	}

	partitionedCmd := &cobra.Command{
		Use:   "partitioned",
		Short: "Run column generation sweeping the community size k each iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, cfg, opts, colgen.VariantPartitioned)
		},
	}
	partitionedCmd.Flags().Int("k-min", 2, "Smallest community size priced")
	partitionedCmd.Flags().Int("k-max", 0, "Largest community size priced, 0 for the vertex count")
	_ = v.BindPFlag("partition.k_min", partitionedCmd.Flags().Lookup("k-min"))
	_ = v.BindPFlag("partition.k_max", partitionedCmd.Flags().Lookup("k-max"))

	rootCmd.AddCommand(runCmd, partitionedCmd)
	return rootCmd
}

func execute(cmd *cobra.Command, cfg *colgen.Config, opts *cliOptions, variant colgen.Variant) error {
	logger := cfg.CreateLogger()

	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	positive, negative := g.NumEdges()
	logger.Info().
		Int("nodes", g.NumNodes).
		Int("positive_edges", positive).
		Int("negative_edges", negative).
		Msg("Graph loaded")

	registry := metrics.NewRegistry()
	controller, err := colgen.NewController(g, cfg, colgen.WithLogger(logger), colgen.WithObserver(registry))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var res *colgen.Result
	if variant == colgen.VariantPartitioned {
		res, err = controller.RunPartitioned(ctx, nil)
	} else {
		res, err = controller.Run(ctx, nil)
	}

	// The metrics file is written for failed runs as well
	if opts.metricsFile != "" {
		if werr := registry.WriteTextfile(opts.metricsFile); werr != nil {
			if err != nil {
				return fmt.Errorf("%w (metrics not written: %v)", err, werr)
			}
			return fmt.Errorf("failed to write metrics: %w", werr)
		}
	}
	if err != nil {
		return err
	}

	if opts.outputFile != "" {
		if err := colgen.WriteJSONFile(opts.outputFile, res); err != nil {
			return err
		}
		logger.Info().Str("path", opts.outputFile).Msg("Result written")
		return nil
	}
	return colgen.WriteJSON(cmd.OutOrStdout(), res)
}
