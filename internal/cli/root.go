// Package cli implements the placementctl command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"placement/internal/config"
	"placement/internal/replication"
	"placement/internal/ring"
	"placement/internal/storage"
)

type flags struct {
	keyspace string
	dir      string
	format   string
	rf       string
	ringFile string
	nodes    string
	anyNode  bool
	verbose  bool
}

// NewRootCommand builds the placementctl command tree.
func NewRootCommand(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "placementctl",
		Short:        "Inspect and compute sticky replica placements",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.keyspace, "keyspace", "", "keyspace owning the placement cache")
	pf.StringVar(&f.dir, "dir", ".", "directory of the persisted placement cache")
	pf.StringVar(&f.format, "format", config.FormatCSV, "persisted cache format: csv or proto")
	pf.StringVar(&f.rf, "replication-factor", "", "number of replicas")
	pf.StringVar(&f.ringFile, "ring", "", "YAML ring description")
	pf.StringVar(&f.nodes, "nodes", "", `inline ring description, "token=addr,token=addr"`)
	pf.BoolVar(&f.anyNode, "any-node", false, "accept every node as a secondary replica")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log debug events")
	_ = root.MarkPersistentFlagRequired("keyspace")

	root.AddCommand(newEndpointsCommand(fs, f), newDumpCommand(fs, f))
	return root
}

func newEndpointsCommand(fs afero.Fs, f *flags) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "endpoints [token]",
		Short: "Print the replicas of a token and persist the decision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := resolveToken(args, key)
			if err != nil {
				return err
			}

			snap, err := loadSnapshot(fs, f)
			if err != nil {
				return err
			}

			strategy, err := openStrategy(cmd.Context(), fs, f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			endpoints, err := strategy.CalculateNaturalEndpoints(cmd.Context(), token, snap)
			for _, node := range endpoints {
				fmt.Fprintln(cmd.OutOrStdout(), node)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "raw partitioning key, hashed to a token")
	return cmd
}

func newDumpCommand(fs afero.Fs, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the persisted placement cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := openStrategy(cmd.Context(), fs, f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			for _, e := range strategy.Entries() {
				fmt.Fprint(cmd.OutOrStdout(), e.Token)
				for _, node := range e.Record {
					fmt.Fprintf(cmd.OutOrStdout(), " %s", node)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func resolveToken(args []string, key string) (ring.Token, error) {
	switch {
	case len(args) == 1 && key != "":
		return 0, errors.New("use either a token argument or --key, not both")
	case len(args) == 1:
		return ring.ParseToken(args[0])
	case key != "":
		return ring.Partitioner{}.Token([]byte(key)), nil
	default:
		return 0, errors.New("a token argument or --key is required")
	}
}

func loadSnapshot(fs afero.Fs, f *flags) (*ring.Snapshot, error) {
	switch {
	case f.ringFile != "" && f.nodes != "":
		return nil, errors.New("use either --ring or --nodes, not both")
	case f.ringFile != "":
		return config.LoadRingFile(fs, f.ringFile)
	default:
		return config.ParseNodes(f.nodes)
	}
}

func openStrategy(ctx context.Context, fs afero.Fs, f *flags, stderr io.Writer) (*replication.Strategy, error) {
	cfg, err := config.ParseOptions(f.keyspace, config.Options{config.OptionReplicationFactor: f.rf})
	if err != nil {
		return nil, err
	}
	cfg.Dir = f.dir
	cfg.Format = f.format
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(stderr, f.verbose)
	store, err := storage.Open(cfg, storage.WithFs(fs), storage.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := []replication.Option{replication.WithLogger(logger)}
	if f.anyNode {
		opts = append(opts, replication.WithEligible(replication.AnyNode))
	}
	return replication.NewStrategy(ctx, cfg, store, opts...)
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core)
}
