// Package cli implements cachectl, the response cache maintenance tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/config"
	"visionqa-gateway/pkg/logging/logging"
)

// Options wires external dependencies. A nil Open builds the store from the
// environment the same way the gateway does.
type Options struct {
	Open   cache.Opener
	Logger *zap.Logger
}

// NewRootCommand builds the cachectl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and maintain the gateway response cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newKeyCommand())
	root.AddCommand(newTTLCommand())
	root.AddCommand(newPurgeCommand(opts))
	return root
}

// Run executes cachectl with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(Options{})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func newKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "key <category> <identifier>",
		Short: "Print the cache key for an identifier",
		Example: "  cachectl key search_results beach_jpg\n" +
			"  cachectl key openai_responses 'beach_jpg_what is this?'",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cache.ParseCategory(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Key(args[1]))
			return nil
		},
	}
}

func newTTLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ttl",
		Short: "Print the category TTL table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tPREFIX\tTTL")
			for _, c := range cache.Categories() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c, c.Prefix(), c.TTL())
			}
			return tw.Flush()
		},
	}
}

func newPurgeCommand(opts Options) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:     "purge <pattern>",
		Short:   "Delete every cache key matching a glob pattern",
		Example: "  cachectl purge 'search:*'\n  cachectl purge '*'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.Logger
			open := opts.Open
			opTimeout := cache.DefaultOpTimeout

			if open == nil {
				var files []string
				if envFile != "" {
					files = append(files, envFile)
				}
				cfg, err := config.Load(files...)
				if err != nil {
					return err
				}
				if logger == nil {
					logger = logging.New(cfg.Log)
				}
				open = cache.NewOpener(cfg.Cache, logger)
				opTimeout = cfg.Cache.OpTimeout
			}
			if logger == nil {
				logger = zap.NewNop()
			}

			return purge(cmd.Context(), cmd.OutOrStdout(), open, opTimeout, logger, args[0])
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "load settings from this .env file")
	return cmd
}

func purge(ctx context.Context, out io.Writer, open cache.Opener, opTimeout time.Duration, logger *zap.Logger, pattern string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rc := cache.NewResponseCache(open, cache.WithOpTimeout(opTimeout), cache.WithLogger(logger))
	rc.Connect(ctx)
	defer rc.Disconnect()

	if !rc.Connected() {
		return errors.New("cache store unavailable")
	}

	res := rc.ClearPattern(ctx, pattern)
	if !res.OK() {
		return fmt.Errorf("purge %q: %w", pattern, res.Err)
	}
	fmt.Fprintf(out, "removed %d keys matching %q\n", res.Count, pattern)
	return nil
}
