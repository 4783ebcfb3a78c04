package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goliatone/go-sqlsession/config"
	"github.com/goliatone/go-sqlsession/executor"
	"github.com/goliatone/go-sqlsession/internal/observability"
	"github.com/goliatone/go-sqlsession/pkg/di"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	executor   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "sqlsession",
		Short:        "Run SQL through a pooled session with statement caching",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default ./sqlsession.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.executor, "executor", "", "executor type: simple, reuse or batch")

	cmd.AddCommand(newQueryCmd(opts), newExecCmd(opts), newStatsCmd(opts))
	return cmd
}

func (o *rootOptions) container(cmd *cobra.Command) (*di.Container, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return di.NewContainer(*cfg, di.WithLogger(logger.Component("cli")))
}

// adHoc builds a statement binding args, in order, to its placeholders.
func adHoc(id string, kind statement.Kind, query string, args []string) *statement.MappedStatement {
	source := statement.SQLSourceFunc(func(any) (*statement.BoundSQL, error) {
		mappings := make([]statement.ParameterMapping, len(args))
		for i := range args {
			mappings[i] = statement.In("arg" + strconv.Itoa(i))
		}
		bound := statement.NewBoundSQL(query, mappings, nil)
		for i, a := range args {
			bound.SetAdditionalParameter("arg"+strconv.Itoa(i), a)
		}
		return bound, nil
	})
	return statement.New(id, kind, source, statement.WithUseCache(false))
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "query SQL [ARGS...]",
		Short: "Run a select and print every row as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			session, err := c.NewExecutor(executor.Type(opts.executor), true)
			if err != nil {
				return err
			}
			defer session.Close(ctx, false)

			bounds := statement.RowBounds{Offset: offset, Limit: limit}
			if bounds.Limit <= 0 {
				bounds.Limit = statement.NoRowLimit
			}
			cur, err := session.QueryCursor(ctx, adHoc("cli.query", statement.KindSelect, args[0], args[1:]), nil, bounds)
			if err != nil {
				return err
			}
			defer cur.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for cur.Next() {
				if err := enc.Encode(cur.Value()); err != nil {
					return err
				}
			}
			return cur.Err()
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to print (0 = all)")
	return cmd
}

func newExecCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec SQL [ARGS...]",
		Short: "Run an insert, update, delete or DDL statement in a transaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			session, err := c.NewExecutor(executor.Type(opts.executor), false)
			if err != nil {
				return err
			}

			n, err := session.Update(ctx, adHoc("cli.exec", statement.KindUpdate, args[0], args[1:]), nil)
			if err != nil {
				_ = session.Close(ctx, true)
				return err
			}
			results, err := session.FlushStatements(ctx)
			if err != nil {
				_ = session.Close(ctx, true)
				return err
			}
			if err := session.Commit(ctx, true); err != nil {
				_ = session.Close(ctx, true)
				return err
			}
			if err := session.Close(ctx, false); err != nil {
				return err
			}

			if n == executor.BatchPending {
				n = 0
				for _, r := range results {
					for _, count := range r.UpdateCounts {
						n += count
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Check connectivity and print pool statistics and cache namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			conn, err := c.Pool().Acquire(ctx)
			if err != nil {
				return err
			}
			if err := conn.Close(); err != nil {
				return err
			}

			out := struct {
				Pool       any      `json:"pool"`
				Namespaces []string `json:"namespaces"`
			}{Pool: c.Pool().Stats(), Namespaces: c.Registry().Namespaces()}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
