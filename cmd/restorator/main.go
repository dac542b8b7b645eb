// Command restorator rebuilds a city's population by territory, dwelling,
// sex, age and social group, then forecasts it year by year.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/population-restorator/internal/config"
	"github.com/talgya/population-restorator/internal/diag"
)

type globalOptions struct {
	cfg     config.Config
	verbose bool
	seed    uint64
	dbPath  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("restorator failed", "error", err, "fatal", diag.IsFatal(err))
		code := 1
		if errors.Is(err, diag.ErrIntegrity) {
			code = 2
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "restorator",
		Short:         "Restore and forecast a city's population structure",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				g.seed = cfg.Seed
			}
			if !cmd.Flags().Changed("db") {
				g.dbPath = cfg.DBPath
			}
			g.cfg = cfg

			level := cfg.Level()
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging and forecast tables on stdout")
	root.PersistentFlags().Uint64Var(&g.seed, "seed", 0, "Random seed (0 = fresh, env RESTORATOR_SEED)")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite output database (env RESTORATOR_DB_PATH)")

	root.AddCommand(
		newSynthCmd(g),
		newBalanceCmd(g),
		newDivideCmd(g),
		newForecastCmd(g),
		newRunCmd(g),
		newAgesCmd(g),
	)
	return root
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
