package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haulcommand/dispatchd/config"
	"github.com/haulcommand/dispatchd/core/intel"
	"github.com/haulcommand/dispatchd/infra/logger"
	"github.com/haulcommand/dispatchd/infra/postgres"
)

var (
	intelLoadID string
	intelBatch  int
)

var intelCmd = &cobra.Command{
	Use:   "intel",
	Short: "Refresh load intelligence snapshots",
	RunE:  runIntel,
}

func init() {
	intelCmd.Flags().StringVar(&intelLoadID, "load", "", "refresh a single load")
	intelCmd.Flags().IntVar(&intelBatch, "batch", 0, "batch size for open-load refresh")
	rootCmd.AddCommand(intelCmd)
}

func runIntel(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer st.Close()

	e, err := intel.NewEstimator(cfg.Intel, st, st, st, st, st, logger.New("intel-command"))
	if err != nil {
		return fmt.Errorf("estimator: %w", err)
	}

	res, err := e.Refresh(ctx, intelLoadID, intelBatch)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
