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
	"github.com/haulcommand/dispatchd/core/dispatch"
	"github.com/haulcommand/dispatchd/infra/logger"
	"github.com/haulcommand/dispatchd/infra/postgres"
)

var (
	dispatchLoadID string
	dispatchWave   int
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one dispatch wave for a load",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchLoadID, "load", "", "load id to dispatch")
	dispatchCmd.Flags().IntVar(&dispatchWave, "wave", 1, "wave number")
	_ = dispatchCmd.MarkFlagRequired("load")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
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
	if err := st.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	d, err := dispatch.NewDispatcher(cfg.Dispatch, dispatch.Stores{
		Loads:     st,
		Supply:    st,
		Blocklist: st,
		Offers:    st,
		Intel:     st,
		SLA:       st,
		Events:    st,
	}, nil, nil, nil, logger.New("dispatch-command"))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	res, err := d.Dispatch(ctx, dispatch.Request{LoadID: dispatchLoadID, Wave: dispatchWave})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
