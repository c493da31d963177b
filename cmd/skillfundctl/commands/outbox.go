package commands

import (
	"fmt"
	"strconv"
	"time"

	"skillfund/pkg/mq"
	"skillfund/pkg/outbox"

	"github.com/spf13/cobra"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay outbox events",
	}
	cmd.AddCommand(replayCmd(), replayFailedCmd(), purgeCmd())
	return cmd
}

func newReplayService(cmd *cobra.Command) (*outbox.ReplayService, func(), error) {
	cfg, conn, err := openDB(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	publisher, err := mq.NewPublisher(cfg.MQ.URL, "skillfundctl")
	if err != nil {
		return nil, nil, err
	}
	return outbox.NewReplayService(outbox.NewRepository(conn), publisher, log), publisher.Close, nil
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [event-id]",
		Short: "Publish one outbox event now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event id %q: %w", args[0], err)
			}

			svc, closeFn, err := newReplayService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.ReplayEvent(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %d replayed\n", id)
			return nil
		},
	}
}

func replayFailedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "replay-failed",
		Short: "Republish events that exhausted their retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			svc, closeFn, err := newReplayService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.ReplayFailedEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d event(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events to replay")
	return cmd
}

func purgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete sent events older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < time.Hour {
				return fmt.Errorf("--older-than must be at least 1h")
			}

			_, conn, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			n, err := outbox.NewRepository(conn).PurgeSent(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d sent event(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age of sent events to delete")
	return cmd
}
