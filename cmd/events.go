package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/events"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/tutor"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow turn events published to Redis",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print turn events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis is not configured: set LESSONLOOP_REDIS_ADDR")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		p, err := events.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Channel, logger.Nop())
		if err != nil {
			return err
		}
		defer p.Close()

		fmt.Printf("Watching %s on %s (Ctrl+C to stop)\n", cfg.Redis.Channel, cfg.Redis.Addr)
		return p.Watch(ctx, func(ev tutor.TurnEvent) {
			fmt.Printf("%s  %-28s  %-10s  v%-4d  %-16s  %d message(s)\n",
				ev.At.Local().Format("15:04:05"), truncate(ev.Key, 28), ev.Action,
				ev.Version, ev.Mode, len(ev.Messages))
		})
	},
}

func init() {
	eventsCmd.AddCommand(eventsWatchCmd)
}
