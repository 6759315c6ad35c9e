package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/reelvault/worker/internal/config"
	"github.com/reelvault/worker/internal/jobstore"
	"github.com/reelvault/worker/internal/queue"
)

var enqueueSourcePage string

// enqueueCmd is a local testing aid standing in for the out-of-scope job
// submission API (§1): it seeds a job row directly and pushes its id onto
// the queue, the same two side effects a real submission endpoint would
// have performed.
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <url>",
	Short: "Seed a job row and push its id onto the queue (local testing aid)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("cli: load config: %w", err)
		}

		store, err := jobstore.Open(cfg.StoreDSN)
		if err != nil {
			return fmt.Errorf("cli: open job store: %w", err)
		}

		redisOpts, err := redis.ParseURL(cfg.QueueDSN)
		if err != nil {
			return fmt.Errorf("cli: parse queue DSN: %w", err)
		}
		q := queue.NewRedisQueue(redis.NewClient(redisOpts), "reelvault:jobs")

		ctx := cmd.Context()
		id := uuid.NewString()
		if err := store.Create(ctx, id, args[0], enqueueSourcePage); err != nil {
			return fmt.Errorf("cli: create job row: %w", err)
		}
		if err := q.Push(ctx, id); err != nil {
			return fmt.Errorf("cli: push job id: %w", err)
		}

		fmt.Println(id)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueSourcePage, "source-page", "", "originating page URL, used to derive Referer/Origin headers")
	rootCmd.AddCommand(enqueueCmd)
}
