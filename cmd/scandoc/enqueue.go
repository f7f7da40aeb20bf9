package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scandoc/scandoc/internal/config"
	"github.com/scandoc/scandoc/internal/queue"
	"github.com/scandoc/scandoc/internal/raster"
)

func newEnqueueCmd() *cobra.Command {
	var profileName string
	var language string

	cmd := &cobra.Command{
		Use:   "enqueue <document.pdf>",
		Short: "Submit a PDF to the worker queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			// Reject obviously bad input before it reaches a worker.
			if err := raster.Preflight(absPath); err != nil {
				return err
			}

			enq, err := queue.NewEnqueuer(cfg.RedisURL, cfg.QueueName)
			if err != nil {
				return err
			}
			defer enq.Close()

			jobID := uuid.New().String()
			taskID, err := enq.Enqueue(cmd.Context(), queue.ProcessPayload{
				JobID:        jobID,
				DocumentPath: absPath,
				Profile:      profileName,
				Overrides:    queue.ProfileOverrides{Language: language},
			})
			if err != nil {
				return err
			}

			fmt.Printf("job:  %s\n", jobID)
			fmt.Printf("task: %s\n", taskID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "balanced", "quality profile: fast, balanced, high_quality")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "OCR language code override")
	return cmd
}
