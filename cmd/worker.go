package main

import (
	"github.com/fyerfyer/doc2pdf/internal/services"
	"github.com/fyerfyer/doc2pdf/pkg/taskqueue"
	"github.com/spf13/cobra"
)

// newWorkerCmd 任务队列工作者命令
func newWorkerCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}

			// 工作者直接执行转换，不再入队
			a, err := setupApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			worker := taskqueue.NewWorker(&cfg.Queue, a.service,
				taskqueue.WithWorkerLogger(logger),
				taskqueue.WithPermanentErrors(services.PermanentErrors...),
			)

			logger.WithField("concurrency", cfg.Queue.Concurrency).Info("Starting conversion worker")
			// Run在收到SIGINT/SIGTERM后返回
			return worker.Run()
		},
	}
}
