package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/doc2pdf/api"
	"github.com/fyerfyer/doc2pdf/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// newServeCmd HTTP服务命令
func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}

			gin.SetMode(cfg.Server.Mode)
			logger.Info("Starting doc2pdf server...")

			a, err := setupApp(cmd.Context(), cfg, logger, cfg.Queue.Enable)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Queue.Enable {
				logger.Info("Conversions will be processed by the task queue")
			}

			router := api.SetupRouter(handler.NewConversionHandler(a.service))
			router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

			srv := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Server is running on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				if err != nil {
					logger.WithError(err).Error("Failed to start server")
					return err
				}
			case <-quit:
			}
			logger.Info("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.WithError(err).Error("Server forced to shutdown")
				return err
			}

			logger.Info("Server exited")
			return nil
		},
	}
}
