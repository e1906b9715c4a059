package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	grpcserver "userManagement/internal/grpc"
	"userManagement/internal/httpapi"
)

func newServeCommand(deps commandDeps) *cobra.Command {
	var devSecret bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API and the health/metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(deps, !devSecret)
			if err != nil {
				return err
			}
			defer rt.close()
			rt.logger.Info("configuration loaded", zap.Stringer("config", rt.cfg))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := rt.service(ctx)
			if err != nil {
				rt.logger.Error("open store", zap.Error(err))
				return mapCommandError(err)
			}

			stopGRPC, err := grpcserver.StartGRPC(rt.cfg, svc, rt.logger, rt.metrics)
			if err != nil {
				return mapCommandError(err)
			}
			stopHTTP, err := httpapi.Start(rt.cfg.HTTP.Address, &httpapi.Handler{
				DB:       rt.db,
				Migrator: rt.migrator(),
				Metrics:  rt.metrics,
				Logger:   rt.logger,
			})
			if err != nil {
				_ = stopGRPC(context.Background())
				return mapCommandError(err)
			}

			<-ctx.Done()
			rt.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stopHTTP(shutdownCtx); err != nil {
				rt.logger.Warn("http shutdown", zap.Error(err))
			}
			if err := stopGRPC(shutdownCtx); err != nil {
				rt.logger.Warn("grpc shutdown", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&devSecret, "dev", false, "Allow the development JWT secret when JWT_SECRET is unset")
	return cmd
}
