package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ingest, evaluate and push stages over HTTP",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address (default is :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(parent context.Context) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := bootstrap(ctx)
	defer e.Close()

	addr := ":8080"
	if e.config.Server != nil && e.config.Server.Addr != "" {
		addr = e.config.Server.Addr
	}

	e.logger.Info("starting the hiring-pipeline server", zap.String("version", version), zap.String("addr", addr))

	srv := server.New(newPipeline(ctx, e), e.logger)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		e.logger.Fatal("serving", zap.Error(err))
	}

	e.logger.Info("server stopped")
}
