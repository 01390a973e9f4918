package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the missing pipeline tables in the configured backend",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		e := bootstrap(ctx)
		defer e.Close()

		created, err := e.store.Provision(ctx)
		if err != nil {
			e.logger.Fatal("provisioning tables", zap.Error(err))
		}

		if len(created) == 0 {
			e.logger.Info("all tables already exist")
			return
		}
		e.logger.Info("tables created", zap.Strings("tables", created))
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
