package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load job posts and prompt versions from a YAML file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		e := bootstrap(ctx)
		defer e.Close()

		f, err := seed.Load(args[0])
		if err != nil {
			e.logger.Fatal("loading seed file", zap.String("filename", args[0]), zap.Error(err))
		}

		summary, err := seed.Apply(ctx, e.store, f, e.logger)
		if err != nil {
			e.logger.Fatal("applying seed file", zap.String("filename", args[0]), zap.Error(err))
		}

		report(e.logger, "seed applied", summary)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
