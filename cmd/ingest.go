package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest JOB_POST_ID",
	Short: "Fetch a job post and its applications from GetOnBoard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		e := bootstrap(ctx)
		defer e.Close()

		evaluate, _ := cmd.Flags().GetBool("evaluate")
		promptVersion, _ := cmd.Flags().GetString("prompt-version")

		p := newPipeline(ctx, e)
		summary, err := p.Ingest(ctx, pipeline.IngestRequest{
			JobPostID:     args[0],
			Evaluate:      evaluate,
			PromptVersion: promptVersion,
		})
		if err != nil {
			e.logger.Fatal("ingesting", zap.String("job_post_id", args[0]), zap.Error(err))
		}

		report(e.logger, "ingest finished", summary)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolP("evaluate", "e", false, "evaluate every ingested candidate")
	ingestCmd.Flags().StringP("prompt-version", "p", "", "prompt version to evaluate with (default is the job post default)")
}
