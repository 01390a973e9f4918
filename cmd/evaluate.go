package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/evaluation"
	"github.com/spigell/hiring-pipeline/internal/logger"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate CANDIDATE_ID JOB_POST_ID",
	Short: "Evaluate a stored candidate against a job post",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		e := bootstrap(ctx)
		defer e.Close()

		promptVersion, _ := cmd.Flags().GetString("prompt-version")

		ev, err := newPipeline(ctx, e).Evaluate(ctx, evaluation.Request{
			CandidateID:   args[0],
			JobPostID:     args[1],
			PromptVersion: promptVersion,
		})
		if err != nil {
			e.logger.Fatal("evaluating",
				zap.String("candidate_id", args[0]),
				zap.String("job_post_id", args[1]),
				zap.Error(err),
			)
		}

		e.logger.Info("evaluation recorded", logger.EvaluationFields(ev)...)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("prompt-version", "p", "", "prompt version to evaluate with (default is the job post default)")
}
