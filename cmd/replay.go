package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/pipeline"
)

var replayCmd = &cobra.Command{
	Use:   "replay JOB_POST_ID",
	Short: "Re-evaluate the candidates of a job post with a pinned or the default prompt version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		replay(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringP("prompt-version", "p", "", "prompt version to evaluate with (default is the job post default)")
	replayCmd.Flags().StringSliceP("candidate", "c", nil, "candidate ids to replay (default is every candidate evaluated for the job post)")
	replayCmd.Flags().BoolP("missing-only", "M", false, "skip candidates already evaluated with the prompt version")
	replayCmd.Flags().BoolP("retry-failed", "r", false, "retry failed pushes of the job post after the replay")
	replayCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")
}

func replay(cmd *cobra.Command, jobPostID string) {
	ctx := cmd.Context()

	e := bootstrap(ctx)
	defer e.Close()

	req := pipeline.ReplayRequest{JobPostID: jobPostID}
	req.PromptVersion, _ = cmd.Flags().GetString("prompt-version")
	req.CandidateIDs, _ = cmd.Flags().GetStringSlice("candidate")
	req.MissingOnly, _ = cmd.Flags().GetBool("missing-only")
	retryFailed, _ := cmd.Flags().GetBool("retry-failed")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	p := newPipeline(ctx, e)

	promptVersion, candidates, skipped, err := p.ReplayPlan(ctx, req)
	if err != nil {
		e.logger.Fatal("planning replay", zap.String("job_post_id", jobPostID), zap.Error(err))
	}

	e.logger.Info("replay planned",
		zap.String("prompt_version", promptVersion),
		zap.Int("candidates", len(candidates)),
		zap.Int("skipped", skipped),
	)

	if len(candidates) > 0 {
		if !autoApprove {
			err := confirm(fmt.Sprintf("Re-evaluate %d candidates with prompt %s", len(candidates), promptVersion))
			if errors.Is(err, errExit) {
				e.logger.Info("exiting", zap.String("reason", "replay was not confirmed"))
				return
			}
			if err != nil {
				e.logger.Fatal("exiting", zap.Error(err))
			}
		}

		// Replay exactly the version that was confirmed.
		req.PromptVersion = promptVersion

		summary, err := p.Replay(ctx, req)
		if err != nil {
			e.logger.Fatal("replaying", zap.String("job_post_id", jobPostID), zap.Error(err))
		}
		report(e.logger, "replay summary", summary)
	}

	if !retryFailed {
		return
	}

	cfg := pushDefaults(e.config)
	summary, err := p.PushAll(ctx, pipeline.PushRequest{
		JobPostID:       jobPostID,
		MinimumFitScore: cfg.MinimumFitScore,
		RetryFailed:     true,
	})
	if err != nil {
		e.logger.Fatal("retrying failed pushes", zap.String("job_post_id", jobPostID), zap.Error(err))
	}
	report(e.logger, "push summary", summary)
}

// confirm asks a yes/no question and returns an error unless the answer is
// yes.
func confirm(label string) error {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return errExit
		}
		return err
	}
	return nil
}
