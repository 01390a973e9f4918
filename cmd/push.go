package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/filtering"
	"github.com/spigell/hiring-pipeline/internal/logger"
	"github.com/spigell/hiring-pipeline/internal/pipeline"
	"github.com/spigell/hiring-pipeline/internal/records"
)

const (
	PromptYes               = "Yes"
	PromptNo                = "No"
	PromptBack              = "back"
	PromptReportByJobPost   = "Report by job post"
	PromptReportSteps       = "Report selection steps"
	PromptManualPush        = "Push evaluations in manual mode"
	PromptDumpToFile        = "Dump evaluations to file"
	selectedEvaluationLabel = "%s %s / %s / %s %d"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportByJobPost, PromptReportSteps, PromptManualPush, PromptDumpToFile},
}

var pushCmd = &cobra.Command{
	Use:   "push [EVALUATION_ID]",
	Short: "Push evaluations with decision push to TeamTailor",
	Long: "Without an argument every pending evaluation with decision push is selected " +
		"and, after confirmation, pushed one by one.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		push(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)

	pushCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before pushing")
	pushCmd.Flags().Bool("dry-run", false, "only report what would be pushed")
	pushCmd.Flags().StringP("job-post-id", "J", "", "push only evaluations of this job post")
	pushCmd.Flags().IntP("minimum-fit-score", "m", 0, "push only evaluations scored at least this (default from push.minimum-fit-score)")
	pushCmd.Flags().BoolP("retry-failed", "r", false, "also push evaluations whose previous push failed")
}

func push(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	e := bootstrap(ctx)
	defer e.Close()

	p := newPipeline(ctx, e)

	if len(args) == 1 {
		res, err := p.PushOne(ctx, args[0])
		if errors.Is(err, records.ErrAlreadySynced) {
			e.logger.Info("evaluation was already pushed", logger.EvaluationFields(res.Evaluation)...)
			return
		}
		if err != nil {
			e.logger.Fatal("pushing evaluation", zap.String(records.FieldEvaluationID, args[0]), zap.Error(err))
		}
		e.logger.Info("evaluation pushed", append(logger.EvaluationFields(res.Evaluation), zap.String("remote_id", res.RemoteID))...)
		return
	}

	req := pushRequest(cmd, e.config)

	selected, steps, err := p.Select(ctx, req)
	if err != nil {
		e.logger.Fatal("selecting evaluations", zap.Error(err))
	}

	if selected.Len() == 0 {
		e.logger.Info("exiting", zap.String("reason", "no evaluations to push"))
		return
	}

	if req.DryRun {
		reportSelection(e.logger, selected, steps)
		return
	}

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	action := PromptYes
	for {
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				e.logger.Fatal("exiting", zap.Error(err))
			}
		}

		e.logger.Info("current list of evaluations", zap.Int("count", selected.Len()))

		if err := handleAction(ctx, action, p, e.logger, req, selected, steps); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			e.logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func pushRequest(cmd *cobra.Command, config *Config) pipeline.PushRequest {
	defaults := pushDefaults(config)

	req := pipeline.PushRequest{
		MinimumFitScore: defaults.MinimumFitScore,
		RetryFailed:     defaults.RetryFailed,
	}
	req.JobPostID, _ = cmd.Flags().GetString("job-post-id")
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")

	if cmd.Flags().Changed("minimum-fit-score") {
		req.MinimumFitScore, _ = cmd.Flags().GetInt("minimum-fit-score")
	}
	if cmd.Flags().Changed("retry-failed") {
		req.RetryFailed, _ = cmd.Flags().GetBool("retry-failed")
	}
	return req
}

func handleAction(ctx context.Context, action string, p *pipeline.Pipeline, log *zap.Logger, req pipeline.PushRequest, selected *filtering.Evaluations, steps []filtering.Report) error {
	switch action {
	case PromptYes:
		summary, err := p.PushAll(ctx, req)
		if err != nil {
			return err
		}
		report(log, "push summary", summary)
		return errExit
	case PromptNo:
		log.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptManualPush:
		return manualPush(ctx, p, log, selected)
	case PromptReportByJobPost:
		report(log, "evaluations by job post", selected.ByJobPost())
		return nil
	case PromptReportSteps:
		reportSelection(log, selected, steps)
		return nil
	case PromptDumpToFile:
		filename, err := selected.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump evaluations to file: %w", err)
		}
		log.Info("dumping evaluations to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func manualPush(ctx context.Context, p *pipeline.Pipeline, log *zap.Logger, selected *filtering.Evaluations) error {
	for {
		if selected.Len() == 0 {
			log.Info("nothing left to push")
			return nil
		}

		items := make([]string, 0, selected.Len()+1)
		for _, ev := range selected.Items {
			items = append(items, fmt.Sprintf(selectedEvaluationLabel,
				ev.EvaluationID, ev.CandidateID, ev.JobPostID, ev.FitLabel, ev.FitScore,
			))
		}

		evaluationPrompt := promptui.Select{
			Label: "Choose an evaluation and press ENTER",
			Items: append(items, PromptBack),
		}

		_, chosen, err := evaluationPrompt.Run()
		if err != nil {
			return err
		}

		if chosen == PromptBack {
			return nil
		}

		evaluationID := strings.Split(chosen, " ")[0]

		res, err := p.PushOne(ctx, evaluationID)
		switch {
		case err == nil:
			log.Info("evaluation pushed", append(logger.EvaluationFields(res.Evaluation), zap.String("remote_id", res.RemoteID))...)
		case errors.Is(err, records.ErrAlreadySynced):
			log.Info("evaluation was already pushed", zap.String(records.FieldEvaluationID, evaluationID))
		case records.Kind(err) != nil:
			// Domain errors leave the evaluation unchanged; keep going.
			log.Warn("evaluation was not pushed", zap.String(records.FieldEvaluationID, evaluationID), zap.Error(err))
			continue
		default:
			log.Error("pushing evaluation failed", zap.String(records.FieldEvaluationID, evaluationID), zap.Error(err))
			continue
		}

		selected.Keep(func(ev records.CandidateEvaluation) bool { return ev.EvaluationID != evaluationID })
	}
}

func reportSelection(log *zap.Logger, selected *filtering.Evaluations, steps []filtering.Report) {
	report(log, "selection steps", steps)
	log.Info("selected evaluations", zap.Strings("evaluation_ids", selected.IDs()))
}
