package store

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

const timeLayout = time.RFC3339

var timeType = reflect.TypeOf(time.Time{})

// decodeRow decodes spreadsheet text cells into a record struct.
func decodeRow(row tables.Row, out any) error {
	input := make(map[string]any, len(row))
	for k, v := range row {
		input[k] = strings.TrimSpace(v)
	}

	cfg := &mapstructure.DecoderConfig{
		DecodeHook:       stringToTimeHook,
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}

	s := data.(string)
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(timeLayout, s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func decodeCandidate(row tables.Row) (records.CandidateRaw, error) {
	var c records.CandidateRaw
	if err := decodeRow(row, &c); err != nil {
		return c, records.Validation(records.TableCandidates, "", "decoding row %q: %v", row["candidate_id"], err)
	}
	return c, nil
}

func encodeCandidate(c records.CandidateRaw) tables.Row {
	return tables.Row{
		"candidate_id":        c.CandidateID,
		"source":              string(c.Source),
		"source_candidate_id": c.SourceCandidateID,
		"created_at":          formatTime(c.CreatedAt),
		"full_name":           c.FullName,
		"email":               c.Email,
		"phone":               c.Phone,
		"linkedin_url":        c.LinkedInURL,
		"cv_url":              c.CVURL,
		"raw_profile_url":     c.RawProfileURL,
	}
}

func decodeJobPost(row tables.Row) (records.JobPost, error) {
	var j records.JobPost
	if err := decodeRow(row, &j); err != nil {
		return j, records.Validation(records.TableJobPosts, "", "decoding row %q: %v", row["job_post_id"], err)
	}

	// A blank cell means the default, which is active.
	if strings.TrimSpace(row["active"]) == "" {
		j.Active = true
	}
	return j, nil
}

func encodeJobPost(j records.JobPost) tables.Row {
	return tables.Row{
		"job_post_id":            j.JobPostID,
		"job_post_name":          j.JobPostName,
		"active":                 strconv.FormatBool(j.Active),
		"getonboard_url":         j.GetOnBoardURL,
		"default_prompt_version": j.DefaultPromptVersion,
	}
}

func decodePrompt(row tables.Row) (records.Prompt, error) {
	var p records.Prompt
	if err := decodeRow(row, &p); err != nil {
		return p, records.Validation(records.TablePrompts, "", "decoding row: %v", err)
	}
	// Recruiters edit prompt content by hand; keep it verbatim.
	p.PromptContent = row["prompt_content"]
	return p, nil
}

func encodePrompt(p records.Prompt) tables.Row {
	return tables.Row{
		"prompt_version": p.PromptVersion,
		"job_post_id":    p.JobPostID,
		"prompt_content": p.PromptContent,
	}
}

func decodeEvaluation(row tables.Row) (records.CandidateEvaluation, error) {
	var ev records.CandidateEvaluation
	if err := decodeRow(row, &ev); err != nil {
		return ev, records.Validation(records.TableEvaluations, "", "decoding row %q: %v", row[records.FieldEvaluationID], err)
	}

	var err error
	if strings.TrimSpace(row[records.FieldDecision]) == "" {
		ev.Decision = records.DecisionHold
	} else if ev.Decision, err = records.ParseDecision(row[records.FieldDecision]); err != nil {
		return ev, err
	}

	if strings.TrimSpace(row[records.FieldTeamtailorStatus]) == "" {
		ev.TeamtailorStatus = records.SyncNotSent
	} else if ev.TeamtailorStatus, err = records.ParseSyncStatus(row[records.FieldTeamtailorStatus]); err != nil {
		return ev, err
	}

	if ev.FitLabel, err = records.ParseFitLabel(row[records.FieldFitLabel]); err != nil {
		return ev, err
	}

	return ev, nil
}

func encodeEvaluation(ev records.CandidateEvaluation) tables.Row {
	return tables.Row{
		records.FieldEvaluationID:     ev.EvaluationID,
		records.FieldCandidateID:      ev.CandidateID,
		records.FieldJobPostID:        ev.JobPostID,
		records.FieldPromptVersion:    ev.PromptVersion,
		records.FieldEvaluatedAt:      formatTime(ev.EvaluatedAt),
		records.FieldFitLabel:         string(ev.FitLabel),
		records.FieldFitScore:         strconv.Itoa(ev.FitScore),
		records.FieldReasons:          ev.Reasons,
		records.FieldRedFlags:         ev.RedFlags,
		records.FieldDecision:         string(ev.Decision),
		records.FieldTeamtailorStatus: string(ev.TeamtailorStatus),
	}
}

func evaluationKey(id string) tables.Key {
	return tables.Key{records.FieldEvaluationID: id}
}
