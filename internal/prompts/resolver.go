// Package prompts resolves which prompt version evaluates a candidate and
// renders it into the message sent to the model.
package prompts

import (
	"context"
	"strings"

	"github.com/spigell/hiring-pipeline/internal/records"
)

// Source is the part of the record store the resolver reads.
type Source interface {
	GetPrompt(ctx context.Context, jobPostID, version string) (records.Prompt, error)
	GetDefaultPrompt(ctx context.Context, jobPostID string) (records.Prompt, error)
}

type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the pinned version when one is requested and the job's
// default otherwise. It never substitutes another job's prompt or another
// version than the one asked for.
func (r *Resolver) Resolve(ctx context.Context, jobPostID, version string) (records.Prompt, error) {
	jobPostID = strings.TrimSpace(jobPostID)
	if jobPostID == "" {
		return records.Prompt{}, records.Validation(records.TablePrompts, "job_post_id", "must not be empty")
	}

	if version = strings.TrimSpace(version); version != "" {
		return r.source.GetPrompt(ctx, jobPostID, version)
	}
	return r.source.GetDefaultPrompt(ctx, jobPostID)
}
