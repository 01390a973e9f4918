package store

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

func jobPostKey(id string) tables.Key {
	return tables.Key{"job_post_id": id}
}

func promptKey(jobPostID, version string) tables.Key {
	return tables.Key{"prompt_version": version, "job_post_id": jobPostID}
}

// UpsertJobPost inserts or updates a job post by id. An empty
// DefaultPromptVersion keeps the stored one, so ingestion can refresh name,
// URL and active flag without knowing about prompts. A non-empty one must
// reference an existing prompt of the same job.
func (s *Store) UpsertJobPost(ctx context.Context, j records.JobPost) (records.JobPost, bool, error) {
	j.JobPostID = strings.TrimSpace(j.JobPostID)
	j.DefaultPromptVersion = strings.TrimSpace(j.DefaultPromptVersion)
	if j.JobPostID == "" {
		return records.JobPost{}, false, records.Validation(records.TableJobPosts, "job_post_id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if j.DefaultPromptVersion != "" {
		if err := s.requirePrompt(ctx, j.JobPostID, j.DefaultPromptVersion); err != nil {
			return records.JobPost{}, false, err
		}
	}

	rows, err := s.read(ctx, records.TableJobPosts)
	if err != nil {
		return records.JobPost{}, false, err
	}

	key := jobPostKey(j.JobPostID)
	if row, ok := findRow(rows, key); ok {
		existing, err := decodeJobPost(row)
		if err != nil {
			return records.JobPost{}, false, err
		}
		if j.DefaultPromptVersion == "" {
			j.DefaultPromptVersion = existing.DefaultPromptVersion
		}

		if err := s.write(ctx, records.TableJobPosts, key, encodeJobPost(j)); err != nil {
			return records.JobPost{}, false, err
		}
		return j, false, nil
	}

	if err := s.append(ctx, records.TableJobPosts, j.JobPostID, encodeJobPost(j)); err != nil {
		return records.JobPost{}, false, err
	}
	return j, true, nil
}

// SetDefaultPromptVersion points a job post at one of its prompt versions.
func (s *Store) SetDefaultPromptVersion(ctx context.Context, jobPostID, version string) (records.JobPost, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return records.JobPost{}, records.Validation(records.TableJobPosts, "default_prompt_version", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read(ctx, records.TableJobPosts)
	if err != nil {
		return records.JobPost{}, err
	}

	key := jobPostKey(jobPostID)
	row, ok := findRow(rows, key)
	if !ok {
		return records.JobPost{}, records.NotFound(records.TableJobPosts, jobPostID)
	}

	if err := s.requirePrompt(ctx, jobPostID, version); err != nil {
		return records.JobPost{}, err
	}

	j, err := decodeJobPost(row)
	if err != nil {
		return records.JobPost{}, err
	}
	j.DefaultPromptVersion = version

	if err := s.write(ctx, records.TableJobPosts, key, encodeJobPost(j)); err != nil {
		return records.JobPost{}, err
	}

	s.logger.Info("default prompt version changed",
		zap.String("job_post_id", jobPostID),
		zap.String("prompt_version", version),
	)
	return j, nil
}

func (s *Store) GetJobPost(ctx context.Context, jobPostID string) (records.JobPost, error) {
	rows, err := s.read(ctx, records.TableJobPosts)
	if err != nil {
		return records.JobPost{}, err
	}

	row, ok := findRow(rows, jobPostKey(jobPostID))
	if !ok {
		return records.JobPost{}, records.NotFound(records.TableJobPosts, jobPostID)
	}
	return decodeJobPost(row)
}

func (s *Store) ListJobPosts(ctx context.Context, activeOnly bool) ([]records.JobPost, error) {
	rows, err := s.read(ctx, records.TableJobPosts)
	if err != nil {
		return nil, err
	}

	out := make([]records.JobPost, 0, len(rows))
	for _, row := range rows {
		j, err := decodeJobPost(row)
		if err != nil {
			s.logger.Warn("skipping malformed job post row", zap.Error(err))
			continue
		}
		if activeOnly && !j.Active {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

// UpsertPrompt inserts a prompt version or edits its content. Content of a
// version already referenced by an evaluation is frozen: changing it fails
// with ErrImmutableField, rewriting the same content is a no-op.
func (s *Store) UpsertPrompt(ctx context.Context, p records.Prompt) (bool, error) {
	p.JobPostID = strings.TrimSpace(p.JobPostID)
	p.PromptVersion = strings.TrimSpace(p.PromptVersion)
	if p.JobPostID == "" {
		return false, records.Validation(records.TablePrompts, "job_post_id", "must not be empty")
	}
	if p.PromptVersion == "" {
		return false, records.Validation(records.TablePrompts, "prompt_version", "must not be empty")
	}
	if strings.TrimSpace(p.PromptContent) == "" {
		return false, records.Validation(records.TablePrompts, "prompt_content", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetJobPost(ctx, p.JobPostID); err != nil {
		if records.Kind(err) == records.ErrNotFound {
			return false, records.Referential(records.TablePrompts, p.JobPostID, "job post %q does not exist", p.JobPostID)
		}
		return false, err
	}

	rows, err := s.read(ctx, records.TablePrompts)
	if err != nil {
		return false, err
	}

	key := promptKey(p.JobPostID, p.PromptVersion)
	row, ok := findRow(rows, key)
	if !ok {
		if err := s.append(ctx, records.TablePrompts, key.String(), encodePrompt(p)); err != nil {
			return false, err
		}
		return true, nil
	}

	if row["prompt_content"] == p.PromptContent {
		return false, nil
	}

	inUse, err := s.promptInUse(ctx, p.JobPostID, p.PromptVersion)
	if err != nil {
		return false, err
	}
	if inUse {
		return false, records.Immutable(records.TablePrompts, key.String(), "prompt_content")
	}

	if err := s.write(ctx, records.TablePrompts, key, encodePrompt(p)); err != nil {
		return false, err
	}
	return false, nil
}

// GetPrompt returns the exact (job, version) prompt.
func (s *Store) GetPrompt(ctx context.Context, jobPostID, version string) (records.Prompt, error) {
	rows, err := s.read(ctx, records.TablePrompts)
	if err != nil {
		return records.Prompt{}, err
	}

	key := promptKey(jobPostID, version)
	row, ok := findRow(rows, key)
	if !ok {
		return records.Prompt{}, records.NotFound(records.TablePrompts, key.String())
	}
	return decodePrompt(row)
}

// GetDefaultPrompt resolves the prompt through JobPost.default_prompt_version.
func (s *Store) GetDefaultPrompt(ctx context.Context, jobPostID string) (records.Prompt, error) {
	job, err := s.GetJobPost(ctx, jobPostID)
	if err != nil {
		return records.Prompt{}, err
	}

	if job.DefaultPromptVersion == "" {
		return records.Prompt{}, records.Configuration(records.TableJobPosts, jobPostID, "default_prompt_version is not set")
	}

	return s.GetPrompt(ctx, jobPostID, job.DefaultPromptVersion)
}

// ListPrompts returns the prompt versions of a job post in table order.
func (s *Store) ListPrompts(ctx context.Context, jobPostID string) ([]records.Prompt, error) {
	rows, err := s.read(ctx, records.TablePrompts)
	if err != nil {
		return nil, err
	}

	var out []records.Prompt
	for _, row := range rows {
		if row["job_post_id"] != jobPostID {
			continue
		}
		p, err := decodePrompt(row)
		if err != nil {
			s.logger.Warn("skipping malformed prompt row", zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) requirePrompt(ctx context.Context, jobPostID, version string) error {
	if _, err := s.GetPrompt(ctx, jobPostID, version); err != nil {
		if records.Kind(err) == records.ErrNotFound {
			return records.Referential(records.TablePrompts, promptKey(jobPostID, version).String(),
				"prompt version %q does not exist for job post %q", version, jobPostID)
		}
		return err
	}
	return nil
}

func (s *Store) promptInUse(ctx context.Context, jobPostID, version string) (bool, error) {
	rows, err := s.read(ctx, records.TableEvaluations)
	if err != nil {
		return false, err
	}

	_, ok := findRow(rows, tables.Key{
		records.FieldJobPostID:     jobPostID,
		records.FieldPromptVersion: version,
	})
	return ok, nil
}
