// Package seed loads job posts and their prompt versions from a YAML file into
// the record store.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/hiring-pipeline/internal/records"
)

// File is the seed document.
type File struct {
	JobPosts []JobPost `yaml:"job_posts"`
}

type JobPost struct {
	ID                   string   `yaml:"id"`
	Name                 string   `yaml:"name"`
	Active               *bool    `yaml:"active"`
	GetOnBoardURL        string   `yaml:"getonboard_url"`
	DefaultPromptVersion string   `yaml:"default_prompt_version"`
	Prompts              []Prompt `yaml:"prompts"`
}

// Prompt holds inline content or a path to a file with it. Relative paths are
// resolved against the seed file directory.
type Prompt struct {
	Version string `yaml:"version"`
	Content string `yaml:"content"`
	File    string `yaml:"file"`
}

type Summary struct {
	JobPostsCreated int `json:"job_posts_created"`
	JobPostsUpdated int `json:"job_posts_updated"`
	PromptsCreated  int `json:"prompts_created"`
	PromptsExisting int `json:"prompts_existing"`
}

type recordStore interface {
	UpsertJobPost(ctx context.Context, j records.JobPost) (records.JobPost, bool, error)
	UpsertPrompt(ctx context.Context, p records.Prompt) (bool, error)
	SetDefaultPromptVersion(ctx context.Context, jobPostID, version string) (records.JobPost, error)
}

// Parse decodes and validates a seed document. Prompt files are read relative
// to baseDir.
func Parse(data []byte, baseDir string) (File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, fmt.Errorf("seed: document is empty")
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}

	for i := range f.JobPosts {
		j := &f.JobPosts[i]
		j.ID = strings.TrimSpace(j.ID)
		if j.ID == "" {
			return File{}, fmt.Errorf("seed: job post #%d has no id", i+1)
		}

		versions := map[string]bool{}
		for k := range j.Prompts {
			p := &j.Prompts[k]
			p.Version = strings.TrimSpace(p.Version)
			if p.Version == "" {
				return File{}, fmt.Errorf("seed: job post %s: prompt #%d has no version", j.ID, k+1)
			}
			if versions[p.Version] {
				return File{}, fmt.Errorf("seed: job post %s: duplicate prompt version %s", j.ID, p.Version)
			}
			versions[p.Version] = true

			if p.File != "" {
				if p.Content != "" {
					return File{}, fmt.Errorf("seed: job post %s prompt %s: content and file are exclusive", j.ID, p.Version)
				}
				path := p.File
				if !filepath.IsAbs(path) {
					path = filepath.Join(baseDir, path)
				}
				content, err := os.ReadFile(path)
				if err != nil {
					return File{}, fmt.Errorf("seed: job post %s prompt %s: %w", j.ID, p.Version, err)
				}
				p.Content = string(content)
			}
		}
	}

	return f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Apply upserts every job post and prompt, then sets default prompt versions.
// Prompts already referenced by evaluations cannot change content; the store
// rejects such edits and Apply stops at the first error.
func Apply(ctx context.Context, store recordStore, f File, log *zap.Logger) (Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var summary Summary
	for _, j := range f.JobPosts {
		active := true
		if j.Active != nil {
			active = *j.Active
		}

		_, created, err := store.UpsertJobPost(ctx, records.JobPost{
			JobPostID:     j.ID,
			JobPostName:   j.Name,
			Active:        active,
			GetOnBoardURL: j.GetOnBoardURL,
		})
		if err != nil {
			return summary, fmt.Errorf("job post %s: %w", j.ID, err)
		}
		if created {
			summary.JobPostsCreated++
		} else {
			summary.JobPostsUpdated++
		}

		for _, p := range j.Prompts {
			created, err := store.UpsertPrompt(ctx, records.Prompt{
				JobPostID:     j.ID,
				PromptVersion: p.Version,
				PromptContent: p.Content,
			})
			if err != nil {
				return summary, fmt.Errorf("job post %s prompt %s: %w", j.ID, p.Version, err)
			}
			if created {
				summary.PromptsCreated++
			} else {
				summary.PromptsExisting++
			}
		}

		if v := strings.TrimSpace(j.DefaultPromptVersion); v != "" {
			if _, err := store.SetDefaultPromptVersion(ctx, j.ID, v); err != nil {
				return summary, fmt.Errorf("job post %s: %w", j.ID, err)
			}
		}

		log.Info("job post seeded",
			zap.String(records.FieldJobPostID, j.ID),
			zap.Int("prompts", len(j.Prompts)),
			zap.String("default_prompt_version", j.DefaultPromptVersion),
		)
	}

	return summary, nil
}
