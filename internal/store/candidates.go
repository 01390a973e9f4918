package store

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/tables"
)

// UpsertCandidateRaw inserts c or updates the row matched by
// (source, source_candidate_id). On update the stored candidate_id and
// created_at are kept. The returned bool reports whether a row was created.
func (s *Store) UpsertCandidateRaw(ctx context.Context, c records.CandidateRaw) (records.CandidateRaw, bool, error) {
	if err := validateCandidate(&c); err != nil {
		return records.CandidateRaw{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read(ctx, records.TableCandidates)
	if err != nil {
		return records.CandidateRaw{}, false, err
	}

	naturalKey := tables.Key{
		"source":              string(c.Source),
		"source_candidate_id": c.SourceCandidateID,
	}

	if row, ok := findRow(rows, naturalKey); ok {
		existing, err := decodeCandidate(row)
		if err != nil {
			return records.CandidateRaw{}, false, err
		}

		c.CandidateID = existing.CandidateID
		c.CreatedAt = existing.CreatedAt

		if err := s.write(ctx, records.TableCandidates, tables.Key{"candidate_id": c.CandidateID}, encodeCandidate(c)); err != nil {
			return records.CandidateRaw{}, false, err
		}

		s.logger.Debug("candidate updated",
			zap.String("candidate_id", c.CandidateID),
			zap.String("natural_key", c.NaturalKey()),
		)
		return c, false, nil
	}

	c.CandidateID = s.newID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	if err := s.append(ctx, records.TableCandidates, c.CandidateID, encodeCandidate(c)); err != nil {
		return records.CandidateRaw{}, false, err
	}

	s.logger.Debug("candidate created",
		zap.String("candidate_id", c.CandidateID),
		zap.String("natural_key", c.NaturalKey()),
	)
	return c, true, nil
}

func validateCandidate(c *records.CandidateRaw) error {
	c.Email = strings.TrimSpace(c.Email)
	c.RawProfileURL = strings.TrimSpace(c.RawProfileURL)
	c.SourceCandidateID = strings.TrimSpace(c.SourceCandidateID)

	if !c.Source.Valid() {
		return records.Validation(records.TableCandidates, "source", "unknown source %q", c.Source)
	}
	if c.SourceCandidateID == "" {
		return records.Validation(records.TableCandidates, "source_candidate_id", "must not be empty")
	}
	if c.Email == "" {
		return records.Validation(records.TableCandidates, "email", "must not be empty")
	}
	if c.RawProfileURL == "" {
		return records.Validation(records.TableCandidates, "raw_profile_url", "must not be empty")
	}
	return nil
}

// GetCandidate returns the candidate with the given id.
func (s *Store) GetCandidate(ctx context.Context, candidateID string) (records.CandidateRaw, error) {
	rows, err := s.read(ctx, records.TableCandidates)
	if err != nil {
		return records.CandidateRaw{}, err
	}

	row, ok := findRow(rows, tables.Key{"candidate_id": candidateID})
	if !ok {
		return records.CandidateRaw{}, records.NotFound(records.TableCandidates, candidateID)
	}
	return decodeCandidate(row)
}

// FindCandidateBySource looks a candidate up by its natural key.
func (s *Store) FindCandidateBySource(ctx context.Context, source records.Source, sourceCandidateID string) (records.CandidateRaw, error) {
	rows, err := s.read(ctx, records.TableCandidates)
	if err != nil {
		return records.CandidateRaw{}, err
	}

	key := tables.Key{"source": string(source), "source_candidate_id": sourceCandidateID}
	row, ok := findRow(rows, key)
	if !ok {
		return records.CandidateRaw{}, records.NotFound(records.TableCandidates, key.String())
	}
	return decodeCandidate(row)
}

// ListCandidates returns every decodable candidate. Rows that fail to decode
// are logged and skipped.
func (s *Store) ListCandidates(ctx context.Context) ([]records.CandidateRaw, error) {
	rows, err := s.read(ctx, records.TableCandidates)
	if err != nil {
		return nil, err
	}

	out := make([]records.CandidateRaw, 0, len(rows))
	for _, row := range rows {
		c, err := decodeCandidate(row)
		if err != nil {
			s.logger.Warn("skipping malformed candidate row", zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
