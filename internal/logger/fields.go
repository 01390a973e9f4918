package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/records"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"

	FieldTable = "table"
	FieldKey   = "key"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the AI provider and model of an LLM call.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// RecordFields identifies the row a store operation touched.
func RecordFields(table, key string) []zap.Field {
	return StringFields(
		StringField{Key: FieldTable, Value: table},
		StringField{Key: FieldKey, Value: key},
	)
}

// EvaluationFields summarizes an evaluation without its free-text fields.
func EvaluationFields(ev records.CandidateEvaluation) []zap.Field {
	fields := StringFields(
		StringField{Key: records.FieldEvaluationID, Value: ev.EvaluationID},
		StringField{Key: records.FieldCandidateID, Value: ev.CandidateID},
		StringField{Key: records.FieldJobPostID, Value: ev.JobPostID},
		StringField{Key: records.FieldPromptVersion, Value: ev.PromptVersion},
		StringField{Key: records.FieldFitLabel, Value: string(ev.FitLabel)},
		StringField{Key: records.FieldDecision, Value: string(ev.Decision)},
		StringField{Key: records.FieldTeamtailorStatus, Value: string(ev.TeamtailorStatus)},
	)
	if ev.FitScore != 0 {
		fields = append(fields, zap.Int(records.FieldFitScore, ev.FitScore))
	}
	return fields
}
