package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/hiring-pipeline/internal/ai"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/utils"
)

type structuredGenerator interface {
	GenerateStructured(ctx context.Context, system, message string, schema *genai.Schema) (string, error)
	Model() string
}

//go:embed system.md
var systemInstruction string

const defaultMaxLogLength = 200

// Assessor asks Gemini for an assessment constrained by a response schema and
// still validates the answer, since schema adherence is best effort.
type Assessor struct {
	generator structuredGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Assessor = (*Assessor)(nil)

func NewAssessor(generator structuredGenerator, logger *zap.Logger, maxLogLength int) *Assessor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Assessor{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (a *Assessor) Model() string {
	return a.generator.Model()
}

func (a *Assessor) Assess(ctx context.Context, prompt string) (*ai.Assessment, error) {
	a.logger.Debug("gemini assessment request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateStructured(ctx, systemInstruction, prompt, assessmentSchema())
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini assessment response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	assessment.Raw = raw
	return assessment, nil
}

func assessmentSchema() *genai.Schema {
	labels := records.EnumValues(records.FitLabels())
	minScore, maxScore := float64(records.MinFitScore), float64(records.MaxFitScore)

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			records.FieldFitLabel: {
				Type: genai.TypeString,
				Enum: labels,
			},
			records.FieldFitScore: {
				Type:    genai.TypeInteger,
				Minimum: &minScore,
				Maximum: &maxScore,
			},
			records.FieldReasons: {
				Type: genai.TypeString,
			},
			records.FieldRedFlags: {
				Type: genai.TypeString,
			},
		},
		Required:         []string{records.FieldFitLabel, records.FieldFitScore, records.FieldReasons},
		PropertyOrdering: []string{records.FieldFitLabel, records.FieldFitScore, records.FieldReasons, records.FieldRedFlags},
	}
}

// parseResponse decodes and validates the model answer. Anything that would
// violate the evaluation invariants is ai.ErrMalformedOutput.
func parseResponse(raw string) (*ai.Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedOutput, err)
	}

	label, err := records.ParseFitLabel(coerceString(data[records.FieldFitLabel]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedOutput, err)
	}

	score := coerceFloat(data[records.FieldFitScore])
	if math.IsNaN(score) || score != math.Trunc(score) {
		return nil, fmt.Errorf("%w: fit_score %v is not an integer", ai.ErrMalformedOutput, data[records.FieldFitScore])
	}

	assessment := &ai.Assessment{
		FitLabel: label,
		FitScore: int(score),
		Reasons:  coerceString(data[records.FieldReasons]),
		RedFlags: coerceRedFlags(data[records.FieldRedFlags]),
	}
	if err := assessment.Validate(); err != nil {
		return nil, err
	}
	return assessment, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceRedFlags accepts a string or a list of strings.
func coerceRedFlags(v any) string {
	list, ok := v.([]any)
	if !ok {
		return coerceString(v)
	}

	flags := make([]string, 0, len(list))
	for _, item := range list {
		if s := coerceString(item); s != "" {
			flags = append(flags, s)
		}
	}
	return strings.Join(flags, "; ")
}
