package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/northquay/surveil-cli/internal/model"
	"github.com/northquay/surveil-cli/internal/resilience"
	"github.com/northquay/surveil-cli/pkg/anthropic"
)

// legacySystemPrompt is the retired single-stage prompt that classified and
// summarized in one call. It is kept only so runs can record how the old
// classifier would have labeled each communication; its output is never
// used for routing or extraction.
const legacySystemPrompt = `Review the dealing-desk communication and decide whether it is a trade instruction, a trade confirmation, or something else.
Respond with only a valid JSON object:
{"intent": "<instruction|confirmation|other>", "confidence": <integer 0-100>, "rationale": "<one short sentence>"}`

// LegacyClassifier is the pre-overlay single-stage classifier, retained for
// side-by-side comparison with the canonical two-stage pipeline.
type LegacyClassifier struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	retry       resilience.RetryConfig
	attachChars int
}

// NewLegacyClassifier builds the comparison classifier.
func NewLegacyClassifier(client anthropic.Client, modelID string, maxTokens int64, maxRetries, attachChars int) *LegacyClassifier {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = maxRetries + 1
	retry.ShouldRetry = retryableCall
	retry.OnRetry = resilience.RetryLogger("anthropic", StageLegacy)
	return &LegacyClassifier{
		client:      client,
		model:       modelID,
		maxTokens:   maxTokens,
		retry:       retry,
		attachChars: attachChars,
	}
}

// Classify runs the legacy single-stage prompt. No overlay is applied; the
// raw label is the result.
func (l *LegacyClassifier) Classify(ctx context.Context, comm model.CommunicationRecord) (model.ClassificationResult, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(classifyUserPrompt,
		comm.Channel, comm.Subject, comm.Sender, comm.Body,
		comm.AttachmentExcerpt(l.attachChars))

	req := anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(legacySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return l.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return model.ClassificationResult{}, anthropic.TokenUsage{}, eris.Wrap(err, "legacy: model call")
	}

	result, err := parseClassification(resp.Text(), comm.ID)
	if err != nil {
		// Re-attribute the parse failure to the legacy stage.
		var mr *MalformedResponse
		if errors.As(err, &mr) {
			mr.Stage = StageLegacy
		}
		return model.ClassificationResult{}, resp.Usage, err
	}
	return result, resp.Usage, nil
}
