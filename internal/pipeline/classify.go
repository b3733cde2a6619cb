package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/model"
	"github.com/northquay/surveil-cli/internal/resilience"
	"github.com/northquay/surveil-cli/pkg/anthropic"
)

const classifySystemPrompt = `You are a compliance surveillance assistant reviewing dealing-desk communications for a brokerage.
Classify the communication's intent as exactly one of:
- "instruction": a request to place, modify, or cancel an order
- "confirmation": a post-trade confirmation of an already executed order
- "other": market commentary, research, administrative mail, or anything else

Respond with only a valid JSON object and no other text:
{"intent": "<instruction|confirmation|other>", "confidence": <integer 0-100>, "rationale": "<one short sentence>"}`

const classifyUserPrompt = `Channel: %s
Subject: %s
Sender: %s

Body:
%s

%s`

// Classifier is the first model stage: it labels a communication's raw
// intent. Its output is never final; the policy overlay runs on top.
type Classifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	// attachChars bounds how much attachment text goes into the prompt.
	attachChars int
}

// NewClassifier builds a classifier. maxRetries is the retry count after
// the first attempt.
func NewClassifier(client anthropic.Client, modelID string, maxTokens int64, maxRetries, attachChars int) *Classifier {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = maxRetries + 1
	retry.ShouldRetry = retryableCall
	retry.OnRetry = resilience.RetryLogger("anthropic", StageClassify)
	return &Classifier{
		client:      client,
		model:       modelID,
		maxTokens:   maxTokens,
		retry:       retry,
		attachChars: attachChars,
	}
}

// retryableCall treats API errors with retryable status codes and generic
// network failures as transient.
func retryableCall(err error) bool {
	if code := anthropic.StatusCode(err); code != 0 {
		return resilience.IsTransientHTTPStatus(code)
	}
	return resilience.IsTransient(err)
}

// Classify labels one communication. The returned result carries the raw
// model label; callers must apply the policy overlay before acting on it.
// After retry exhaustion the model error is surfaced, attributed to this
// communication, never defaulted.
func (c *Classifier) Classify(ctx context.Context, comm model.CommunicationRecord) (model.ClassificationResult, anthropic.TokenUsage, error) {
	req := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: c.userPrompt(comm)},
		},
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return model.ClassificationResult{}, anthropic.TokenUsage{}, eris.Wrap(err, "classify: model call")
	}

	result, err := parseClassification(resp.Text(), comm.ID)
	if err != nil {
		return model.ClassificationResult{}, resp.Usage, err
	}

	zap.L().Debug("classified",
		zap.String("comm_id", comm.ID),
		zap.String("raw_intent", string(result.RawIntent)),
		zap.Int("confidence", result.Confidence))
	return result, resp.Usage, nil
}

func (c *Classifier) userPrompt(comm model.CommunicationRecord) string {
	return fmt.Sprintf(classifyUserPrompt,
		comm.Channel, comm.Subject, comm.Sender, comm.Body,
		comm.AttachmentExcerpt(c.attachChars))
}

// parseClassification decodes the classifier's strict-JSON reply. A missing
// or unknown intent label is a malformed response, not a default.
func parseClassification(text, commID string) (model.ClassificationResult, error) {
	var reply struct {
		Intent     string  `json:"intent"`
		Confidence flexInt `json:"confidence"`
		Rationale  string  `json:"rationale"`
	}
	if err := decodeResponse(text, StageClassify, &reply); err != nil {
		return model.ClassificationResult{}, err
	}

	intent := strings.ToLower(strings.TrimSpace(reply.Intent))
	if !model.ValidIntent(intent) {
		return model.ClassificationResult{}, &MalformedResponse{
			Stage: StageClassify,
			Raw:   text,
			Err:   eris.Errorf("invalid intent label %q", reply.Intent),
		}
	}

	return model.ClassificationResult{
		CommID:     commID,
		Intent:     model.Intent(intent),
		RawIntent:  model.Intent(intent),
		Confidence: int(reply.Confidence),
		Rationale:  reply.Rationale,
		Provenance: model.ProvenanceRawModel,
	}, nil
}
