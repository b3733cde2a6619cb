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

const extractSystemPrompt = `You are a compliance surveillance assistant. The communication below has been identified as a trade instruction.
Determine how the instruction reached the desk and extract every order it requests.

instruction_type is one of:
- "rm_forwarded": a relationship manager forwarded the client's instruction
- "client_direct": the client wrote to the desk directly
- "unknown": cannot be determined

For each order fill what the text states and use null for anything not stated. Quantity and price are copied verbatim (price may be "CMP" or a band like "102-103").

Respond with only a valid JSON object and no other text:
{"instruction_type": "<rm_forwarded|client_direct|unknown>", "order_details": [{"client_code": <string|null>, "symbol": <string|null>, "quantity": <string|null>, "price": <string|null>, "buy_sell": <string|null>, "validity": <string|null>}]}`

const extractUserPrompt = `Subject: %s
Sender: %s

Body:
%s

%s`

// Extractor is the second model stage. It runs only for communications
// whose final intent is instruction.
type Extractor struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	retry       resilience.RetryConfig
	attachChars int
}

// NewExtractor builds an extractor with the same retry contract as the
// classifier.
func NewExtractor(client anthropic.Client, modelID string, maxTokens int64, maxRetries, attachChars int) *Extractor {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = maxRetries + 1
	retry.ShouldRetry = retryableCall
	retry.OnRetry = resilience.RetryLogger("anthropic", StageExtract)
	return &Extractor{
		client:      client,
		model:       modelID,
		maxTokens:   maxTokens,
		retry:       retry,
		attachChars: attachChars,
	}
}

// Extract pulls structured order attributes out of an instruction
// communication. Partial rows are kept; rows with every attribute null are
// dropped.
func (e *Extractor) Extract(ctx context.Context, comm model.CommunicationRecord) (*model.ExtractionResult, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(extractUserPrompt,
		comm.Subject, comm.Sender, comm.Body,
		comm.AttachmentExcerpt(e.attachChars))

	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(extractSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, eris.Wrap(err, "extract: model call")
	}

	result, err := parseExtraction(resp.Text(), comm.ID)
	if err != nil {
		return nil, resp.Usage, err
	}

	zap.L().Debug("extracted",
		zap.String("comm_id", comm.ID),
		zap.String("instruction_type", string(result.InstructionType)),
		zap.Int("orders", len(result.Details)))
	return result, resp.Usage, nil
}

func parseExtraction(text, commID string) (*model.ExtractionResult, error) {
	var reply struct {
		InstructionType string              `json:"instruction_type"`
		OrderDetails    []model.OrderDetail `json:"order_details"`
	}
	if err := decodeResponse(text, StageExtract, &reply); err != nil {
		return nil, err
	}

	result := &model.ExtractionResult{
		CommID:          commID,
		InstructionType: normalizeInstructionType(reply.InstructionType),
	}
	for _, d := range reply.OrderDetails {
		if d.Empty() {
			continue
		}
		result.Details = append(result.Details, d)
	}
	return result, nil
}

func normalizeInstructionType(s string) model.InstructionType {
	switch model.InstructionType(strings.ToLower(strings.TrimSpace(s))) {
	case model.InstructionRMForwarded:
		return model.InstructionRMForwarded
	case model.InstructionClientDirect:
		return model.InstructionClientDirect
	default:
		return model.InstructionUnknown
	}
}
