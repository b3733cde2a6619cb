package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/northquay/surveil-cli/internal/config"
	"github.com/northquay/surveil-cli/internal/model"
	"github.com/northquay/surveil-cli/pkg/anthropic"
)

func testPipeline(client anthropic.Client, compareLegacy bool) *Pipeline {
	return New(client,
		config.AnthropicConfig{
			ClassifierModel: "claude-haiku-4-5-20251001",
			ExtractorModel:  "claude-sonnet-4-5-20250929",
			MaxTokens:       1500,
		},
		config.PipelineConfig{
			MaxRetries:      0,
			Concurrency:     4,
			CompareLegacy:   compareLegacy,
			AttachmentChars: 2000,
		})
}

// stageReq matches a request by its system prompt and a substring of the
// user message, so one mock can answer differently per comm and per stage.
func stageReq(systemPrompt, bodySubstr string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		if len(req.System) == 0 || req.System[0].Text != systemPrompt {
			return false
		}
		return bodySubstr == "" || strings.Contains(req.Messages[0].Content, bodySubstr)
	})
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	comms := []model.CommunicationRecord{
		{ID: "c1", Channel: model.ChannelEmail, Subject: "hello", Body: "market chat only"},
		{ID: "c2", Channel: model.ChannelEmail, Subject: "order", Body: "please execute 100 TCS for C001"},
		{ID: "c3", Channel: model.ChannelEmail, Subject: "broken", Body: "this one fails upstream"},
	}

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "market chat only")).
		Return(textResponse(`{"intent": "other", "confidence": 90, "rationale": "chat"}`), nil).Once()
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "please execute")).
		Return(textResponse(`{"intent": "instruction", "confidence": 95, "rationale": "execution request"}`), nil).Once()
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "fails upstream")).
		Return(nil, errors.New("invalid_request_error: boom")).Once()
	client.On("CreateMessage", mock.Anything, stageReq(extractSystemPrompt, "please execute")).
		Return(textResponse(`{"instruction_type": "client_direct", "order_details": [{"symbol": "TCS", "quantity": "100", "client_code": "C001", "buy_sell": "BUY", "price": null, "validity": null}]}`), nil).Once()

	results, failures, usage := testPipeline(client, false).Process(context.Background(), comms)

	require.Len(t, results, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "c3", failures[0].CommID)
	assert.Equal(t, StageClassify, failures[0].Stage)
	assert.NotEmpty(t, failures[0].Reason)

	// Input order preserved among successes.
	assert.Equal(t, "c1", results[0].Comm.ID)
	assert.Equal(t, "c2", results[1].Comm.ID)

	// Extraction exists iff final intent is instruction.
	assert.Nil(t, results[0].Extraction)
	require.NotNil(t, results[1].Extraction)
	assert.Equal(t, model.InstructionClientDirect, results[1].Extraction.InstructionType)

	// Three calls returned responses; their usage is accumulated.
	assert.Equal(t, int64(300), usage.InputTokens)
	client.AssertExpectations(t)
}

func TestProcessPolicyOverrideTriggersExtraction(t *testing.T) {
	// Raw classifier says other, but the order table forces instruction,
	// so the extractor must still run.
	comm := model.CommunicationRecord{
		ID:      "c10",
		Channel: model.ChannelEmail,
		Subject: "Please process order",
		Body:    "Client Code | Symbol | Qty | Price | Buy/Sell\nC001 | INFY | 50 | 1520 | BUY",
	}

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "")).
		Return(textResponse(`{"intent": "other", "confidence": 60, "rationale": "unclear"}`), nil).Once()
	client.On("CreateMessage", mock.Anything, stageReq(extractSystemPrompt, "")).
		Return(textResponse(`{"instruction_type": "client_direct", "order_details": [{"symbol": "INFY", "quantity": "50", "client_code": "C001", "buy_sell": "BUY", "price": "1520", "validity": null}]}`), nil).Once()

	results, failures, _ := testPipeline(client, false).Process(context.Background(), []model.CommunicationRecord{comm})
	require.Empty(t, failures)
	require.Len(t, results, 1)

	assert.Equal(t, model.IntentInstruction, results[0].Classification.Intent)
	assert.Equal(t, model.IntentOther, results[0].Classification.RawIntent)
	assert.Equal(t, model.ProvenancePolicyOverride, results[0].Classification.Provenance)
	require.NotNil(t, results[0].Extraction)
	assert.NotEmpty(t, results[0].Extraction.Details)
	client.AssertExpectations(t)
}

func TestProcessExtractionFailureAttributed(t *testing.T) {
	comm := model.CommunicationRecord{
		ID:      "c20",
		Channel: model.ChannelEmail,
		Subject: "Order",
		Body:    "kindly execute the attached",
	}

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "")).
		Return(textResponse(`{"intent": "instruction", "confidence": 90, "rationale": "request"}`), nil).Once()
	client.On("CreateMessage", mock.Anything, stageReq(extractSystemPrompt, "")).
		Return(textResponse("no structure here at all"), nil).Once()

	results, failures, _ := testPipeline(client, false).Process(context.Background(), []model.CommunicationRecord{comm})
	assert.Empty(t, results)
	require.Len(t, failures, 1)
	assert.Equal(t, "c20", failures[0].CommID)
	assert.Equal(t, StageExtract, failures[0].Stage)
	assert.True(t, IsMalformed(failures[0].Err))
}

func TestProcessLegacyComparison(t *testing.T) {
	comm := model.CommunicationRecord{
		ID:      "c30",
		Channel: model.ChannelCall,
		Body:    "nothing actionable",
	}

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "")).
		Return(textResponse(`{"intent": "other", "confidence": 85, "rationale": "chat"}`), nil).Once()
	client.On("CreateMessage", mock.Anything, stageReq(legacySystemPrompt, "")).
		Return(textResponse(`{"intent": "confirmation", "confidence": 40, "rationale": "legacy view"}`), nil).Once()

	results, failures, _ := testPipeline(client, true).Process(context.Background(), []model.CommunicationRecord{comm})
	require.Empty(t, failures)
	require.Len(t, results, 1)

	// Two-stage result is canonical; the legacy label is carried beside it
	// and never drives routing.
	assert.Equal(t, model.IntentOther, results[0].Classification.Intent)
	require.NotNil(t, results[0].Legacy)
	assert.Equal(t, model.IntentConfirmation, results[0].Legacy.Intent)
	assert.Nil(t, results[0].Extraction)
	client.AssertExpectations(t)
}

func TestProcessLegacyFailureDoesNotSinkRecord(t *testing.T) {
	comm := model.CommunicationRecord{ID: "c40", Channel: model.ChannelEmail, Body: "hello"}

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "")).
		Return(textResponse(`{"intent": "other", "confidence": 85, "rationale": "chat"}`), nil).Once()
	client.On("CreateMessage", mock.Anything, stageReq(legacySystemPrompt, "")).
		Return(nil, errors.New("invalid_request_error: legacy boom")).Once()

	results, failures, _ := testPipeline(client, true).Process(context.Background(), []model.CommunicationRecord{comm})
	assert.Empty(t, failures)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Legacy)
}

func TestProcessCancelledWaitBeforeLegacyKeepsRecord(t *testing.T) {
	comm := model.CommunicationRecord{ID: "c50", Channel: model.ChannelEmail, Body: "hello"}
	ctx, cancel := context.WithCancel(context.Background())

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "")).
		Run(func(mock.Arguments) { cancel() }).
		Return(textResponse(`{"intent": "other", "confidence": 85, "rationale": "chat"}`), nil).Once()

	p := New(client,
		config.AnthropicConfig{ClassifierModel: "claude-haiku-4-5-20251001", ExtractorModel: "claude-sonnet-4-5-20250929", MaxTokens: 1500},
		config.PipelineConfig{Concurrency: 1, RatePerSec: 1000, CompareLegacy: true, AttachmentChars: 2000})

	results, failures, _ := p.Process(ctx, []model.CommunicationRecord{comm})
	assert.Empty(t, failures)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Legacy)
	client.AssertExpectations(t)
}

func TestProcessCancelledWaitBeforeExtract(t *testing.T) {
	comm := model.CommunicationRecord{
		ID:      "c60",
		Channel: model.ChannelEmail,
		Subject: "Order",
		Body:    "kindly execute the attached",
	}
	ctx, cancel := context.WithCancel(context.Background())

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, stageReq(classifySystemPrompt, "")).
		Run(func(mock.Arguments) { cancel() }).
		Return(textResponse(`{"intent": "instruction", "confidence": 90, "rationale": "request"}`), nil).Once()

	p := New(client,
		config.AnthropicConfig{ClassifierModel: "claude-haiku-4-5-20251001", ExtractorModel: "claude-sonnet-4-5-20250929", MaxTokens: 1500},
		config.PipelineConfig{Concurrency: 1, RatePerSec: 1000, AttachmentChars: 2000})

	results, failures, _ := p.Process(ctx, []model.CommunicationRecord{comm})
	assert.Empty(t, results)
	require.Len(t, failures, 1)
	assert.Equal(t, StageExtract, failures[0].Stage)

	// The failure must read as a cancellation, not a model error.
	assert.True(t, errors.Is(failures[0].Err, context.Canceled))
	assert.Contains(t, failures[0].Reason, "rate wait")
	client.AssertExpectations(t)
}

func TestProcessEmptyBatch(t *testing.T) {
	client := new(mockAnthropicClient)
	results, failures, usage := testPipeline(client, false).Process(context.Background(), nil)
	assert.Empty(t, results)
	assert.Empty(t, failures)
	assert.Equal(t, int64(0), usage.InputTokens)
}
