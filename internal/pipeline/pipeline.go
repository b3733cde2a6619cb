package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/northquay/surveil-cli/internal/config"
	"github.com/northquay/surveil-cli/internal/model"
	"github.com/northquay/surveil-cli/pkg/anthropic"
)

// Pipeline runs the two-stage classification over a batch of
// communications: classify, policy overlay, then extraction for
// instructions. Communications are independent; a bounded worker pool and a
// shared rate limiter keep the upstream happy.
type Pipeline struct {
	classifier *Classifier
	extractor  *Extractor
	legacy     *LegacyClassifier

	concurrency int
	limiter     *rate.Limiter
}

// New wires a pipeline from configuration.
func New(client anthropic.Client, aiCfg config.AnthropicConfig, plCfg config.PipelineConfig) *Pipeline {
	p := &Pipeline{
		classifier:  NewClassifier(client, aiCfg.ClassifierModel, aiCfg.MaxTokens, plCfg.MaxRetries, plCfg.AttachmentChars),
		extractor:   NewExtractor(client, aiCfg.ExtractorModel, aiCfg.MaxTokens, plCfg.MaxRetries, plCfg.AttachmentChars),
		concurrency: plCfg.Concurrency,
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if plCfg.RatePerSec > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(plCfg.RatePerSec), 1)
	}
	if plCfg.CompareLegacy {
		p.legacy = NewLegacyClassifier(client, aiCfg.ClassifierModel, aiCfg.MaxTokens, plCfg.MaxRetries, plCfg.AttachmentChars)
	}
	return p
}

// Process classifies every communication in the batch. One communication's
// failure never aborts the others: the batch returns every success plus a
// failure list with stage attribution. Results preserve input order.
func (p *Pipeline) Process(ctx context.Context, comms []model.CommunicationRecord) ([]model.ClassifiedCommunication, []Failure, anthropic.TokenUsage) {
	results := make([]*model.ClassifiedCommunication, len(comms))

	var mu sync.Mutex
	var failures []Failure
	var usage anthropic.TokenUsage

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, comm := range comms {
		g.Go(func() error {
			cc, callUsage, stage, err := p.processOne(gCtx, comm)

			mu.Lock()
			defer mu.Unlock()
			usage.Add(callUsage)
			if err != nil {
				failures = append(failures, Failure{
					CommID: comm.ID,
					Stage:  stage,
					Err:    err,
					Reason: err.Error(),
				})
				zap.L().Warn("communication failed",
					zap.String("comm_id", comm.ID),
					zap.String("stage", stage),
					zap.Error(err))
				return nil
			}
			results[i] = cc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.ClassifiedCommunication, 0, len(comms))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	zap.L().Info("batch classified",
		zap.Int("communications", len(comms)),
		zap.Int("succeeded", len(out)),
		zap.Int("failed", len(failures)))
	return out, failures, usage
}

// processOne runs the full stage sequence for one communication and names
// the failing stage itself; the caller never infers it from the error
// shape. A rate-wait error is attributed to the stage it was admitting, with
// the wait named in the wrapped error, so a cancelled batch reads as such.
func (p *Pipeline) processOne(ctx context.Context, comm model.CommunicationRecord) (*model.ClassifiedCommunication, anthropic.TokenUsage, string, error) {
	var usage anthropic.TokenUsage

	if err := p.wait(ctx); err != nil {
		return nil, usage, StageClassify, eris.Wrap(err, "classify: rate wait")
	}
	raw, classifyUsage, err := p.classifier.Classify(ctx, comm)
	usage.Add(classifyUsage)
	if err != nil {
		return nil, usage, StageClassify, err
	}

	final := ApplyOverlay(comm, raw)
	cc := &model.ClassifiedCommunication{
		Comm:           comm,
		Classification: final,
	}

	if final.Intent == model.IntentInstruction {
		if err := p.wait(ctx); err != nil {
			return cc, usage, StageExtract, eris.Wrap(err, "extract: rate wait")
		}
		extraction, extractUsage, err := p.extractor.Extract(ctx, comm)
		usage.Add(extractUsage)
		if err != nil {
			return cc, usage, StageExtract, err
		}
		cc.Extraction = extraction
	}

	if p.legacy != nil {
		if err := p.wait(ctx); err != nil {
			// Comparison-only output; a cancelled wait here must not sink
			// an already-classified record.
			zap.L().Warn("legacy comparison skipped",
				zap.String("comm_id", comm.ID),
				zap.Error(err))
			return cc, usage, "", nil
		}
		legacy, legacyUsage, err := p.legacy.Classify(ctx, comm)
		usage.Add(legacyUsage)
		if err != nil {
			// Its failure never sinks the record either.
			zap.L().Warn("legacy comparison failed",
				zap.String("comm_id", comm.ID),
				zap.Error(err))
		} else {
			cc.Legacy = &legacy
		}
	}

	return cc, usage, "", nil
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
