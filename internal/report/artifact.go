package report

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/model"
	"github.com/northquay/surveil-cli/internal/pipeline"
)

// Artifact is the structured evidence-classification record for one run,
// keyed by communication id. It is what gets persisted with the run row
// and what downstream review tooling consumes.
type Artifact struct {
	RunDate        string                  `json:"run_date"`
	Summary        model.RunSummary        `json:"summary"`
	Communications map[string]CommEvidence `json:"communications"`
	Failures       []pipeline.Failure      `json:"failures,omitempty"`
}

// CommEvidence is everything the run concluded about one communication.
type CommEvidence struct {
	Channel        model.Channel               `json:"channel"`
	Classification model.ClassificationResult  `json:"classification"`
	Extraction     *model.ExtractionResult     `json:"extraction,omitempty"`
	Legacy         *model.ClassificationResult `json:"legacy,omitempty"`
	Match          model.MatchResult           `json:"match"`
}

// BuildArtifact assembles the evidence artifact from the run outputs.
func BuildArtifact(summary model.RunSummary, comms []model.ClassifiedCommunication, matches []model.MatchResult, failures []pipeline.Failure) *Artifact {
	matchByComm := make(map[string]model.MatchResult, len(matches))
	for _, m := range matches {
		matchByComm[m.CommID] = m
	}

	a := &Artifact{
		RunDate:        summary.RunDate,
		Summary:        summary,
		Communications: make(map[string]CommEvidence, len(comms)),
		Failures:       failures,
	}
	for _, cc := range comms {
		a.Communications[cc.Comm.ID] = CommEvidence{
			Channel:        cc.Comm.Channel,
			Classification: cc.Classification,
			Extraction:     cc.Extraction,
			Legacy:         cc.Legacy,
			Match:          matchByComm[cc.Comm.ID],
		}
	}
	return a
}

// JSON renders the artifact for persistence.
func (a *Artifact) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "artifact: marshal")
	}
	return data, nil
}

// WriteFile writes the artifact JSON to path.
func (a *Artifact) WriteFile(path string) error {
	data, err := a.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	zap.L().Info("evidence artifact written",
		zap.String("path", path),
		zap.Int("communications", len(a.Communications)),
		zap.Int("failures", len(a.Failures)))
	return nil
}
