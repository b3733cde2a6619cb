package pipeline

import (
	"regexp"
	"strings"

	"github.com/northquay/surveil-cli/internal/model"
)

// subjectGatePhrase must appear in the subject for a confirmation label to
// survive the overlay.
const subjectGatePhrase = "trade confirmation"

// instructionCues force the instruction label wherever they appear in a
// communication's content, regardless of the raw classifier output.
var instructionCues = []string{
	"please execute",
	"kindly execute",
	"approval to execute",
	"as per client instruction",
	"kindly process",
	"please process",
	"please place the order",
	"request you to execute",
}

// Column-heading groups that make a line of text look like an order-table
// header row. Headings match on word boundaries only, and at least three
// distinct groups must land on the same line; heading words scattered
// through running prose do not count. Date/expiry headings alone are not
// enough either.
var orderTableHeadings = map[string]*regexp.Regexp{
	"client":   regexp.MustCompile(`\b(?:client (?:code|id|name)|ucc)\b`),
	"symbol":   regexp.MustCompile(`\b(?:symbol|scrip|stock|instrument)\b`),
	"quantity": regexp.MustCompile(`\b(?:quantity|qty)\b`),
	"price":    regexp.MustCompile(`\b(?:price(?: band)?|rate)\b`),
	"side":     regexp.MustCompile(`\b(?:buy\s*/\s*sell|b/s|side|transaction type)\b`),
}

// ApplyOverlay runs the deterministic policy rules over the raw classifier
// output and the full communication text. It is pure: no model call, and
// identical inputs always produce the identical final label.
//
// Rule order: instruction precedence first (any cue or order-like table
// forces instruction, overriding everything), then the subject gate
// (confirmation only with "trade confirmation" in the subject), then the
// fallback to other.
func ApplyOverlay(comm model.CommunicationRecord, raw model.ClassificationResult) model.ClassificationResult {
	final := raw

	switch {
	case hasInstructionCue(comm) || hasOrderTable(comm):
		final.Intent = model.IntentInstruction
	case raw.Intent == model.IntentConfirmation && !subjectGate(comm.Subject):
		final.Intent = model.IntentOther
	}

	if final.Intent != raw.Intent {
		final.Provenance = model.ProvenancePolicyOverride
	}
	return final
}

func subjectGate(subject string) bool {
	return strings.Contains(strings.ToLower(subject), subjectGatePhrase)
}

// hasInstructionCue scans subject, body, and attachment text for the cue
// phrases.
func hasInstructionCue(comm model.CommunicationRecord) bool {
	for _, text := range commTexts(comm) {
		for _, cue := range instructionCues {
			if strings.Contains(text, cue) {
				return true
			}
		}
	}
	return false
}

// hasOrderTable reports whether the subject, body, or an attachment carries
// a line with column headings from at least three distinct order-table
// groups.
func hasOrderTable(comm model.CommunicationRecord) bool {
	for _, text := range commTexts(comm) {
		for _, line := range strings.Split(text, "\n") {
			groups := 0
			for _, heading := range orderTableHeadings {
				if heading.MatchString(line) {
					groups++
				}
			}
			if groups >= 3 {
				return true
			}
		}
	}
	return false
}

func commTexts(comm model.CommunicationRecord) []string {
	texts := []string{
		strings.ToLower(comm.Subject),
		strings.ToLower(comm.Body),
	}
	for _, a := range comm.Attachments {
		texts = append(texts, strings.ToLower(a.Text))
	}
	return texts
}
