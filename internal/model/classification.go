package model

// Intent is the coarse label assigned to a communication.
type Intent string

const (
	IntentInstruction  Intent = "instruction"
	IntentConfirmation Intent = "confirmation"
	IntentOther        Intent = "other"
)

// AllIntents returns the valid intent labels.
func AllIntents() []Intent {
	return []Intent{IntentInstruction, IntentConfirmation, IntentOther}
}

// ValidIntent reports whether s is one of the defined intent labels.
func ValidIntent(s string) bool {
	for _, intent := range AllIntents() {
		if Intent(s) == intent {
			return true
		}
	}
	return false
}

// Provenance records whether the final intent came straight from the model
// or was rewritten by the deterministic policy overlay.
type Provenance string

const (
	ProvenanceRawModel       Provenance = "raw-model"
	ProvenancePolicyOverride Provenance = "policy-override"
)

// ClassificationResult is the final intent decision for one communication.
// RawIntent preserves the classifier's pre-overlay label for audit.
type ClassificationResult struct {
	CommID     string     `json:"comm_id"`
	Intent     Intent     `json:"intent"`
	RawIntent  Intent     `json:"raw_intent"`
	Confidence int        `json:"confidence"` // 0-100
	Rationale  string     `json:"rationale,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// InstructionType classifies how an instruction reached the desk.
type InstructionType string

const (
	InstructionRMForwarded  InstructionType = "rm_forwarded"
	InstructionClientDirect InstructionType = "client_direct"
	InstructionUnknown      InstructionType = "unknown"
)

// OrderDetail is one extracted order tuple. Fields are pointers because the
// extractor tolerates partial rows; a nil field means the source text never
// stated the value.
type OrderDetail struct {
	ClientCode *string `json:"client_code"`
	Symbol     *string `json:"symbol"`
	Quantity   *string `json:"quantity"`
	Price      *string `json:"price"` // numeric, "CMP", or "LIMIT 102-103"
	Side       *string `json:"buy_sell"`
	Validity   *string `json:"validity"`
}

// Empty reports whether the detail carries no usable order attribute.
func (d OrderDetail) Empty() bool {
	return d.ClientCode == nil && d.Symbol == nil && d.Quantity == nil &&
		d.Price == nil && d.Side == nil
}

// ExtractionResult holds the structured order attributes pulled from an
// instruction communication. It exists only when the final intent is
// instruction.
type ExtractionResult struct {
	CommID          string          `json:"comm_id"`
	InstructionType InstructionType `json:"instruction_type"`
	Details         []OrderDetail   `json:"details"`
}

// ClassifiedCommunication bundles a communication with its pipeline outputs.
// Extraction is nil unless Classification.Intent == IntentInstruction.
type ClassifiedCommunication struct {
	Comm           CommunicationRecord   `json:"comm"`
	Classification ClassificationResult  `json:"classification"`
	Extraction     *ExtractionResult     `json:"extraction,omitempty"`
	Legacy         *ClassificationResult `json:"legacy,omitempty"` // comparison only
}
