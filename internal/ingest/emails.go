package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/model"
)

// emailEnvelope is the JSON schema of the mailbox export. Bodies arrive
// already cleaned (quoted history and signatures stripped) and attachment
// text is pre-extracted upstream.
type emailEnvelope struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	Sender      string   `json:"sender"`
	From        string   `json:"from"`
	To          []string `json:"to"`
	Timestamp   string   `json:"timestamp"`
	Body        string   `json:"body"`
	Attachments []struct {
		Name string `json:"name"`
		Text string `json:"text"`
	} `json:"attachments"`
}

var emailTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02-01-2006 15:04:05",
}

// LoadEmails reads the mailbox export and returns email communication
// records with order references harvested from subject, body, and
// attachment text.
func LoadEmails(path string) ([]model.CommunicationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: "email export " + path, Err: err}
	}

	var envelopes []emailEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, &ConfigError{Source: "email export " + path, Err: err}
	}

	comms := make([]model.CommunicationRecord, 0, len(envelopes))
	for i, env := range envelopes {
		sender := env.Sender
		if sender == "" {
			sender = env.From
		}

		comm := model.CommunicationRecord{
			ID:           env.ID,
			Channel:      model.ChannelEmail,
			Subject:      env.Subject,
			Sender:       sender,
			Participants: env.To,
			Body:         env.Body,
		}
		if comm.ID == "" {
			comm.ID = fmt.Sprintf("email-%04d", i+1)
		}
		for _, a := range env.Attachments {
			comm.Attachments = append(comm.Attachments, model.AttachmentText{Name: a.Name, Text: a.Text})
		}
		for _, layout := range emailTimeLayouts {
			if ts, err := time.Parse(layout, env.Timestamp); err == nil {
				comm.Timestamp = ts
				break
			}
		}

		texts := []string{env.Subject, env.Body}
		for _, a := range env.Attachments {
			texts = append(texts, a.Text)
		}
		comm.OrderRefs = HarvestOrderRefs(texts...)

		comms = append(comms, comm)
	}

	zap.L().Info("emails loaded",
		zap.String("file", path),
		zap.Int("emails", len(comms)))
	return comms, nil
}

// Exchange order numbers are long digit runs; 12+ digits avoids picking up
// phone numbers and client codes.
var bareOrderRef = regexp.MustCompile(`\b\d{12,19}\b`)

// labeledOrderRef catches ids explicitly introduced as order references,
// whatever their shape.
var labeledOrderRef = regexp.MustCompile(`(?i)order\s*(?:no|number|id|ref)\.?\s*[:#]?\s*([A-Za-z0-9/-]{6,25})`)

// HarvestOrderRefs extracts externally visible order identifiers from free
// text. Order of first appearance is preserved and duplicates dropped.
func HarvestOrderRefs(texts ...string) []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(ref string) {
		ref = strings.Trim(ref, ".,;:")
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	for _, text := range texts {
		for _, m := range labeledOrderRef.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
		for _, m := range bareOrderRef.FindAllString(text, -1) {
			add(m)
		}
	}
	return refs
}
