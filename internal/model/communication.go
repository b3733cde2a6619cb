// Package model defines the core records flowing through the surveillance
// pipeline: communications, orders, classification and extraction outputs,
// correlation matches, and the resolved audit rows.
package model

import "time"

// Channel identifies the medium a communication arrived on.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelCall  Channel = "call"
)

// AttachmentText is an attachment with its pre-extracted text content.
// Extraction of text from PDFs and images happens upstream; by the time a
// communication reaches the pipeline the attachment is plain text.
type AttachmentText struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
}

// CommunicationRecord is a single piece of communication evidence: an email
// from the dealing-desk mailbox or a recorded client call. Records are
// immutable once ingested; every run recomputes derived data from scratch.
type CommunicationRecord struct {
	ID           string           `json:"id"`
	Channel      Channel          `json:"channel"`
	Subject      string           `json:"subject,omitempty"`
	Sender       string           `json:"sender,omitempty"`
	Participants []string         `json:"participants,omitempty"`
	Body         string           `json:"body"`
	Attachments  []AttachmentText `json:"attachments,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`

	// ClientID is set when the communication can be attributed to a known
	// client before classification (calls resolved via the client registry).
	// Empty for most emails.
	ClientID string `json:"client_id,omitempty"`

	// ClientCandidates holds every client id a call's phone number maps to
	// when the registry is ambiguous. ClientID is the first candidate.
	ClientCandidates []string `json:"client_candidates,omitempty"`

	// OrderRefs are externally visible exchange order identifiers harvested
	// from the subject, body, or thread. Used for exact-id correlation.
	OrderRefs []string `json:"order_refs,omitempty"`
}

// AttachmentExcerpt serializes attachment names and text into a single
// block suitable for inclusion in a model prompt.
func (c CommunicationRecord) AttachmentExcerpt(maxLen int) string {
	if len(c.Attachments) == 0 {
		return ""
	}
	var b []byte
	for _, a := range c.Attachments {
		b = append(b, "Attachment: "...)
		b = append(b, a.Name...)
		b = append(b, '\n')
		if a.Text != "" {
			b = append(b, a.Text...)
			b = append(b, '\n')
		}
	}
	if maxLen > 0 && len(b) > maxLen {
		b = b[:maxLen]
	}
	return string(b)
}
