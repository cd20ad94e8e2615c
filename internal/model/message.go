package model

// Gmail label ids consumed by the engine.
const (
	LabelSpam  = "SPAM"
	LabelTrash = "TRASH"
)

// SpamConfidence is the three-way classification outcome.
type SpamConfidence string

const (
	DefinitelySpam   SpamConfidence = "definitely_spam"
	LikelySpam       SpamConfidence = "likely_spam"
	MightBeImportant SpamConfidence = "might_be_important"
)

// Valid reports whether the confidence is one of the three tiers.
func (s SpamConfidence) Valid() bool {
	switch s {
	case DefinitelySpam, LikelySpam, MightBeImportant:
		return true
	}
	return false
}

// MessageSummary is the transient view of one mailbox message produced by a
// scan. It is never persisted; it lives for the duration of a run.
type MessageSummary struct {
	ID                 string `json:"id"`
	Sender             string `json:"sender"`
	SenderEmail        string `json:"senderEmail"`
	Subject            string `json:"subject"`
	Snippet            string `json:"snippet"`
	HasListUnsubscribe bool   `json:"hasListUnsubscribe"`
	UnsubscribeLink    string `json:"unsubscribeLink,omitempty"`
	SourceLabel        string `json:"sourceLabel"`
	AccountID          string `json:"accountId"`
}

// ClassificationResult is one classifier verdict, joined back to the message
// by id.
type ClassificationResult struct {
	ID             string         `json:"id"`
	SpamConfidence SpamConfidence `json:"spamConfidence"`
	Reasoning      string         `json:"reasoning"`
}

// DeleteResult is the outcome of one provider delete call. A provider 404 is
// an effectively-deleted outcome: Success is true and NotFound marks it for
// logging.
type DeleteResult struct {
	Success  bool
	NotFound bool
	Reason   string
}
