package models

import "fmt"

// Message is the subject/body pair fetched from the mail provider for
// classification. Full content is fetched on demand and never stored.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Label is the closed set of classifier outcomes.
type Label string

const (
	LabelHam  Label = "ham"
	LabelSpam Label = "spam"
)

// ParseLabel maps a classifier response string onto the closed label set.
// Anything outside the set is a protocol violation and must fail closed so
// that ambiguous classifications never count toward either bucket.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelHam:
		return LabelHam, nil
	case LabelSpam:
		return LabelSpam, nil
	default:
		return "", fmt.Errorf("unrecognized label %q", s)
	}
}

// Classification is the classifier's verdict for a message.
type Classification struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}
