package linkverify

import "time"

// BrokenLinkEvent describes a link that did not resolve. It is published for
// downstream processing and printed by the verify command.
type BrokenLinkEvent struct {
	URL        string    `json:"url"`
	Page       string    `json:"page"` // output-relative path of the page holding the link
	Text       string    `json:"text,omitempty"`
	Status     int       `json:"status,omitempty"` // HTTP status code (0 for non-HTTP errors)
	Error      string    `json:"error"`
	IsInternal bool      `json:"is_internal"`
	Timestamp  time.Time `json:"timestamp"`
}
