package render

import "fmt"

// RenderError reports a cross reference or relative link that does not
// resolve against the corpus index.
type RenderError struct {
	Slug    string
	Target  string
	Message string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Slug, e.Message, e.Target)
}
