package markup

import "fmt"

// ParseError reports malformed block nesting. Line and Column are 1-based and
// absolute within the source file.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}
