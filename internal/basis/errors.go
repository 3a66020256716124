package basis

import "fmt"

// SyntaxError reports where a field failed to parse.
type SyntaxError struct {
	Field string
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("basis: %s %q at offset %d: %s", e.Field, e.Input, e.Pos, e.Msg)
}
