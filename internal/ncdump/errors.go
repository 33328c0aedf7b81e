package ncdump

import (
	"errors"
	"fmt"
)

// ParseError reports dump text that does not have the expected structure.
type ParseError struct {
	Section string
	Line    int
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ncdump: %s: line %d: %s", e.Section, e.Line, e.Msg)
	}
	return fmt.Sprintf("ncdump: %s: %s", e.Section, e.Msg)
}

var (
	// ErrNoVariable is returned when a variable is not declared in the file.
	ErrNoVariable = errors.New("variable not declared")
	// ErrNoData is returned when the dump carries no values for a variable.
	ErrNoData = errors.New("no data printed for variable")
)

// ExtractionError reports that a variable's payload could not be retrieved.
type ExtractionError struct {
	Variable string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("ncdump: cannot extract %q: %v", e.Variable, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
