package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInputShape     = errors.New("malformed input row")
	ErrConflictingKey = errors.New("conflicting variant metadata for key")
	ErrInvalidPhase   = errors.New("invalid clinical phase")
)

// InputShapeError reports a row missing a field the contract requires.
type InputShapeError struct {
	Source string
	Row    int
	Field  string
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("%s row %d: missing %s", e.Source, e.Row, e.Field)
}

func (e *InputShapeError) Unwrap() error { return ErrInputShape }

// ConflictingKeyError reports a key observed with inconsistent variant
// metadata. All rows of the key are excluded.
type ConflictingKeyError struct {
	Key        PairKey
	Accessions []string
	Rows       int
}

func (e *ConflictingKeyError) Error() string {
	return fmt.Sprintf("key %s: %d rows with accessions [%s]",
		e.Key, e.Rows, strings.Join(e.Accessions, ", "))
}

func (e *ConflictingKeyError) Unwrap() error { return ErrConflictingKey }
