package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSON means the model reply held no parseable JSON value.
	ErrNoJSON = errors.New("no JSON found in model response")
	// ErrUnexpectedShape means JSON was found but does not fit the expected type.
	ErrUnexpectedShape = errors.New("model response JSON has unexpected shape")
	// ErrNotGrantPage means the model answered with an {"error": ...} object.
	ErrNotGrantPage = errors.New("model rejected page")
)

type ParseStatus int

const (
	ParseOK ParseStatus = iota
	ParseMalformed
	ParseSoftError
)

func (s ParseStatus) String() string {
	switch s {
	case ParseOK:
		return "ok"
	case ParseMalformed:
		return "malformed"
	case ParseSoftError:
		return "soft_error"
	}
	return "unknown"
}

// ParseOutcome is the typed result of pulling JSON out of free-form model text.
// Value is only meaningful when Status is ParseOK; Reason explains the other two.
type ParseOutcome[T any] struct {
	Status ParseStatus
	Value  T
	Reason string

	cause error
}

func success[T any](v T) ParseOutcome[T] { return ParseOutcome[T]{Status: ParseOK, Value: v} }

func malformed[T any](reason string) ParseOutcome[T] {
	return ParseOutcome[T]{Status: ParseMalformed, Reason: reason, cause: ErrNoJSON}
}

func misshapen[T any](err error) ParseOutcome[T] {
	return ParseOutcome[T]{Status: ParseMalformed, Reason: err.Error(), cause: ErrUnexpectedShape}
}

// Err maps the outcome onto the package sentinels, nil for ParseOK.
func (o ParseOutcome[T]) Err() error {
	switch o.Status {
	case ParseOK:
		return nil
	case ParseSoftError:
		return fmt.Errorf("%w: %s", ErrNotGrantPage, o.Reason)
	default:
		cause := o.cause
		if cause == nil {
			cause = ErrNoJSON
		}
		return fmt.Errorf("%w: %s", cause, o.Reason)
	}
}

// ParseObject decodes the first balanced {...} block in raw into T.
// An object carrying a non-empty "error" key is reported as a soft error.
func ParseObject[T any](raw string) ParseOutcome[T] {
	block, found := extractFirstBalanced(raw, '{', '}')
	if !found {
		return malformed[T]("no JSON object in response")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &probe); err != nil {
		return malformed[T](fmt.Sprintf("invalid JSON object: %v", err))
	}
	if rawErr, has := probe["error"]; has {
		if reason := softErrorReason(rawErr); reason != "" {
			return ParseOutcome[T]{Status: ParseSoftError, Reason: reason}
		}
	}

	var v T
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return misshapen[T](err)
	}
	return success(v)
}

// ParseArray decodes the first balanced [...] block in raw into []T.
func ParseArray[T any](raw string) ParseOutcome[[]T] {
	block, found := extractFirstBalanced(raw, '[', ']')
	if !found {
		return malformed[[]T]("no JSON array in response")
	}
	var probe []json.RawMessage
	if err := json.Unmarshal([]byte(block), &probe); err != nil {
		return malformed[[]T](fmt.Sprintf("invalid JSON array: %v", err))
	}
	var v []T
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return misshapen[[]T](err)
	}
	return success(v)
}

func softErrorReason(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if string(raw) == "null" || string(raw) == "false" {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// extractFirstBalanced finds the first outermost balanced open...close block,
// ignoring brackets inside JSON strings.
func extractFirstBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if inString && char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
