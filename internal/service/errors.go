package service

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// ErrNotApproved is returned for a PDF download on a request that has not
// reached APPROVED.
var ErrNotApproved = errors.New("request not approved yet")

// ValidationError lists the rejected fields of an input.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, seen := e.Fields[field]; !seen {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
