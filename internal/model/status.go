package model

import (
	"encoding/json"
	"strings"
)

// Status is the closed set of lifecycle states of an NFA request.
// Raw upstream strings are normalized once, when a request is decoded.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusWithdrawn  Status = "WITHDRAWN"
	StatusUnknown    Status = "UNKNOWN"
)

var statusAliases = map[string]Status{
	"NEW":         StatusNew,
	"IN_PROGRESS": StatusInProgress,
	"INPROGRESS":  StatusInProgress,
	"PENDING":     StatusInProgress,
	"APPROVED":    StatusApproved,
	"REJECTED":    StatusRejected,
	"WITHDRAWN":   StatusWithdrawn,
	"WITHDRAW":    StatusWithdrawn,
}

var terminalStatuses = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusWithdrawn: true,
}

// ParseStatus maps an upstream status string onto the closed enumeration.
func ParseStatus(raw string) Status {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if s, ok := statusAliases[key]; ok {
		return s
	}
	// "FULLY_APPROVED", "APPROVED_FINAL" and friends
	if strings.Contains(key, "APPROVED") {
		return StatusApproved
	}
	return StatusUnknown
}

// IsValid reports whether s is a known state.
func (s Status) IsValid() bool {
	_, ok := statusAliases[string(s)]
	return ok && s != StatusUnknown
}

// IsTerminal reports whether no approval action can follow s.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsPending reports whether the request is still waiting on a reviewer.
func (s Status) IsPending() bool {
	return s == StatusNew || s == StatusInProgress
}

func (s Status) String() string {
	return string(s)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = StatusUnknown
		return nil
	}
	*s = ParseStatus(*raw)
	return nil
}

// Priority of a request as chosen by the initiator.
type Priority string

const (
	PriorityUnset  Priority = ""
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists the selectable priorities in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority normalizes a priority label; unknown labels yield PriorityUnset.
func ParsePriority(raw string) Priority {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HIGH":
		return PriorityHigh
	case "MEDIUM":
		return PriorityMedium
	case "LOW":
		return PriorityLow
	default:
		return PriorityUnset
	}
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*p = PriorityUnset
		return nil
	}
	*p = ParsePriority(*raw)
	return nil
}

// Decision is the outcome recorded against one stage of the approval trail.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ParseDecision normalizes the upstream "approved" label of a trail entry.
func ParseDecision(raw string) Decision {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "APPROVED", "APPROVE", "TRUE", "YES":
		return DecisionApproved
	case "REJECTED", "REJECT", "FALSE", "NO":
		return DecisionRejected
	case "PENDING":
		return DecisionPending
	default:
		return DecisionNone
	}
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		if v {
			*d = DecisionApproved
		} else {
			*d = DecisionRejected
		}
	case string:
		*d = ParseDecision(v)
	default:
		*d = DecisionNone
	}
	return nil
}
