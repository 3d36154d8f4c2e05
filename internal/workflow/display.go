package workflow

import "nfaportal/internal/model"

// Tone is the colour family a status or priority is rendered with.
type Tone string

const (
	ToneOrange Tone = "orange"
	ToneYellow Tone = "yellow"
	ToneGreen  Tone = "green"
	ToneRed    Tone = "red"
	ToneGray   Tone = "gray"
)

// StatusTone colours a request status badge.
func StatusTone(s model.Status) Tone {
	switch s {
	case model.StatusNew:
		return ToneOrange
	case model.StatusInProgress:
		return ToneYellow
	case model.StatusApproved:
		return ToneGreen
	case model.StatusRejected:
		return ToneRed
	default:
		return ToneGray
	}
}

// PriorityTone colours a priority badge.
func PriorityTone(p model.Priority) Tone {
	switch p {
	case model.PriorityHigh:
		return ToneRed
	case model.PriorityMedium:
		return ToneYellow
	case model.PriorityLow:
		return ToneGreen
	default:
		return ToneGray
	}
}

// DecisionTone colours one approval trail entry.
func DecisionTone(d model.Decision) Tone {
	switch d {
	case model.DecisionApproved:
		return ToneGreen
	case model.DecisionRejected:
		return ToneRed
	case model.DecisionPending:
		return ToneYellow
	default:
		return ToneGray
	}
}

// TrailRoleLabel is the label shown for a trail entry; the backend's
// "Supervisor" stage is presented as the recommender.
func TrailRoleLabel(role string) string {
	if role == model.TrailRoleSupervisor {
		return "Recommender"
	}
	return role
}
