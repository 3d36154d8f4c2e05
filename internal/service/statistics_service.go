package service

import (
	"context"
	"time"

	"nfaportal/internal/model"
	"nfaportal/internal/store"
	"nfaportal/internal/workflow"
)

const recentLimit = 5

// StatusCounts tallies requests by dashboard tab.
type StatusCounts struct {
	All       int `json:"all"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Withdrawn int `json:"withdrawn"`
}

// StatisticsResponse is the dashboard summary for one user.
type StatisticsResponse struct {
	TimeRangeStartDate time.Time      `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time      `json:"time_range_end_date"`
	Initiated          StatusCounts   `json:"initiated"`
	ByPriority         map[string]int `json:"by_priority"`
	ByProject          map[string]int `json:"by_project"`
	AwaitingMyAction   int            `json:"awaiting_my_action"`
	Recent             []RequestView  `json:"recent"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, actor workflow.Actor, startDate, endDate time.Time) (StatisticsResponse, error)
}

type statisticsService struct {
	registry *store.Registry
	files    FileURLResolver
}

func NewStatisticsService(registry *store.Registry, files FileURLResolver) StatisticsService {
	return &statisticsService{registry: registry, files: files}
}

// GetStatistics summarises the requests the actor raised inside the time
// bracket, plus how many requests anywhere are waiting on the actor.
func (s *statisticsService) GetStatistics(ctx context.Context, actor workflow.Actor, startDate, endDate time.Time) (StatisticsResponse, error) {
	if endDate.Before(startDate) {
		return StatisticsResponse{}, &ValidationError{Fields: map[string]string{"end_date": "must not be before start_date"}}
	}

	st, err := loadStore(ctx, s.registry, actor, false)
	if err != nil {
		return StatisticsResponse{}, err
	}

	res := StatisticsResponse{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
		ByPriority:         make(map[string]int),
		ByProject:          make(map[string]int),
	}

	var recent []model.Request
	for _, r := range st.All(store.SortCreated) {
		if workflow.Resolve(r, actor.User.ID).CanAct {
			res.AwaitingMyAction++
		}
		if r.InitiatorID != actor.User.ID || !inRange(r.CreatedAt, startDate, endDate) {
			continue
		}

		res.Initiated.All++
		switch {
		case r.Status.IsPending():
			res.Initiated.Pending++
		case r.Status == model.StatusApproved:
			res.Initiated.Approved++
		case r.Status == model.StatusRejected:
			res.Initiated.Rejected++
		case r.Status == model.StatusWithdrawn:
			res.Initiated.Withdrawn++
		}
		if r.Priority != model.PriorityUnset {
			res.ByPriority[string(r.Priority)]++
		}
		if r.Project != "" {
			res.ByProject[r.Project]++
		}
		if len(recent) < recentLimit {
			recent = append(recent, r)
		}
	}

	res.Recent = newViews(recent, actor.User.ID, s.files)
	return res, nil
}

// inRange counts requests without a parseable creation time in every bracket.
func inRange(ts model.Timestamp, start, end time.Time) bool {
	if ts.IsZero() {
		return true
	}
	return !ts.Before(start) && !ts.After(end)
}
