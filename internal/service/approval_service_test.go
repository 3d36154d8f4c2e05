package service

import (
	"context"
	"testing"

	"nfaportal/internal/store"
	"nfaportal/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxTabs(t *testing.T) {
	f := newFixture(t, seed()...)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  int
		tab    string
		want   []int
		counts InboxCounts
	}{
		{"recommender all", 5, "", []int{4, 2, 1}, InboxCounts{All: 3, Pending: 1, Approved: 1, Rejected: 1}},
		{"recommender pending", 5, "pending", []int{1}, InboxCounts{All: 3, Pending: 1, Approved: 1, Rejected: 1}},
		{"recommender approved", 5, TabApproved, []int{4}, InboxCounts{All: 3, Pending: 1, Approved: 1, Rejected: 1}},
		{"approver pending", 7, TabPending, []int{2}, InboxCounts{All: 3, Pending: 1, Approved: 1}},
		{"approver approved", 7, TabApproved, []int{3}, InboxCounts{All: 3, Pending: 1, Approved: 1}},
		{"initiator sees nothing", 1, TabAll, []int{}, InboxCounts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, total, counts, err := f.inbox.Inbox(ctx, as(tt.actor), InboxFilter{Tab: tt.tab})
			require.NoError(t, err)
			assert.Equal(t, tt.want, viewIDs(views))
			assert.Equal(t, len(tt.want), total)
			assert.Equal(t, tt.counts, counts)
		})
	}
}

func TestInboxViewsCarryTurn(t *testing.T) {
	f := newFixture(t, seed()...)

	views, _, _, err := f.inbox.Inbox(context.Background(), as(7), InboxFilter{Tab: TabPending})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, workflow.RoleApprover, views[0].Role)
	assert.True(t, views[0].CanAct)
	assert.Equal(t, 7, views[0].CurrentActorID)
}

func TestInboxSortAndPaging(t *testing.T) {
	f := newFixture(t, seed()...)

	views, total, _, err := f.inbox.Inbox(context.Background(), as(5), InboxFilter{Sort: store.SortCreated, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int{4, 2}, viewIDs(views))
}

func TestInboxRejectsUnknownTab(t *testing.T) {
	f := newFixture(t, seed()...)

	_, _, _, err := f.inbox.Inbox(context.Background(), as(5), InboxFilter{Tab: "archived"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "tab")
}
