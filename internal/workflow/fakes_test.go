package workflow

import (
	"context"
	"sync"

	"nfaportal/internal/client"
)

type decisionCall struct {
	token    string
	path     string
	decision client.DecisionRequest
}

type fakeBackend struct {
	mu          sync.Mutex
	decisions   []decisionCall
	withdrawn   []int
	reinitiated []client.ReinitiateForm
	err         error
}

func (f *fakeBackend) SubmitDecision(_ context.Context, token, path string, decision client.DecisionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.decisions = append(f.decisions, decisionCall{token: token, path: path, decision: decision})
	return nil
}

func (f *fakeBackend) Withdraw(_ context.Context, _ string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.withdrawn = append(f.withdrawn, id)
	return nil
}

func (f *fakeBackend) Reinitiate(_ context.Context, _ string, _ int, form client.ReinitiateForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reinitiated = append(f.reinitiated, form)
	return nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.decisions) + len(f.withdrawn) + len(f.reinitiated)
}
