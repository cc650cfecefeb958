package services

import (
	"context"
	"sync"
	"testing"

	"github.com/voltwatch/backend/internal/command"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/testutil"
)

type sentState struct {
	host     string
	deviceID uint
	running  bool
}

// fakeTransport records every state it is asked to send
type fakeTransport struct {
	mu   sync.Mutex
	sent []sentState
	err  error
}

var _ command.Transport = (*fakeTransport)(nil)

func (f *fakeTransport) SendState(ctx context.Context, host string, deviceID uint, running bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentState{host: host, deviceID: deviceID, running: running})
	return f.err
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) calls() []sentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentState(nil), f.sent...)
}

// fakeSink records state commands without touching storage
type fakeSink struct {
	mu   sync.Mutex
	cmds []StateCommand
	err  error
}

func (f *fakeSink) SendStateCommand(ctx context.Context, cmd StateCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return f.err
}

func (f *fakeSink) commands() []StateCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StateCommand(nil), f.cmds...)
}

type notification struct {
	userID  uint
	event   string
	payload interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Send(userID uint, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{userID: userID, event: event, payload: payload})
}

func (f *fakeNotifier) notifications() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.sent...)
}

func setup(t *testing.T) (*testutil.TestSetup, *repository.RepositoryFactory) {
	t.Helper()
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)
	return ts, repository.NewRepositoryFactory(ts.DB.DB)
}

func ptr[T any](v T) *T {
	return &v
}
