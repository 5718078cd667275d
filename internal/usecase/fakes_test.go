package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"member-assist/internal/domain"
	"member-assist/internal/repository"
)

const (
	timeoutShort = time.Second
	tick         = 5 * time.Millisecond
)

type fakeKV struct {
	mu     sync.Mutex
	vals   map[string]string
	getErr error
	setErr error
	delErr error
}

func newFakeKV() *fakeKV { return &fakeKV{vals: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.vals[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.vals[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.vals, key)
	return nil
}

type fakeThread struct {
	mu       sync.Mutex
	id       string
	getErr   error
	resetErr error
	resets   int
	adopted  []string
}

func (f *fakeThread) Get(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	if f.id == "" {
		f.id = "user-local0001"
	}
	return f.id, nil
}

func (f *fakeThread) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.id = ""
	return f.resetErr
}

func (f *fakeThread) Adopt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adopted = append(f.adopted, id)
	if id != "" {
		f.id = id
	}
	return nil
}

type fakeCreds struct {
	cleared int
	err     error
}

func (f *fakeCreds) Clear(context.Context) error {
	f.cleared++
	return f.err
}

type chatCall struct {
	message  string
	threadID string
}

type fakeChatBackend struct {
	mu      sync.Mutex
	reply   domain.ChatReply
	err     error
	calls   []chatCall
	started chan struct{}
	release chan struct{}
}

func (f *fakeChatBackend) SendChat(_ context.Context, message, threadID string) (domain.ChatReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{message: message, threadID: threadID})
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return f.reply, f.err
}

func (f *fakeChatBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) MessageAppended(msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s:%s", msg.Role, msg.Content))
}

func (r *recordingObserver) ReadyForInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "ready")
}

func (r *recordingObserver) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeStatusErr struct{ code int }

func (e *fakeStatusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *fakeStatusErr) HTTPStatusCode() int { return e.code }

type fakeArchive struct {
	mu      sync.Mutex
	pages   map[int]domain.SessionPage
	listErr error
	cursors []domain.PageCursor
	gates   map[string]chan struct{}
	entered chan string

	details map[string]domain.SessionDetail
	getErr  error
	opened  []string
	getGate chan struct{}
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		pages:   map[int]domain.SessionPage{},
		gates:   map[string]chan struct{}{},
		details: map[string]domain.SessionDetail{},
	}
}

func (f *fakeArchive) ListSessions(_ context.Context, cursor domain.PageCursor) (domain.SessionPage, error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	gate, entered := f.gates[cursor.Query], f.entered
	page, err := f.pages[cursor.Page], f.listErr
	f.mu.Unlock()

	if entered != nil {
		entered <- cursor.Query
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.SessionPage{}, err
	}
	if cursor.Query != "" {
		page = domain.SessionPage{Total: 1, Sessions: []domain.Session{{SessionID: "match-" + cursor.Query}}}
	}
	return page, nil
}

func (f *fakeArchive) GetSession(_ context.Context, id string) (domain.SessionDetail, error) {
	f.mu.Lock()
	f.opened = append(f.opened, id)
	d, err, gate := f.details[id], f.getErr, f.getGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return d, err
}

func (f *fakeArchive) SendChat(context.Context, string, string) (domain.ChatReply, error) {
	return domain.ChatReply{}, nil
}

func (f *fakeArchive) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cursors)
}
