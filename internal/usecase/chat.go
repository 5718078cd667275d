package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"member-assist/internal/domain"
	"member-assist/internal/render"
)

// ChatBackend sends one chat turn.
type ChatBackend interface {
	SendChat(ctx context.Context, message, threadID string) (domain.ChatReply, error)
}

// ThreadIdentity is the device's persisted conversation thread id.
type ThreadIdentity interface {
	Get(ctx context.Context) (string, error)
	Reset(ctx context.Context) error
	Adopt(ctx context.Context, id string) error
}

// CredentialClearer forgets the device's login.
type CredentialClearer interface {
	Clear(ctx context.Context) error
}

// ChatObserver is notified after transcript changes. Callbacks run outside
// the session lock, in the goroutine that called Send.
type ChatObserver interface {
	MessageAppended(msg domain.Message)
	ReadyForInput()
}

type ChatState int

const (
	ChatIdle ChatState = iota
	ChatAwaitingReply
)

func (s ChatState) String() string {
	if s == ChatAwaitingReply {
		return "awaiting_reply"
	}
	return "idle"
}

// ChatSession is the transcript of one device and the send state machine
// around it. At most one turn is outstanding at a time.
type ChatSession struct {
	backend  ChatBackend
	thread   ThreadIdentity
	creds    CredentialClearer
	renderer *render.Renderer
	observer ChatObserver
	now      func() time.Time

	mu         sync.Mutex
	state      ChatState
	epoch      uint64
	transcript []domain.Message
}

type ChatOption func(*ChatSession)

func WithObserver(o ChatObserver) ChatOption {
	return func(s *ChatSession) {
		s.observer = o
	}
}

func WithRenderer(r *render.Renderer) ChatOption {
	return func(s *ChatSession) {
		if r != nil {
			s.renderer = r
		}
	}
}

func NewChatSession(backend ChatBackend, thread ThreadIdentity, creds CredentialClearer, opts ...ChatOption) (*ChatSession, error) {
	if backend == nil {
		return nil, errors.New("usecase: chat backend must not be nil")
	}
	if thread == nil {
		return nil, errors.New("usecase: thread identity must not be nil")
	}
	if creds == nil {
		return nil, errors.New("usecase: credential clearer must not be nil")
	}
	s := &ChatSession{
		backend:  backend,
		thread:   thread,
		creds:    creds,
		renderer: render.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transcript = []domain.Message{s.message(domain.RoleAssistant, Greeting)}
	return s, nil
}

func (s *ChatSession) State() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the messages in display order.
func (s *ChatSession) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.transcript...)
}

// Send runs one chat turn and reports whether it was accepted. Blank text
// and sends while a reply is pending are ignored. Backend failures never
// surface to the caller; they end the turn with the apology message.
func (s *ChatSession) Send(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.state == ChatAwaitingReply {
		s.mu.Unlock()
		return false
	}
	s.state = ChatAwaitingReply
	epoch := s.epoch
	userMsg := s.appendLocked(domain.RoleUser, text)
	s.mu.Unlock()
	s.notify(userMsg)

	reply, err := s.exchange(ctx, text)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		log.Debug().Msg("dropping chat reply received after logout")
		return true
	}
	var appended []domain.Message
	if err != nil {
		log.Warn().Err(err).Str("code", string(CodeOf(err))).Msg("chat turn failed")
		appended = append(appended, s.appendLocked(domain.RoleAssistant, Apology))
	} else {
		if err := s.thread.Adopt(ctx, reply.ThreadID); err != nil {
			log.Warn().Err(err).Msg("could not adopt backend thread id")
		}
		for _, content := range reply.Messages {
			appended = append(appended, s.appendLocked(domain.RoleAssistant, content))
		}
	}
	s.state = ChatIdle
	s.mu.Unlock()

	s.notify(appended...)
	if s.observer != nil {
		s.observer.ReadyForInput()
	}
	return true
}

func (s *ChatSession) exchange(ctx context.Context, text string) (domain.ChatReply, error) {
	threadID, err := s.thread.Get(ctx)
	if err != nil {
		return domain.ChatReply{}, newError(ErrorTransport, "thread_id_unavailable", err)
	}
	reply, err := s.backend.SendChat(ctx, text, threadID)
	if err != nil {
		return domain.ChatReply{}, newError(ErrorTransport, upstreamReason("chat", err), err)
	}
	return reply, nil
}

// Logout forgets the thread id and the login, and resets the transcript to
// the greeting. A reply still in flight is discarded when it arrives.
func (s *ChatSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	s.state = ChatIdle
	s.transcript = []domain.Message{s.message(domain.RoleAssistant, Greeting)}
	s.mu.Unlock()

	threadErr := s.thread.Reset(ctx)
	credsErr := s.creds.Clear(ctx)
	if err := errors.Join(threadErr, credsErr); err != nil {
		return newError(ErrorInternal, "logout_incomplete", err)
	}
	return nil
}

func (s *ChatSession) appendLocked(role domain.Role, content string) domain.Message {
	msg := s.message(role, content)
	s.transcript = append(s.transcript, msg)
	return msg
}

func (s *ChatSession) message(role domain.Role, content string) domain.Message {
	msg := domain.Message{Role: role, Content: content, Timestamp: s.now().UTC()}
	if role == domain.RoleAssistant {
		msg.HTML = s.renderer.Render(content)
	}
	return msg
}

func (s *ChatSession) notify(msgs ...domain.Message) {
	if s.observer == nil {
		return
	}
	for _, m := range msgs {
		s.observer.MessageAppended(m)
	}
}
