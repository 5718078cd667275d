package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"member-assist/internal/domain"
	"member-assist/internal/identity"
	"member-assist/internal/render"
	"member-assist/internal/repository"
)

// Backend is everything the portal needs from the chatbot backend.
type Backend interface {
	ChatBackend
	ArchiveBackend
}

// Portal hands out the per-device components: login, chat session and
// archive browser. Devices live for the lifetime of the process; only their
// key/value state goes through the store.
type Portal struct {
	store    repository.Store
	backend  Backend
	password PasswordSource
	renderer *render.Renderer
	observer func(device string) ChatObserver
	now      func() time.Time

	mu      sync.Mutex
	devices map[string]*Device
}

type PortalOption func(*Portal)

func WithPortalRenderer(r *render.Renderer) PortalOption {
	return func(p *Portal) {
		if r != nil {
			p.renderer = r
		}
	}
}

// WithChatObservers attaches an observer to every new device's chat session.
func WithChatObservers(f func(device string) ChatObserver) PortalOption {
	return func(p *Portal) {
		p.observer = f
	}
}

func NewPortal(store repository.Store, backend Backend, password PasswordSource, opts ...PortalOption) (*Portal, error) {
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if backend == nil {
		return nil, errors.New("usecase: backend must not be nil")
	}
	if password == nil {
		return nil, errors.New("usecase: password source must not be nil")
	}
	p := &Portal{
		store:    store,
		backend:  backend,
		password: password,
		renderer: render.New(),
		now:      time.Now,
		devices:  make(map[string]*Device),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Device returns the components for id, creating them on first use.
func (p *Portal) Device(id string) (*Device, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, newError(ErrorValidation, "blank_device_id", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.devices[id]; ok {
		d.touch(p.now())
		return d, nil
	}

	state, err := repository.ForDevice(p.store, id)
	if err != nil {
		return nil, newError(ErrorInternal, "device_state_error", err)
	}
	auth, err := NewAuthenticator(state, p.password)
	if err != nil {
		return nil, newError(ErrorInternal, "authenticator_error", err)
	}
	thread, err := identity.NewThread(state)
	if err != nil {
		return nil, newError(ErrorInternal, "thread_identity_error", err)
	}
	opts := []ChatOption{WithRenderer(p.renderer)}
	if p.observer != nil {
		if o := p.observer(id); o != nil {
			opts = append(opts, WithObserver(o))
		}
	}
	chat, err := NewChatSession(p.backend, thread, auth, opts...)
	if err != nil {
		return nil, newError(ErrorInternal, "chat_session_error", err)
	}

	d := &Device{ID: id, Auth: auth, Chat: chat, archive: p.backend}
	d.touch(p.now())
	p.devices[id] = d
	log.Debug().Str("device", id).Msg("device registered")
	return d, nil
}

// Sweep forgets devices idle for longer than maxIdle and returns how many
// were removed. Their stored state is kept.
func (p *Portal) Sweep(maxIdle time.Duration) int {
	cutoff := p.now().Add(-maxIdle)

	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, d := range p.devices {
		if d.lastSeen().Before(cutoff) {
			delete(p.devices, id)
			removed++
		}
	}
	return removed
}

// Device groups one device's components.
type Device struct {
	ID   string
	Auth *Authenticator
	Chat *ChatSession

	archive ArchiveBackend

	mu      sync.Mutex
	browser *ConversationBrowser
	seen    time.Time
}

func (d *Device) touch(t time.Time) {
	d.mu.Lock()
	d.seen = t
	d.mu.Unlock()
}

func (d *Device) lastSeen() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen
}

// Member returns the logged-in member or an UNAUTHENTICATED error.
func (d *Device) Member(ctx context.Context) (domain.Member, error) {
	return d.Auth.Current(ctx)
}

// OpenArchive mounts a fresh browser, replacing any previous one. The
// browser is returned even when the first fetch fails.
func (d *Device) OpenArchive(ctx context.Context) (*ConversationBrowser, error) {
	b, err := d.AttachArchive()
	if err != nil {
		return nil, err
	}
	return b, b.Mount(ctx)
}

// AttachArchive replaces the browser with a fresh one without fetching, for
// callers whose next operation loads the list anyway.
func (d *Device) AttachArchive() (*ConversationBrowser, error) {
	b, err := NewConversationBrowser(d.archive)
	if err != nil {
		return nil, newError(ErrorInternal, "browser_error", err)
	}
	d.mu.Lock()
	d.browser = b
	d.mu.Unlock()
	return b, nil
}

// Archive returns the mounted browser, if any.
func (d *Device) Archive() (*ConversationBrowser, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.browser, d.browser != nil
}

// CloseArchive discards the browser state.
func (d *Device) CloseArchive() {
	d.mu.Lock()
	d.browser = nil
	d.mu.Unlock()
}

// Logout ends the chat session and leaves the archive.
func (d *Device) Logout(ctx context.Context) error {
	d.CloseArchive()
	return d.Chat.Logout(ctx)
}
