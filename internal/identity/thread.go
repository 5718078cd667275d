// Package identity manages the per-device conversation thread id sent with
// every chat turn.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"member-assist/internal/repository"
)

// ThreadKey is the device state key holding the thread id.
const ThreadKey = "chat_thread_id"

// Thread is the lazily created, persisted thread id of one device.
type Thread struct {
	state repository.KeyValue
	newID func() string
}

func NewThread(state repository.KeyValue) (*Thread, error) {
	if state == nil {
		return nil, errors.New("identity: device state must not be nil")
	}
	return &Thread{state: state, newID: newThreadID}, nil
}

// Get returns the stored thread id, creating and persisting one on first use.
func (t *Thread) Get(ctx context.Context) (string, error) {
	id, err := t.state.Get(ctx, ThreadKey)
	switch {
	case err == nil && id != "":
		return id, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return "", errors.Wrap(err, "identity: load thread id")
	}

	id = t.newID()
	if err := t.state.Set(ctx, ThreadKey, id); err != nil {
		return "", errors.Wrap(err, "identity: store thread id")
	}
	return id, nil
}

// Reset forgets the thread id; the next Get creates a new one.
func (t *Thread) Reset(ctx context.Context) error {
	if err := t.state.Delete(ctx, ThreadKey); err != nil {
		return errors.Wrap(err, "identity: reset thread id")
	}
	return nil
}

// Adopt replaces the local id with the backend's canonical one. Blank ids
// are ignored.
func (t *Thread) Adopt(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if err := t.state.Set(ctx, ThreadKey, id); err != nil {
		return errors.Wrap(err, "identity: adopt thread id")
	}
	return nil
}

// user-<9 chars>
var newThreadID = func() string {
	return "user-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
