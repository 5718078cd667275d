package repository

import (
	"context"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PebbleStore persists device state in a local pebble database. The
// terminal client uses it so the thread id and login survive restarts.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the database at path. opts may be nil.
func OpenPebble(path string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "repository: open pebble at %q", path)
	}
	log.Debug().Str("path", path).Msg("pebble state store opened")
	return &PebbleStore{db: db}, nil
}

// device/<device>/<key>
func pebbleKey(device, key string) []byte {
	var b strings.Builder
	b.Grow(len("device/") + len(device) + 1 + len(key))
	b.WriteString("device/")
	b.WriteString(device)
	b.WriteByte('/')
	b.WriteString(key)
	return []byte(b.String())
}

func (s *PebbleStore) Get(_ context.Context, device, key string) (string, error) {
	v, closer, err := s.db.Get(pebbleKey(device, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "repository: pebble get")
	}
	out := string(v)
	if err := closer.Close(); err != nil {
		return "", errors.Wrap(err, "repository: pebble get close")
	}
	return out, nil
}

func (s *PebbleStore) Put(_ context.Context, device, key, value string) error {
	if err := s.db.Set(pebbleKey(device, key), []byte(value), pebble.Sync); err != nil {
		return errors.Wrap(err, "repository: pebble set")
	}
	return nil
}

func (s *PebbleStore) Delete(_ context.Context, device, key string) error {
	if err := s.db.Delete(pebbleKey(device, key), pebble.Sync); err != nil {
		return errors.Wrap(err, "repository: pebble delete")
	}
	return nil
}

func (s *PebbleStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Wrap(err, "repository: pebble close")
}
