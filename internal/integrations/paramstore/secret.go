package paramstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Secret is one parameter fetched lazily and cached for the process
// lifetime. The stored value is either raw text or JSON of the form
// {"token":"..."}. A failed fetch is not cached.
type Secret struct {
	getter Getter
	name   string

	mu     sync.Mutex
	loaded bool
	value  string
}

func NewSecret(getter Getter, name string) (*Secret, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("paramstore: secret name is required")
	}
	return &Secret{getter: getter, name: name}, nil
}

// Value returns the cached secret, fetching it on first use.
func (s *Secret) Value(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.value, nil
	}

	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", err
	}
	value, err := decodeSecret(raw)
	if err != nil {
		return "", errors.Wrapf(err, "paramstore: decode secret %q", s.name)
	}
	s.value, s.loaded = value, true
	log.Debug().Str("secret", s.name).Msg("secret loaded from parameter store")
	return value, nil
}

func decodeSecret(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		if trimmed == "" {
			return "", errors.New("empty value")
		}
		return trimmed, nil
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Token) == "" {
		return "", errors.New(`missing "token" field`)
	}
	return payload.Token, nil
}
