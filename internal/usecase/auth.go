package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"member-assist/internal/domain"
	"member-assist/internal/repository"
)

// MemberKey is the device state key holding the login record.
const MemberKey = "chatbot_user"

// PasswordSource yields the shared member password.
type PasswordSource interface {
	Value(ctx context.Context) (string, error)
}

// StaticPassword is a PasswordSource with a fixed value.
type StaticPassword string

func (p StaticPassword) Value(context.Context) (string, error) {
	return string(p), nil
}

// Authenticator gates the chat behind a local login. It is a convenience
// gate, not a security boundary: the password is shared by every member.
type Authenticator struct {
	state    repository.KeyValue
	password PasswordSource
	now      func() time.Time
}

func NewAuthenticator(state repository.KeyValue, password PasswordSource) (*Authenticator, error) {
	if state == nil {
		return nil, errors.New("usecase: device state must not be nil")
	}
	if password == nil {
		return nil, errors.New("usecase: password source must not be nil")
	}
	return &Authenticator{state: state, password: password, now: time.Now}, nil
}

// Login checks the password and stores the member record for the device.
func (a *Authenticator) Login(ctx context.Context, cedula, password string) (domain.Member, error) {
	cedula = strings.TrimSpace(cedula)
	if cedula == "" || strings.TrimSpace(password) == "" {
		return domain.Member{}, newError(ErrorValidation, "blank_credentials", nil)
	}

	expected, err := a.password.Value(ctx)
	if err != nil {
		return domain.Member{}, newError(ErrorInternal, "password_source_error", err)
	}
	if password != expected {
		return domain.Member{}, newError(ErrorInvalidCredentials, "password_mismatch", nil)
	}

	member := domain.Member{Cedula: cedula, Name: DefaultMemberName, LoginTime: a.now().UTC()}
	raw, err := json.Marshal(member)
	if err != nil {
		return domain.Member{}, newError(ErrorInternal, "member_encode_error", err)
	}
	if err := a.state.Set(ctx, MemberKey, string(raw)); err != nil {
		return domain.Member{}, newError(ErrorInternal, "member_store_error", err)
	}
	return member, nil
}

// Current returns the logged-in member. A missing or unreadable record means
// the device is not logged in.
func (a *Authenticator) Current(ctx context.Context) (domain.Member, error) {
	raw, err := a.state.Get(ctx, MemberKey)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Member{}, newError(ErrorUnauthenticated, "no_member_record", nil)
	}
	if err != nil {
		return domain.Member{}, newError(ErrorInternal, "member_load_error", err)
	}

	var member domain.Member
	if err := json.Unmarshal([]byte(raw), &member); err != nil || member.Cedula == "" {
		log.Warn().Err(err).Msg("discarding unreadable member record")
		return domain.Member{}, newError(ErrorUnauthenticated, "corrupt_member_record", err)
	}
	return member, nil
}

// Clear removes the login record.
func (a *Authenticator) Clear(ctx context.Context) error {
	if err := a.state.Delete(ctx, MemberKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return newError(ErrorInternal, "member_clear_error", err)
	}
	return nil
}
