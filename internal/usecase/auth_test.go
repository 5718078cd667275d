package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type failingPassword struct{}

func (failingPassword) Value(context.Context) (string, error) { return "", errors.New("ssm down") }

func newTestAuth(t *testing.T, kv *fakeKV) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(kv, StaticPassword("123"))
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC) }
	return a
}

func TestNewAuthenticator_Validation(t *testing.T) {
	_, err := NewAuthenticator(nil, StaticPassword("x"))
	require.Error(t, err)
	_, err = NewAuthenticator(newFakeKV(), nil)
	require.Error(t, err)
}

func TestLogin_BlankFields(t *testing.T) {
	a := newTestAuth(t, newFakeKV())
	for _, tc := range [][2]string{{"", "123"}, {"  ", "123"}, {"1010", ""}, {"1010", "   "}} {
		_, err := a.Login(context.Background(), tc[0], tc[1])
		require.Equal(t, ErrorValidation, CodeOf(err), "cedula=%q password=%q", tc[0], tc[1])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	kv := newFakeKV()
	a := newTestAuth(t, kv)
	_, err := a.Login(context.Background(), "1010", "1234")
	require.Equal(t, ErrorInvalidCredentials, CodeOf(err))
	require.Empty(t, kv.vals)
}

func TestLogin_StoresMemberRecord(t *testing.T) {
	kv := newFakeKV()
	a := newTestAuth(t, kv)

	member, err := a.Login(context.Background(), " 1010 ", "123")
	require.NoError(t, err)
	require.Equal(t, "1010", member.Cedula)
	require.Equal(t, DefaultMemberName, member.Name)

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(kv.vals[MemberKey]), &stored))
	require.Equal(t, "1010", stored["cedula"])
	require.Equal(t, "Asociado COOTRADECUN", stored["name"])
	require.Equal(t, "2025-03-01T15:00:00Z", stored["loginTime"])

	current, err := a.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, member, current)
}

func TestLogin_PasswordSourceFailure(t *testing.T) {
	a, err := NewAuthenticator(newFakeKV(), failingPassword{})
	require.NoError(t, err)
	_, err = a.Login(context.Background(), "1010", "123")
	require.Equal(t, ErrorInternal, CodeOf(err))
}

func TestLogin_StoreFailure(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("disk full")
	a := newTestAuth(t, kv)
	_, err := a.Login(context.Background(), "1010", "123")
	require.Equal(t, ErrorInternal, CodeOf(err))
}

func TestCurrent_States(t *testing.T) {
	kv := newFakeKV()
	a := newTestAuth(t, kv)

	_, err := a.Current(context.Background())
	require.Equal(t, ErrorUnauthenticated, CodeOf(err))

	kv.vals[MemberKey] = "{not json"
	_, err = a.Current(context.Background())
	require.Equal(t, ErrorUnauthenticated, CodeOf(err))

	kv.vals[MemberKey] = `{"name":"x"}`
	_, err = a.Current(context.Background())
	require.Equal(t, ErrorUnauthenticated, CodeOf(err))

	kv.getErr = errors.New("io")
	_, err = a.Current(context.Background())
	require.Equal(t, ErrorInternal, CodeOf(err))
}

func TestClear(t *testing.T) {
	kv := newFakeKV()
	a := newTestAuth(t, kv)
	_, err := a.Login(context.Background(), "1010", "123")
	require.NoError(t, err)

	require.NoError(t, a.Clear(context.Background()))
	_, err = a.Current(context.Background())
	require.Equal(t, ErrorUnauthenticated, CodeOf(err))

	require.NoError(t, a.Clear(context.Background()))

	kv.delErr = errors.New("io")
	require.Equal(t, ErrorInternal, CodeOf(a.Clear(context.Background())))
}

func TestStaticPassword(t *testing.T) {
	v, err := StaticPassword("123").Value(context.Background())
	require.NoError(t, err)
	require.Equal(t, "123", v)
}
