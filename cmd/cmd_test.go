package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"member-assist/internal/config"
	"member-assist/internal/domain"
	"member-assist/internal/render"
	"member-assist/internal/usecase"
)

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat":
			var body struct {
				Message string `json:"message"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = io.WriteString(w, `{"thread_id":"abc","messages":[{"content":"Respuesta a `+body.Message+`"}]}`)
		case "/health":
			_, _ = io.WriteString(w, `{"status":"healthy"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(apiURL string) *config.Config {
	cfg := config.Default()
	cfg.APIURL = apiURL
	return cfg
}

func TestNewApp_MemoryWiring(t *testing.T) {
	srv := fakeBackend(t)
	a, err := newApp(context.Background(), testConfig(srv.URL), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.backend.Health(context.Background()))
	d, err := a.portal.Device("x")
	require.NoError(t, err)
	_, err = d.Auth.Login(context.Background(), "1010", config.DevPassword)
	require.NoError(t, err)
}

func TestNewApp_PebbleStore(t *testing.T) {
	cfg := testConfig("http://localhost:8000")
	cfg.Store.Backend = config.StorePebble
	cfg.Store.Path = t.TempDir()

	a, err := newApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, a.closers, 1)
	a.Close()
	require.Empty(t, a.closers)
}

func TestNewApp_RejectsBadURL(t *testing.T) {
	_, err := newApp(context.Background(), testConfig("not a url"), nil)
	require.Error(t, err)
}

func newTestPrinter(t *testing.T, out io.Writer) *chatPrinter {
	t.Helper()
	term, err := render.NewTerminal("notty", 80)
	require.NoError(t, err)
	return &chatPrinter{out: out, term: term}
}

func TestRunChat(t *testing.T) {
	srv := fakeBackend(t)
	var out bytes.Buffer
	printer := newTestPrinter(t, &out)

	a, err := newApp(context.Background(), testConfig(srv.URL), nil, usecase.WithChatObservers(func(string) usecase.ChatObserver {
		return printer
	}))
	require.NoError(t, err)
	defer a.Close()
	d, err := a.portal.Device(localDevice)
	require.NoError(t, err)

	in := strings.NewReader("1010\nmal\n1010\n123\nhola\n\n/quit\n")
	require.NoError(t, runChat(context.Background(), d, printer, in))

	text := out.String()
	require.Contains(t, text, "Credenciales incorrectas")
	require.Contains(t, text, "Bienvenido, CC 1010")
	require.Contains(t, text, "COOTRADECUN")
	require.Contains(t, text, "Respuesta a hola")

	transcript := d.Chat.Transcript()
	require.Len(t, transcript, 3)
	require.Equal(t, domain.RoleUser, transcript[1].Role)
}

func TestRunChat_LogoutPromptsAgain(t *testing.T) {
	srv := fakeBackend(t)
	var out bytes.Buffer
	printer := newTestPrinter(t, &out)

	a, err := newApp(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)
	defer a.Close()
	d, err := a.portal.Device(localDevice)
	require.NoError(t, err)

	in := strings.NewReader("1010\n123\nhola\n/logout\n")
	require.NoError(t, runChat(context.Background(), d, printer, in))

	require.Contains(t, out.String(), "Sesión cerrada.")
	_, err = d.Member(context.Background())
	require.Equal(t, usecase.ErrorUnauthenticated, usecase.CodeOf(err))
	require.Len(t, d.Chat.Transcript(), 1)
}

func TestPrintListAndDetail(t *testing.T) {
	now := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printList(&out, usecase.View{List: usecase.ListState{
		Cursor: domain.FirstPage(""),
		Total:  1500,
		Sessions: []domain.Session{{
			SessionID:          "s1",
			UserPhone:          "573001234567",
			MessageCount:       12,
			LastMessagePreview: "gracias",
			LastMessageAt:      now.Add(-time.Hour),
		}},
	}}, now)
	require.Contains(t, out.String(), "1.500")
	require.Contains(t, out.String(), "+57 300 123 4567")
	require.Contains(t, out.String(), "gracias")
	require.Contains(t, out.String(), "11:00")

	out.Reset()
	printList(&out, usecase.View{List: usecase.ListState{Cursor: domain.FirstPage("")}}, now)
	require.Contains(t, out.String(), "No hay conversaciones.")

	out.Reset()
	printDetail(&out, usecase.View{Kind: usecase.ViewDetail, Detail: &usecase.DetailState{
		SessionID: "s1",
		Session: domain.SessionDetail{
			SessionID:     "s1",
			UserName:      "Ana",
			UserPhone:     "573001234567",
			TotalMessages: 2,
			Messages: []domain.ArchivedMessage{
				{ID: "1", Role: domain.ArchiveRoleUser, Message: "hola", CreatedAt: now.Add(-30 * time.Hour)},
				{ID: "2", Role: domain.ArchiveRoleBot, Message: "¡Hola!", CreatedAt: now.Add(-30 * time.Hour)},
			},
		},
	}}, now)
	require.Contains(t, out.String(), "Ana")
	require.Contains(t, out.String(), "Ayer")
	require.Contains(t, out.String(), "Bot")
}

func TestArchiveCommand_FetchFailurePrintsLastView(t *testing.T) {
	srv := fakeBackend(t)
	t.Setenv("ASSIST_API_URL", srv.URL)

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"archive", "--log-level", "error"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "No hay conversaciones.")
}

func TestRenderCommand(t *testing.T) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader("# Hola\n**socio**\n"))
	root.SetArgs([]string{"render", "--log-level", "error"})

	require.NoError(t, root.Execute())
	require.Equal(t, "<h2>Hola</h2><br><strong>socio</strong>\n", out.String())
}
