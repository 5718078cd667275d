// Package handler exposes the member-assist state machines as a JSON API for
// the browser page, over plain HTTP or API Gateway.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"member-assist/internal/usecase"
)

const (
	deviceCookie      = "assist_device"
	correlationHeader = "X-Correlation-Id"
	maxRequestBytes   = 64 << 10
	deviceCookieAge   = 365 * 24 * time.Hour
)

// DeviceRegistry hands out per-device components.
type DeviceRegistry interface {
	Device(id string) (*usecase.Device, error)
}

type ctxKey int

const (
	deviceKey ctxKey = iota
	correlationKey
)

type Handler struct {
	devices      DeviceRegistry
	router       *mux.Router
	secureCookie bool
	healthCheck  func(ctx context.Context) error
	now          func() time.Time
}

type Option func(*Handler)

// WithSecureCookies marks the device cookie Secure, for HTTPS deployments.
func WithSecureCookies(on bool) Option {
	return func(h *Handler) {
		h.secureCookie = on
	}
}

// WithHealthCheck makes /healthz also probe a dependency, e.g. the backend.
func WithHealthCheck(f func(ctx context.Context) error) Option {
	return func(h *Handler) {
		h.healthCheck = f
	}
}

func NewHandler(devices DeviceRegistry, opts ...Option) (*Handler, error) {
	if devices == nil {
		return nil, errors.New("handler: device registry must not be nil")
	}
	h := &Handler{devices: devices, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(withCorrelationID, accessLog)
	r.NotFoundHandler = withCorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Message: "Recurso no encontrado."})
	}))
	r.MethodNotAllowedHandler = withCorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED", Message: "Método no permitido."})
	}))

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.withDevice)
	api.HandleFunc("/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/me", h.me).Methods(http.MethodGet)
	api.HandleFunc("/chat", h.transcript).Methods(http.MethodGet)
	api.HandleFunc("/chat", h.send).Methods(http.MethodPost)
	api.HandleFunc("/archive", h.archive).Methods(http.MethodGet)
	api.HandleFunc("/archive/search", h.archiveSearch).Methods(http.MethodPost)
	api.HandleFunc("/archive/page", h.archivePage).Methods(http.MethodPost)
	api.HandleFunc("/archive/open", h.archiveOpen).Methods(http.MethodPost)
	api.HandleFunc("/archive/back", h.archiveBack).Methods(http.MethodPost)
	api.HandleFunc("/archive/close", h.archiveClose).Methods(http.MethodPost)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Cedula   string `json:"cedula"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d := deviceFrom(r)
	member, err := d.Auth.Login(r.Context(), req.Cedula, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("device", d.ID).Str("cedula", member.Cedula).Msg("member logged in")
	writeJSON(w, http.StatusOK, memberResponse(member))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	d := deviceFrom(r)
	if err := d.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(d.Chat))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	member, err := deviceFrom(r).Member(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberResponse(member))
}

func (h *Handler) transcript(w http.ResponseWriter, r *http.Request) {
	d, ok := authenticated(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(d.Chat))
}

type sendRequest struct {
	Message string `json:"message"`
}

// send blocks until the turn completes.
func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	d, ok := authenticated(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	accepted := d.Chat.Send(r.Context(), req.Message)
	resp := newChatResponse(d.Chat)
	resp.Accepted = &accepted
	writeJSON(w, http.StatusOK, resp)
}

// archive returns the mounted browser, mounting it on first access.
func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	d, ok := authenticated(w, r)
	if !ok {
		return
	}
	if b, mounted := d.Archive(); mounted {
		h.writeArchive(w, r, b, nil)
		return
	}
	b, err := d.OpenArchive(r.Context())
	if b == nil {
		writeError(w, r, err)
		return
	}
	h.writeArchive(w, r, b, err)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h *Handler) archiveSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	h.withBrowser(w, r, &req, listFetch, func(ctx context.Context, b *usecase.ConversationBrowser) error {
		return b.Search(ctx, req.Query)
	})
}

type pageRequest struct {
	Page int    `json:"page"`
	Step string `json:"step"`
}

func (h *Handler) archivePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	fetches := func() bool { return req.Step == "" && req.Page >= 1 }
	h.withBrowser(w, r, &req, fetches, func(ctx context.Context, b *usecase.ConversationBrowser) error {
		switch req.Step {
		case "next":
			return b.NextPage(ctx)
		case "prev":
			return b.PrevPage(ctx)
		case "":
			return b.GoToPage(ctx, req.Page)
		}
		return &usecase.Error{Code: usecase.ErrorValidation, Reason: "unknown_page_step"}
	})
}

type openRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) archiveOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	h.withBrowser(w, r, &req, nil, func(ctx context.Context, b *usecase.ConversationBrowser) error {
		return b.Open(ctx, req.SessionID)
	})
}

func (h *Handler) archiveBack(w http.ResponseWriter, r *http.Request) {
	h.withBrowser(w, r, nil, nil, func(_ context.Context, b *usecase.ConversationBrowser) error {
		b.Back()
		return nil
	})
}

func (h *Handler) archiveClose(w http.ResponseWriter, r *http.Request) {
	d, ok := authenticated(w, r)
	if !ok {
		return
	}
	d.CloseArchive()
	w.WriteHeader(http.StatusNoContent)
}

func listFetch() bool { return true }

// withBrowser decodes body (when non-nil), runs op on the mounted browser and
// writes the resulting view. Without a mounted browser a fresh one is
// attached first; it only runs its own first fetch when fetchesList (nil
// means false) says op will not load the list itself.
func (h *Handler) withBrowser(w http.ResponseWriter, r *http.Request, body any, fetchesList func() bool, op func(context.Context, *usecase.ConversationBrowser) error) {
	d, ok := authenticated(w, r)
	if !ok {
		return
	}
	if body != nil && !decodeBody(w, r, body) {
		return
	}
	b, mounted := d.Archive()
	if !mounted {
		var err error
		if fetchesList != nil && fetchesList() {
			b, err = d.AttachArchive()
		} else {
			b, err = d.OpenArchive(r.Context())
		}
		if b == nil {
			writeError(w, r, err)
			return
		}
		if err != nil {
			logError(r, err)
		}
	}
	err := op(r.Context(), b)
	var ue *usecase.Error
	if err != nil && errors.As(err, &ue) && ue.Code == usecase.ErrorValidation {
		writeError(w, r, err)
		return
	}
	h.writeArchive(w, r, b, err)
}

// writeArchive replies with the current view. A fetch failure is only
// logged; the view keeps its last known data.
func (h *Handler) writeArchive(w http.ResponseWriter, r *http.Request, b *usecase.ConversationBrowser, err error) {
	if err != nil {
		logError(r, err)
	}
	writeJSON(w, http.StatusOK, newArchiveResponse(b.View(), h.now()))
}

func authenticated(w http.ResponseWriter, r *http.Request) (*usecase.Device, bool) {
	d := deviceFrom(r)
	if _, err := d.Member(r.Context()); err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return d, true
}

func (h *Handler) withDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(deviceCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     deviceCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(deviceCookieAge.Seconds()),
				HttpOnly: true,
				Secure:   h.secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}

		d, err := h.devices.Device(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceKey, d)))
	})
}

func deviceFrom(r *http.Request) *usecase.Device {
	d, _ := r.Context().Value(deviceKey).(*usecase.Device)
	return d
}

func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey, id)))
	})
}

func correlationID(r *http.Request) string {
	id, _ := r.Context().Value(correlationKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("correlation_id", correlationID(r)).
			Msg("request")
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, &usecase.Error{Code: usecase.ErrorValidation, Reason: "invalid_json", Err: err})
		return false
	}
	return true
}

var errorMessages = map[usecase.ErrorCode]string{
	usecase.ErrorValidation:         "Solicitud inválida.",
	usecase.ErrorInvalidCredentials: "Credenciales incorrectas. Intenta de nuevo.",
	usecase.ErrorUnauthenticated:    "Debes iniciar sesión.",
	usecase.ErrorArchiveFetch:       "No se pudieron cargar las conversaciones.",
	usecase.ErrorTransport:          usecase.Apology,
	usecase.ErrorInternal:           "Ocurrió un error inesperado.",
}

func newErrorResponse(err error) *errorResponse {
	out := &errorResponse{Error: string(usecase.ErrorInternal), Message: errorMessages[usecase.ErrorInternal]}
	var ue *usecase.Error
	if errors.As(err, &ue) {
		out.Error, out.Reason, out.Message = string(ue.Code), ue.Reason, errorMessages[ue.Code]
		if ue.Reason == "blank_credentials" {
			out.Message = "Por favor ingresa tu cédula y contraseña"
		}
	}
	return out
}

func errorStatus(err error) int {
	switch usecase.CodeOf(err) {
	case usecase.ErrorValidation:
		return http.StatusBadRequest
	case usecase.ErrorInvalidCredentials, usecase.ErrorUnauthenticated:
		return http.StatusUnauthorized
	case usecase.ErrorArchiveFetch, usecase.ErrorTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(r *http.Request, err error) {
	ev := log.Warn()
	if usecase.CodeOf(err) == usecase.ErrorInternal {
		ev = log.Error()
	}
	ev.Err(err).Str("code", string(usecase.CodeOf(err))).Str("correlation_id", correlationID(r)).Msg("request failed")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, err)
	writeJSON(w, errorStatus(err), newErrorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
