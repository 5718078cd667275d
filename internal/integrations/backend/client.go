// Package backend is the HTTP client for the cooperative's chatbot backend:
// chat turns and the WhatsApp conversation archive.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"member-assist/internal/domain"
)

const (
	endpointChat     = "chat"
	endpointSessions = "sessions"
	endpointSession  = "session"
	endpointHealth   = "health"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
)

// TokenSource supplies an optional bearer token for backend requests.
type TokenSource interface {
	Value(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx backend responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	ThreadID string `json:"thread_id"`
	Messages []struct {
		Content string `json:"content"`
	} `json:"messages"`
}

type sessionPayload struct {
	SessionID          string `json:"session_id"`
	UserPhone          string `json:"user_phone"`
	UserName           string `json:"user_name"`
	MessageCount       int    `json:"message_count"`
	LastMessagePreview string `json:"last_message_preview"`
	FirstMessageAt     string `json:"first_message_at"`
	LastMessageAt      string `json:"last_message_at"`
	Department         string `json:"department"`
}

type sessionListResponse struct {
	Sessions []sessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

type messagePayload struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type sessionDetailResponse struct {
	SessionID     string           `json:"session_id"`
	UserPhone     string           `json:"user_phone"`
	UserName      string           `json:"user_name"`
	TotalMessages int              `json:"total_messages"`
	Messages      []messagePayload `json:"messages"`
}

// Client talks to one backend base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	limiter    *rate.Limiter
	metrics    *metrics
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(ts TokenSource) Option {
	return func(c *Client) {
		c.token = ts
	}
}

// WithRateLimiter makes every request wait for the limiter first.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// NewClient creates a client for baseURL, e.g. "http://localhost:8000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("backend: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// SendChat posts one chat turn. Any non-2xx status is an error.
func (c *Client) SendChat(ctx context.Context, message, threadID string) (domain.ChatReply, error) {
	body, err := json.Marshal(chatRequest{Message: message, ThreadID: threadID})
	if err != nil {
		return domain.ChatReply{}, errors.Wrap(err, "backend: marshal chat request")
	}

	var payload chatResponse
	if err := c.do(ctx, endpointChat, http.MethodPost, c.baseURL+"/chat", body, &payload); err != nil {
		return domain.ChatReply{}, err
	}

	reply := domain.ChatReply{ThreadID: payload.ThreadID, Messages: make([]string, 0, len(payload.Messages))}
	for _, m := range payload.Messages {
		reply.Messages = append(reply.Messages, m.Content)
	}
	return reply, nil
}

// ListSessions fetches one page of archived sessions.
func (c *Client) ListSessions(ctx context.Context, cursor domain.PageCursor) (domain.SessionPage, error) {
	page, size := cursor.Page, cursor.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = domain.DefaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	if s := strings.TrimSpace(cursor.Query); s != "" {
		q.Set("search", s)
	}

	var payload sessionListResponse
	endpoint := c.baseURL + "/api/conversations/sessions?" + q.Encode()
	if err := c.do(ctx, endpointSessions, http.MethodGet, endpoint, nil, &payload); err != nil {
		return domain.SessionPage{}, err
	}

	out := domain.SessionPage{Total: payload.Total, Sessions: make([]domain.Session, 0, len(payload.Sessions))}
	for _, s := range payload.Sessions {
		out.Sessions = append(out.Sessions, domain.Session{
			SessionID:          s.SessionID,
			UserPhone:          s.UserPhone,
			UserName:           s.UserName,
			MessageCount:       s.MessageCount,
			LastMessagePreview: s.LastMessagePreview,
			FirstMessageAt:     parseTime(s.FirstMessageAt),
			LastMessageAt:      parseTime(s.LastMessageAt),
			Department:         s.Department,
		})
	}
	return out, nil
}

// GetSession fetches a session's full transcript in backend order.
func (c *Client) GetSession(ctx context.Context, sessionID string) (domain.SessionDetail, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.SessionDetail{}, errors.New("backend: session id must not be empty")
	}

	var payload sessionDetailResponse
	endpoint := c.baseURL + "/api/conversations/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, endpointSession, http.MethodGet, endpoint, nil, &payload); err != nil {
		return domain.SessionDetail{}, err
	}

	id := payload.SessionID
	if id == "" {
		id = sessionID
	}
	out := domain.SessionDetail{
		SessionID:     id,
		UserPhone:     payload.UserPhone,
		UserName:      payload.UserName,
		TotalMessages: payload.TotalMessages,
		Messages:      make([]domain.ArchivedMessage, 0, len(payload.Messages)),
	}
	for _, m := range payload.Messages {
		role := domain.ArchiveRoleBot
		if m.Role == string(domain.ArchiveRoleUser) {
			role = domain.ArchiveRoleUser
		}
		out.Messages = append(out.Messages, domain.ArchivedMessage{
			ID:        m.ID,
			Role:      role,
			Message:   m.Message,
			CreatedAt: parseTime(m.CreatedAt),
		})
	}
	return out, nil
}

// Health checks the backend's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, endpointHealth, http.MethodGet, c.baseURL+"/health", nil, &payload); err != nil {
		return err
	}
	if payload.Status != "ok" && payload.Status != "healthy" {
		return errors.Errorf("backend: unhealthy status %q", payload.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, target string, body []byte, out any) error {
	start := time.Now()
	outcome := outcomeOK
	defer func() { c.metrics.observe(endpoint, outcome, time.Since(start)) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			outcome = outcomeNetwork
			return errors.Wrap(err, "backend: rate limit wait")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		outcome = outcomeNetwork
		return errors.Wrap(err, "backend: create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token.Value(ctx)
		if err != nil {
			outcome = outcomeNetwork
			return errors.Wrap(err, "backend: resolve token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	raw, err := c.doJSONRequest(req, target)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			outcome = outcomeStatus
		} else {
			outcome = outcomeNetwork
		}
		return errors.Wrapf(err, "backend: %s request failed", endpoint)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = outcomeDecode
		return errors.Wrapf(err, "backend: decode %s response", endpoint)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, target string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "backend: read response body")
	}
	return buf, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// The backend serializes naive datetimes; those are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
