package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"member-assist/internal/domain"
)

// ArchiveBackend reads archived conversations.
type ArchiveBackend interface {
	ListSessions(ctx context.Context, cursor domain.PageCursor) (domain.SessionPage, error)
	GetSession(ctx context.Context, sessionID string) (domain.SessionDetail, error)
}

type ViewKind string

const (
	ViewList   ViewKind = "list"
	ViewDetail ViewKind = "detail"
)

// ListState is the paginated, searchable session list.
type ListState struct {
	Cursor   domain.PageCursor
	Sessions []domain.Session
	Total    int
	Loading  bool
}

// TotalPages is ceil(Total / PageSize).
func (l ListState) TotalPages() int {
	size := l.Cursor.PageSize
	if size < 1 {
		size = domain.DefaultPageSize
	}
	if l.Total <= 0 {
		return 0
	}
	return (l.Total + size - 1) / size
}

func (l ListState) CanPrev() bool {
	return l.Cursor.Page > 1
}

func (l ListState) CanNext() bool {
	return l.Cursor.Page < l.TotalPages()
}

// DetailState is one opened session. Session is empty while LoadingMessages.
type DetailState struct {
	SessionID       string
	Session         domain.SessionDetail
	LoadingMessages bool
}

// View is a snapshot of the browser. Detail is nil in the list view; List is
// always the last list state, kept while a detail is shown.
type View struct {
	Kind   ViewKind
	List   ListState
	Detail *DetailState
}

// ConversationBrowser is the two-level list/detail model over the archive.
// Every fetch carries a generation number; a response whose generation was
// superseded by a later fetch (or by Back) is discarded.
type ConversationBrowser struct {
	backend ArchiveBackend

	mu        sync.Mutex
	list      ListState
	detail    *DetailState
	listGen   uint64
	detailGen uint64
}

func NewConversationBrowser(backend ArchiveBackend) (*ConversationBrowser, error) {
	if backend == nil {
		return nil, errors.New("usecase: archive backend must not be nil")
	}
	return &ConversationBrowser{
		backend: backend,
		list:    ListState{Cursor: domain.FirstPage(""), Loading: true},
	}, nil
}

func (b *ConversationBrowser) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := View{Kind: ViewList, List: b.list}
	v.List.Sessions = append([]domain.Session(nil), b.list.Sessions...)
	if b.detail != nil {
		d := *b.detail
		d.Session.Messages = append([]domain.ArchivedMessage(nil), b.detail.Session.Messages...)
		v.Kind, v.Detail = ViewDetail, &d
	}
	return v
}

// Mount performs the first fetch for the current cursor.
func (b *ConversationBrowser) Mount(ctx context.Context) error {
	b.mu.Lock()
	cursor := b.list.Cursor
	b.mu.Unlock()
	return b.fetchList(ctx, cursor)
}

// Search restarts the list on page one with q.
func (b *ConversationBrowser) Search(ctx context.Context, q string) error {
	return b.fetchList(ctx, domain.FirstPage(strings.TrimSpace(q)))
}

// GoToPage ignores pages below one.
func (b *ConversationBrowser) GoToPage(ctx context.Context, page int) error {
	if page < 1 {
		return nil
	}
	b.mu.Lock()
	cursor := b.list.Cursor
	b.mu.Unlock()
	cursor.Page = page
	return b.fetchList(ctx, cursor)
}

// NextPage is a no-op on the last page.
func (b *ConversationBrowser) NextPage(ctx context.Context) error {
	b.mu.Lock()
	list := b.list
	b.mu.Unlock()
	if !list.CanNext() {
		return nil
	}
	return b.GoToPage(ctx, list.Cursor.Page+1)
}

// PrevPage is a no-op on the first page.
func (b *ConversationBrowser) PrevPage(ctx context.Context) error {
	b.mu.Lock()
	list := b.list
	b.mu.Unlock()
	if !list.CanPrev() {
		return nil
	}
	return b.GoToPage(ctx, list.Cursor.Page-1)
}

// fetchList moves the cursor immediately. On failure the previous sessions
// stay visible under the new cursor.
func (b *ConversationBrowser) fetchList(ctx context.Context, cursor domain.PageCursor) error {
	b.mu.Lock()
	b.listGen++
	gen := b.listGen
	b.list.Cursor = cursor
	b.list.Loading = true
	b.mu.Unlock()

	page, err := b.backend.ListSessions(ctx, cursor)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.listGen {
		return nil
	}
	b.list.Loading = false
	if err != nil {
		return newError(ErrorArchiveFetch, upstreamReason("list_sessions", err), err)
	}
	b.list.Sessions = page.Sessions
	b.list.Total = page.Total
	return nil
}

// Open shows a session's messages. A failed fetch returns to the list.
func (b *ConversationBrowser) Open(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return newError(ErrorValidation, "blank_session_id", nil)
	}

	b.mu.Lock()
	b.detailGen++
	gen := b.detailGen
	b.detail = &DetailState{SessionID: sessionID, LoadingMessages: true}
	b.mu.Unlock()

	detail, err := b.backend.GetSession(ctx, sessionID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.detailGen {
		return nil
	}
	if err != nil {
		b.detail = nil
		return newError(ErrorArchiveFetch, upstreamReason("get_session", err), err)
	}
	b.detail = &DetailState{SessionID: sessionID, Session: detail}
	return nil
}

// Back returns to the cached list without refetching.
func (b *ConversationBrowser) Back() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detailGen++
	b.detail = nil
}
