package domain

import "time"

// DefaultPageSize is the fixed session list page size.
const DefaultPageSize = 20

// ArchiveRole is the author of an archived WhatsApp message.
type ArchiveRole string

const (
	ArchiveRoleUser ArchiveRole = "user"
	ArchiveRoleBot  ArchiveRole = "bot"
)

// Session summarizes one archived end-user conversation.
type Session struct {
	SessionID          string
	UserPhone          string
	UserName           string
	LastMessageAt      time.Time
	FirstMessageAt     time.Time
	LastMessagePreview string
	MessageCount       int
	Department         string
}

// SessionPage is one page of the session list plus the backend's total.
type SessionPage struct {
	Sessions []Session
	Total    int
}

// ArchivedMessage is a single message of an archived session.
type ArchivedMessage struct {
	ID        string
	Role      ArchiveRole
	Message   string
	CreatedAt time.Time
}

// SessionDetail is the full, chronologically ordered transcript of a session.
type SessionDetail struct {
	SessionID     string
	UserPhone     string
	UserName      string
	TotalMessages int
	Messages      []ArchivedMessage
}

// PageCursor governs the session list view.
type PageCursor struct {
	Page     int
	PageSize int
	Query    string
}

// FirstPage returns a cursor on page one for the given query.
func FirstPage(query string) PageCursor {
	return PageCursor{Page: 1, PageSize: DefaultPageSize, Query: query}
}
