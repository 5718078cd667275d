package handler

import (
	"time"

	"member-assist/internal/domain"
	"member-assist/internal/format"
	"member-assist/internal/render"
	"member-assist/internal/usecase"
)

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type memberResponse struct {
	Cedula    string    `json:"cedula"`
	Name      string    `json:"name"`
	LoginTime time.Time `json:"loginTime"`
}

type messageView struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	HTML      string      `json:"html"`
	Timestamp time.Time   `json:"timestamp"`
}

type chatResponse struct {
	Accepted *bool         `json:"accepted,omitempty"`
	State    string        `json:"state"`
	Messages []messageView `json:"messages"`
}

type sessionView struct {
	SessionID     string `json:"session_id"`
	DisplayName   string `json:"display_name"`
	Initial       string `json:"initial"`
	Phone         string `json:"phone"`
	Preview       string `json:"preview"`
	MessageCount  int    `json:"message_count"`
	LastMessageAt string `json:"last_message_at"`
	Department    string `json:"department,omitempty"`
}

type listView struct {
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Query      string        `json:"query"`
	Total      int           `json:"total"`
	TotalLabel string        `json:"total_label"`
	TotalPages int           `json:"total_pages"`
	CanPrev    bool          `json:"can_prev"`
	CanNext    bool          `json:"can_next"`
	Loading    bool          `json:"loading"`
	Sessions   []sessionView `json:"sessions"`
}

type archivedMessageView struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

type detailView struct {
	SessionID     string                `json:"session_id"`
	HeaderName    string                `json:"header_name"`
	Initial       string                `json:"initial"`
	Phone         string                `json:"phone"`
	TotalMessages int                   `json:"total_messages"`
	Loading       bool                  `json:"loading"`
	Messages      []archivedMessageView `json:"messages"`
}

type archiveResponse struct {
	View   usecase.ViewKind `json:"view"`
	List   listView         `json:"list"`
	Detail *detailView      `json:"detail,omitempty"`
}

func newChatResponse(s *usecase.ChatSession) chatResponse {
	transcript := s.Transcript()
	out := chatResponse{State: s.State().String(), Messages: make([]messageView, 0, len(transcript))}
	for _, m := range transcript {
		html := m.HTML
		if m.Role == domain.RoleUser {
			html = render.EscapeText(m.Content)
		}
		out.Messages = append(out.Messages, messageView{Role: m.Role, Content: m.Content, HTML: html, Timestamp: m.Timestamp})
	}
	return out
}

func newArchiveResponse(v usecase.View, now time.Time) archiveResponse {
	list := listView{
		Page:       v.List.Cursor.Page,
		PageSize:   v.List.Cursor.PageSize,
		Query:      v.List.Cursor.Query,
		Total:      v.List.Total,
		TotalLabel: format.Count(v.List.Total),
		TotalPages: v.List.TotalPages(),
		CanPrev:    v.List.CanPrev(),
		CanNext:    v.List.CanNext(),
		Loading:    v.List.Loading,
		Sessions:   make([]sessionView, 0, len(v.List.Sessions)),
	}
	for _, s := range v.List.Sessions {
		name := format.DisplayName(s.UserName, s.UserPhone)
		list.Sessions = append(list.Sessions, sessionView{
			SessionID:     s.SessionID,
			DisplayName:   name,
			Initial:       format.Initial(s.UserName),
			Phone:         format.Phone(s.UserPhone),
			Preview:       s.LastMessagePreview,
			MessageCount:  s.MessageCount,
			LastMessageAt: format.Timestamp(s.LastMessageAt, now),
			Department:    s.Department,
		})
	}

	out := archiveResponse{View: v.Kind, List: list}
	if v.Detail != nil {
		d := v.Detail.Session
		detail := &detailView{
			SessionID:     v.Detail.SessionID,
			HeaderName:    format.HeaderName(d.UserName),
			Initial:       format.Initial(d.UserName),
			Phone:         format.Phone(d.UserPhone),
			TotalMessages: d.TotalMessages,
			Loading:       v.Detail.LoadingMessages,
			Messages:      make([]archivedMessageView, 0, len(d.Messages)),
		}
		for _, m := range d.Messages {
			detail.Messages = append(detail.Messages, archivedMessageView{
				ID:      m.ID,
				Role:    string(m.Role),
				Message: m.Message,
				Time:    format.Timestamp(m.CreatedAt, now),
			})
		}
		out.Detail = detail
	}
	return out
}
