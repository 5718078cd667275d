package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"member-assist/internal/domain"
	"member-assist/internal/format"
	"member-assist/internal/usecase"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF"))
)

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	var (
		page    int
		search  string
		session string
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived WhatsApp conversations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := usecase.NewConversationBrowser(a.backend)
			if err != nil {
				return err
			}
			ctx, out, now := cmd.Context(), cmd.OutOrStdout(), time.Now()

			switch {
			case session != "":
				err = b.Open(ctx, session)
			case search != "":
				err = b.Search(ctx, search)
				if err == nil && page > 1 {
					err = b.GoToPage(ctx, page)
				}
			case page > 1:
				err = b.GoToPage(ctx, page)
			default:
				err = b.Mount(ctx)
			}
			if usecase.CodeOf(err) == usecase.ErrorValidation {
				return err
			}
			// fetch failures leave the last known view on screen
			if err != nil {
				log.Warn().Err(err).Str("code", string(usecase.CodeOf(err))).Msg("archive fetch failed")
			}

			v := b.View()
			if v.Kind == usecase.ViewDetail {
				printDetail(out, v, now)
				return nil
			}
			printList(out, v, now)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	cmd.Flags().StringVar(&search, "search", "", "filter by phone or name")
	cmd.Flags().StringVar(&session, "session", "", "show one session's messages")
	return cmd
}

func printList(w io.Writer, v usecase.View, now time.Time) {
	l := v.List
	fmt.Fprintf(w, "%s %s\n\n",
		titleStyle.Render(fmt.Sprintf("Conversaciones (%s)", format.Count(l.Total))),
		keyStyle.Render(fmt.Sprintf("página %d de %d", l.Cursor.Page, max(l.TotalPages(), 1))),
	)
	if len(l.Sessions) == 0 {
		fmt.Fprintln(w, keyStyle.Render("No hay conversaciones."))
		return
	}
	for _, s := range l.Sessions {
		fmt.Fprintf(w, "[%s] %s  %s  %s\n    %s\n",
			format.Initial(s.UserName),
			titleStyle.Render(format.DisplayName(s.UserName, s.UserPhone)),
			keyStyle.Render(format.Timestamp(s.LastMessageAt, now)),
			keyStyle.Render(fmt.Sprintf("%s mensajes · %s", format.Count(s.MessageCount), s.SessionID)),
			s.LastMessagePreview,
		)
	}
}

func printDetail(w io.Writer, v usecase.View, now time.Time) {
	if v.Detail == nil {
		return
	}
	d := v.Detail.Session
	fmt.Fprintf(w, "%s %s\n\n",
		titleStyle.Render(format.HeaderName(d.UserName)),
		keyStyle.Render(fmt.Sprintf("%s · %s mensajes", format.Phone(d.UserPhone), format.Count(d.TotalMessages))),
	)
	for _, m := range d.Messages {
		who := "Bot"
		if m.Role == domain.ArchiveRoleUser {
			who = userStyle.Render(format.HeaderName(d.UserName))
		}
		fmt.Fprintf(w, "%s %s: %s\n", keyStyle.Render(format.Timestamp(m.CreatedAt, now)), who, m.Message)
	}
}
