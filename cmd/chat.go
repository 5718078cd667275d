package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"member-assist/internal/config"
	"member-assist/internal/domain"
	"member-assist/internal/render"
	"member-assist/internal/usecase"
)

var (
	botLabel    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		style string
		width int
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long:  "Chat with the assistant. Type /logout to end the session and /quit to leave.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			// the terminal keeps its thread across runs
			if cfg.Store.Backend == config.StoreMemory {
				cfg.Store.Backend = config.StorePebble
			}
			term, err := render.NewTerminal(style, width)
			if err != nil {
				return err
			}
			printer := &chatPrinter{out: cmd.OutOrStdout(), term: term}

			a, err := newApp(cmd.Context(), cfg, nil, usecase.WithChatObservers(func(string) usecase.ChatObserver {
				return printer
			}))
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.portal.Device(localDevice)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), d, printer, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style: dark, light, notty, ...")
	cmd.Flags().IntVar(&width, "width", 80, "word wrap width")
	return cmd
}

// chatPrinter writes assistant messages as they are appended.
type chatPrinter struct {
	out  io.Writer
	term *render.Terminal
}

func (p *chatPrinter) MessageAppended(m domain.Message) {
	if m.Role != domain.RoleAssistant {
		return
	}
	fmt.Fprintf(p.out, "%s\n%s\n\n", botLabel.Render("Asistente"), p.term.Render(m.Content))
}

// ReadyForInput is a no-op; the read loop prints the prompt.
func (p *chatPrinter) ReadyForInput() {}

func (p *chatPrinter) prompt(label string) {
	fmt.Fprint(p.out, promptStyle.Render(label)+" ")
}

func (p *chatPrinter) notice(msg string) {
	fmt.Fprintln(p.out, noticeStyle.Render(msg))
}

func (p *chatPrinter) failure(msg string) {
	fmt.Fprintln(p.out, errorStyle.Render(msg))
}

func runChat(ctx context.Context, d *usecase.Device, p *chatPrinter, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		member, ok := login(ctx, d, p, sc)
		if !ok {
			return sc.Err()
		}
		p.notice(fmt.Sprintf("👤 Bienvenido, CC %s", member.Cedula))
		for _, m := range d.Chat.Transcript() {
			p.MessageAppended(m)
		}

		loggedOut, err := chatLoop(ctx, d, p, sc)
		if err != nil || !loggedOut {
			return err
		}
	}
}

// chatLoop reads turns until input ends, /quit or /logout. It reports
// whether the member logged out.
func chatLoop(ctx context.Context, d *usecase.Device, p *chatPrinter, sc *bufio.Scanner) (bool, error) {
	for {
		p.prompt("Tú ›")
		if !sc.Scan() {
			return false, sc.Err()
		}
		switch line := strings.TrimSpace(sc.Text()); line {
		case "":
		case "/quit", "/exit":
			return false, nil
		case "/logout":
			if err := d.Logout(ctx); err != nil {
				p.failure(err.Error())
			}
			p.notice("Sesión cerrada.")
			return true, nil
		default:
			d.Chat.Send(ctx, line)
		}
	}
}

// login returns the stored member or prompts until a login succeeds. It
// returns false when input ends.
func login(ctx context.Context, d *usecase.Device, p *chatPrinter, sc *bufio.Scanner) (domain.Member, bool) {
	if m, err := d.Member(ctx); err == nil {
		return m, true
	}
	for {
		p.prompt("Cédula:")
		if !sc.Scan() {
			return domain.Member{}, false
		}
		cedula := sc.Text()
		p.prompt("Contraseña:")
		if !sc.Scan() {
			return domain.Member{}, false
		}
		m, err := d.Auth.Login(ctx, cedula, sc.Text())
		if err == nil {
			return m, true
		}
		switch usecase.CodeOf(err) {
		case usecase.ErrorValidation:
			p.failure("Por favor ingresa tu cédula y contraseña")
		case usecase.ErrorInvalidCredentials:
			p.failure("Credenciales incorrectas. Intenta de nuevo.")
		default:
			p.failure(err.Error())
		}
	}
}
