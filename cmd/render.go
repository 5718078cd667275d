package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"member-assist/internal/render"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		terminal bool
		style    string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render assistant markdown from stdin as HTML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return errors.Wrap(err, "read stdin")
			}
			text := strings.TrimSuffix(string(raw), "\n")
			if terminal {
				term, err := render.NewTerminal(style, 80)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), term.Render(text))
				return err
			}
			r := render.New(render.WithFileStorageHosts(cfg.FileStorageHosts...))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), r.Render(text))
			return err
		},
	}
	cmd.Flags().BoolVar(&terminal, "terminal", false, "render for the terminal instead of HTML")
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style for --terminal")
	return cmd
}
