package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gossip-lsp/lspframe/frame"
	"github.com/gossip-lsp/lspframe/jsonrpc"
)

var (
	indexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	kindStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("57"))
	methodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	bodyStyle   = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("250"))
)

func inspectCmd() *cobra.Command {
	var showBody bool

	cmd := &cobra.Command{
		Use:   "inspect [FILE]",
		Short: "Describe the framed messages in a captured stream",
		Long: `Read Content-Length framed messages from FILE (or stdin) and print
one line per message: its size, JSON-RPC kind, method and id.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args)
			if err != nil {
				return err
			}
			defer closeIn()
			return inspect(cmd.OutOrStdout(), in, showBody)
		},
	}
	cmd.Flags().BoolVarP(&showBody, "body", "b", false, "print each message body")
	return cmd
}

func inspect(out io.Writer, in io.Reader, showBody bool) error {
	r := frame.NewReader(in)
	for i := 1; ; i++ {
		payload, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		fmt.Fprintf(out, "%s %6d bytes  %s\n", indexStyle.Render(fmt.Sprintf("#%d", i)), len(payload), describe(payload))
		if showBody {
			fmt.Fprintln(out, bodyStyle.Render(string(payload)))
		}
	}
}

func describe(payload []byte) string {
	msg, err := jsonrpc.DecodeMessage(payload)
	if err != nil {
		return errStyle.Render(err.Error())
	}
	kind := kindStyle.Render(fmt.Sprintf("%-12s", msg.Kind()))
	switch m := msg.(type) {
	case *jsonrpc.Request:
		return fmt.Sprintf("%s %s id=%s", kind, methodStyle.Render(m.Method), m.ID)
	case *jsonrpc.Notification:
		return fmt.Sprintf("%s %s", kind, methodStyle.Render(m.Method))
	case *jsonrpc.Response:
		if m.Error != nil {
			return fmt.Sprintf("%s id=%s %s", kind, m.ID, errStyle.Render(m.Error.Error()))
		}
		return fmt.Sprintf("%s id=%s", kind, m.ID)
	}
	return kind
}

// openInput opens the single optional file argument, defaulting to stdin.
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
