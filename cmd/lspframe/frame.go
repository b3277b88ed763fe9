package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gossip-lsp/lspframe/frame"
)

func frameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frame [FILE]",
		Short: "Frame a raw payload",
		Long:  `Read a payload from FILE (or stdin) and write it to stdout with a Content-Length header.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args)
			if err != nil {
				return err
			}
			defer closeIn()
			payload, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			return frame.Write(cmd.OutOrStdout(), payload)
		},
	}
}
