package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"joinlink/internal/channel"
	"joinlink/internal/link"
)

var errNoChannel = errors.New("no channel in link")

func newNewCmd(base func() string, defaultLength int) *cobra.Command {
	var (
		length int
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a channel id and its share link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var gen channel.Generator = channel.NewGenerator(length)
			if cmd.Flags().Changed("seed") {
				gen = channel.NewSeededGenerator(length, seed)
			}
			id, err := gen.New()
			if err != nil {
				return err
			}
			u, err := link.Encode(base(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, u)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", defaultLength, "id length")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible id")
	return cmd
}

func newEncodeCmd(base func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <channel>",
		Short: "Print the share link for a channel id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := link.Encode(base(), channel.ID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <url>",
		Short: "Print the channel id carried by a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := link.Decode(args[0])
			if !ok {
				return errNoChannel
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
