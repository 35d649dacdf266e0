package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"joinlink/internal/channel"
	"joinlink/internal/gate"
	"joinlink/internal/link"
	"joinlink/internal/session"
	"joinlink/internal/transport/loopback"
)

// newWalkCmd drives one session through the gate against the loopback
// transport: create (or open the given link), wait for active, exit.
func newWalkCmd(base func() string) *cobra.Command {
	var (
		delay   time.Duration
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "walk [url]",
		Short: "Walk a session through join and leave locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			return walk(ctx, cmd.OutOrStdout(), base(), raw, delay)
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "simulated transport latency")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "overall timeout")
	return cmd
}

func walk(ctx context.Context, out io.Writer, base, rawURL string, delay time.Duration) error {
	codec, err := link.NewCodec(base)
	if err != nil {
		// links are optional for the walk
		fmt.Fprintf(out, "share links disabled: %v\n", err)
	}
	reg := session.NewRegistry()
	lb := loopback.New(reg.Events, delay)
	defer lb.Close()

	sc := session.New("local", session.Deps{
		Transport: lb,
		Generator: channel.NewGenerator(channel.DefaultLength),
		Codec:     codec,
	})
	reg.Put(sc)

	var d gate.Decision
	if rawURL != "" {
		var found bool
		d, found = sc.OpenLink(ctx, rawURL)
		if !found {
			return errNoChannel
		}
	} else {
		if d, err = sc.CreateSession(ctx); err != nil {
			return err
		}
	}
	if d.Ignored {
		return fmt.Errorf("link rejected: %s", d.Reason)
	}
	fmt.Fprintf(out, "%s %s\n", sc.State().Phase, d.Channel)

	if err := waitFor(ctx, sc, gate.Active); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", gate.Active, d.Channel)
	if u, err := sc.ShareLink(); err == nil {
		fmt.Fprintf(out, "share %s\n", u)
	}

	sc.Exit(ctx)
	fmt.Fprintf(out, "%s %s\n", gate.Leaving, d.Channel)
	if err := waitFor(ctx, sc, gate.Idle); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", gate.Idle)
	return nil
}

func waitFor(ctx context.Context, sc *session.Context, want gate.Phase) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		st := sc.State()
		if st.Phase == want {
			return nil
		}
		if st.Err != nil {
			return st.Err
		}
		select {
		case <-ctx.Done():
			return errors.New("timed out waiting for " + string(want))
		case <-t.C:
		}
	}
}
