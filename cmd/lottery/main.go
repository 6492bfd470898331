// Command lottery runs a draw in the terminal: candidates come from a file
// or stdin, one per line, and the picks roll past before the winner is
// printed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lottery-backend/internal/candidates"
	"github.com/DoyleJ11/lottery-backend/internal/engine"
	"github.com/DoyleJ11/lottery-backend/internal/logging"
	"github.com/DoyleJ11/lottery-backend/internal/room"
)

var errNoCandidates = errors.New("no candidates: enter one name per line")

type options struct {
	file     string
	rounds   int
	seed     uint64
	interval time.Duration
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "lottery [-f names.txt]",
		Short:        "Pick one name at random from a list",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := stdin
			if opts.file != "" && opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return fmt.Errorf("open candidates: %w", err)
				}
				defer f.Close()
				in = f
			}
			return run(cmd.Context(), in, stdout, opts)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetIn(stdin)

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read candidates from this file instead of stdin")
	cmd.Flags().IntVarP(&opts.rounds, "again", "n", 1, "number of draws to run against the same list")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for a reproducible draw (0 = random)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity")
	cmd.Flags().DurationVar(&opts.interval, "tick-interval", engine.DefaultInterval, "time between picks")
	_ = cmd.Flags().MarkHidden("tick-interval")
	return cmd
}

func run(ctx context.Context, in io.Reader, w io.Writer, opts options) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read candidates: %w", err)
	}
	text := string(raw)

	n := candidates.Count(text)
	if n == 0 {
		return errNoCandidates
	}
	if opts.rounds < 1 {
		opts.rounds = 1
	}

	logger, err := logging.NewConsole(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	state := engine.NewIdleState()
	state.Input = text
	state.Rules.Interval = opts.interval

	roomOpts := []room.Option{room.WithLogger(logger)}
	if opts.seed != 0 {
		roomOpts = append(roomOpts, room.WithRandom(engine.NewSeededRandom(opts.seed)))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rm := room.NewRoom(ctx, state, roomOpts...)
	defer rm.Send(room.Shutdown{})

	out := make(chan room.Snapshot, 32)
	if !rm.Send(room.Join{ClientID: "terminal", Outbox: out}) {
		return errors.New("room stopped")
	}
	if _, ok := <-out; !ok {
		return errors.New("room stopped")
	}

	fmt.Fprintf(w, "%d candidates\n", n)
	winnerColor := color.New(color.FgHiMagenta, color.Bold).SprintFunc()

	for round := 1; round <= opts.rounds; round++ {
		rm.Send(room.FromClient{Cmd: engine.Command{Type: engine.CmdStartDraw}})

		winner, err := follow(ctx, out, w)
		if err != nil {
			return err
		}
		logger.Debug("round settled", zap.Int("round", round), zap.String("winner", winner))
		fmt.Fprintf(w, "\rWinner: %s\n", winnerColor(winner))
	}
	return nil
}

// follow prints each pick over the previous one and returns the winner once
// the draw settles.
func follow(ctx context.Context, out <-chan room.Snapshot, w io.Writer) (string, error) {
	width := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case snap, ok := <-out:
			if !ok {
				return "", errors.New("room stopped")
			}
			v := snap.View
			switch v.Status {
			case engine.StatusSettled:
				fmt.Fprintf(w, "\r%*s", width, "")
				return v.Winner, nil
			case engine.StatusDrawing:
				if v.Pick == "" {
					continue
				}
				line := fmt.Sprintf("drawing... %s", v.Pick)
				fmt.Fprintf(w, "\r%-*s", width, line)
				width = max(width, len(line))
			}
		}
	}
}
