package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/nudge"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/orchestrator"
)

var (
	chatSession string
	chatNoNudge bool
	chatProfile orchestrator.Profile
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"serve"},
	Short:   "Start an interactive tutoring session on stdin/stdout",
	Long: `Starts a tutoring REPL. Each line is one learner turn. While the learner
is idle the nudge scheduler escalates through three check-ins.

Type "quit" or "exit" to leave, ":state" to print the learner state.
When metrics.addr is set, prometheus collectors are served on /metrics.`,
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatSession, "session", "", "resume or create this session id")
	f.BoolVar(&chatNoNudge, "no-nudge", false, "disable idle nudges")
	f.StringVar(&chatProfile.Name, "name", "", "learner name")
	f.StringVar(&chatProfile.Subject, "subject", "", "subject being studied")
	f.StringVar(&chatProfile.Level, "level", "", "learner level")
	f.StringVar(&chatProfile.Goal, "goal", "", "learning goal")
	f.StringVar(&chatProfile.Language, "language", "", "reply language")
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	engine := a.engine()
	sess, err := engine.OpenSession(chatSession)
	if err != nil {
		return err
	}

	var sched *nudge.Scheduler
	if a.cfg.Nudge.Enabled && !chatNoNudge {
		sched = nudge.New(
			nudge.WithInterval(a.cfg.NudgeInterval()),
			nudge.WithLogger(a.logger),
		)
		sess.SetObserver(sched)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}
	if a.cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(gctx, a.cfg.Metrics.Addr, a.registry, a.logger) })
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Tutor ready.")
	fmt.Fprintf(out, "  session: %s | rubric: %s | turn: %d\n", sess.ID, a.cat.Version(), sess.State().Turn)
	fmt.Fprintln(out, `Type a message (or "quit" to exit):`)

	// Scan blocks on stdin and cannot observe ctx, so it stays outside the group.
	lines := readLines(ctx, cmd.InOrStdin(), sched)
	if sched != nil {
		sched.SetReady(true)
	}

	r := &repl{app: a, engine: engine, sess: sess, out: out}
	g.Go(func() error {
		defer cancel()
		return r.loop(gctx, lines, nudges(sched))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readLines forwards stdin lines and touches the scheduler on each one.
func readLines(ctx context.Context, in io.Reader, sched *nudge.Scheduler) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if sched != nil {
				sched.Touch()
			}
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func nudges(sched *nudge.Scheduler) <-chan nudge.Request {
	if sched == nil {
		return nil
	}
	return sched.Nudges()
}

// #region repl

type repl struct {
	app    *app
	engine *orchestrator.Engine
	sess   *orchestrator.Session
	out    io.Writer
}

func (r *repl) loop(ctx context.Context, lines <-chan string, nudgeCh <-chan nudge.Request) error {
	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			msg := strings.TrimSpace(line)
			switch msg {
			case "":
				continue
			case "quit", "exit":
				return nil
			case ":state":
				r.printState()
				continue
			}
			r.turn(ctx, msg)
		case req := <-nudgeCh:
			r.nudge(ctx, req)
		}
	}
}

func (r *repl) turn(ctx context.Context, msg string) {
	tctx, cancel := r.app.turnContext(ctx)
	defer cancel()
	res, err := r.engine.ProcessTurn(tctx, r.sess, msg, chatProfile)
	if err != nil {
		r.reportError(err)
		return
	}
	r.print(res)
}

func (r *repl) nudge(ctx context.Context, req nudge.Request) {
	r.app.logger.Debug("idle nudge", zap.Int("level", req.Level), zap.Duration("idle", req.IdleFor))
	tctx, cancel := r.app.turnContext(ctx)
	defer cancel()
	res, err := r.engine.ProcessNudge(tctx, r.sess, req.Level)
	if err != nil {
		r.reportError(err)
		return
	}
	fmt.Fprintln(r.out)
	r.print(res)
}

func (r *repl) print(res orchestrator.TurnResult) {
	fmt.Fprintf(r.out, "\n%s\n\n", res.SafeText)
	if !r.app.cfg.Logging.Verbose {
		return
	}
	t := res.Telemetry
	marker := ""
	if t.Degraded {
		marker = " degraded"
	}
	fmt.Fprintf(r.out, "[turn %d] tier=%s calls=%d g=%.2f %s %s%s\n",
		r.sess.State().Turn, t.Router.Tier, t.Calls, t.Validation.GFactor,
		t.Validation.Status, t.Decision, marker)
	for _, w := range t.Warnings {
		fmt.Fprintf(r.out, "  warning: %s\n", w)
	}
}

func (r *repl) reportError(err error) {
	switch {
	case errors.Is(err, orchestrator.ErrProviderUnavailable):
		fmt.Fprintln(r.out, "\nThe tutor is unreachable right now. Please try again.")
	case errors.Is(err, orchestrator.ErrSessionBusy):
		fmt.Fprintln(r.out, "\nStill working on the previous turn.")
	}
	r.app.logger.Error("turn failed", zap.Error(err))
}

func (r *repl) printState() {
	st := r.sess.State()
	dims := make([]string, 0, len(st.CurrentBands))
	for dim := range st.CurrentBands {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	fmt.Fprintf(r.out, "version %s (turn %d)\n", st.VersionID, st.Turn)
	for _, dim := range dims {
		fmt.Fprintf(r.out, "  %-4s %s\n", dim, st.CurrentBands[dim])
	}
}

// #endregion repl
