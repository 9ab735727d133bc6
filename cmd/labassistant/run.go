package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/lab-assistant/internal/engine"
	"github.com/kingrea/lab-assistant/internal/runner"
	"github.com/kingrea/lab-assistant/internal/statusserver"
	"github.com/kingrea/lab-assistant/internal/tick"
	"github.com/kingrea/lab-assistant/internal/timer"
)

func runCmd(e *env) *cobra.Command {
	var (
		serve    bool
		keepOpen bool
	)
	cmd := &cobra.Command{
		Use:   "run [procedure]",
		Short: "Run a procedure without the TUI",
		Long: `Run a procedure headless, printing each step and substep change.

Type n, b or p followed by enter to move forward, back or toggle pause,
"g <step>" to jump, and q to stop. Without an argument the configured
default_procedure is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := e.cfg.DefaultProcedure()
			if len(args) == 1 {
				ref = args[0]
			}
			if strings.TrimSpace(ref) == "" {
				return fmt.Errorf("no procedure given and default_procedure is not set")
			}
			p, err := e.library.Find(cmd.Context(), ref)
			if err != nil {
				return err
			}
			eng := engine.New()
			if err := eng.LoadProcedure(p); err != nil {
				return err
			}
			if len(args) == 1 {
				if err := e.cfg.SetDefaultProcedure(ref); err != nil {
					e.log.Warn("persist default procedure", "err", err)
				}
			}

			out := &lockedWriter{w: cmd.OutOrStdout()}
			printer := &stepPrinter{w: out}
			opts := []runner.Option{
				runner.WithSource(tick.NewTicker(e.cfg.TickInterval())),
				runner.WithLogger(e.log.Logger),
				runner.WithJournal(e.journal),
				runner.WithName(p.Nickname),
				runner.WithObserver(printer.observe),
			}
			if !keepOpen {
				opts = append(opts, runner.WithExitOnFinish())
			}
			session, err := runner.NewSession(eng, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			settings, problems := statusserver.ResolveSettings(e.cfg, os.LookupEnv)
			for _, problem := range problems {
				e.log.Warn("status server setting ignored", "err", problem)
				fmt.Fprintln(out, warnMsg("ignoring %v", problem))
			}
			if serve {
				settings.Enabled = true
			}
			if settings.Enabled {
				server := statusserver.NewServer(settings, session,
					statusserver.WithLogger(e.log.Logger),
					statusserver.WithProcedureName(p.Nickname),
				)
				if err := server.Start(ctx); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = server.Shutdown(shutdownCtx)
				}()
				fmt.Fprintln(out, infoMsg("Status at %s/snapshot", server.BaseURL()))
			}

			fmt.Fprintln(out, boldStyle.Render(p.Nickname)+mutedStyle.Render(fmt.Sprintf("  %d steps", len(p.Steps))))
			go readControls(ctx, cmd.InOrStdin(), out, session, stop)
			if err := session.Run(ctx); err != nil {
				return err
			}
			if printer.last.Finished() {
				fmt.Fprintln(out, successMsg("%s complete", p.Nickname))
			} else {
				fmt.Fprintln(out, warnMsg("stopped at step %d/%d", printer.last.Index+1, printer.last.StepCount))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "Expose the running procedure on the status server")
	cmd.Flags().BoolVar(&keepOpen, "keep-open", false, "Keep running after the last step finishes")
	return cmd
}

// readControls maps lines from r onto session commands until r ends or the
// session stops. Rejected input is reported on w.
func readControls(ctx context.Context, r io.Reader, w io.Writer, session *runner.Session, quit func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(strings.ToLower(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "n", "next":
			_, err = session.StepForward(ctx)
		case "b", "back":
			_, err = session.StepBackward(ctx)
		case "p", "pause":
			_, err = session.TogglePause(ctx)
		case "g", "goto":
			if len(fields) < 2 {
				fmt.Fprintln(w, warnMsg("usage: g <step>"))
				continue
			}
			step, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				fmt.Fprintln(w, warnMsg("%q is not a step number", fields[1]))
				continue
			}
			_, err = session.GoToStep(ctx, step-1)
			if errors.Is(err, engine.ErrOutOfRange) {
				fmt.Fprintln(w, warnMsg("no step %d", step))
				continue
			}
		case "q", "quit":
			quit()
			return
		default:
			fmt.Fprintln(w, warnMsg("unknown command %q (n, b, p, g <step>, q)", fields[0]))
			continue
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, runner.ErrStopped) {
				return
			}
			fmt.Fprintln(w, errorMsg("%v", err))
		}
	}
}

// lockedWriter serialises writes from the control reader and the session
// observer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// stepPrinter renders session events as log-style lines. It is only called
// from the session goroutine.
type stepPrinter struct {
	w       io.Writer
	last    engine.State
	started bool
}

func (p *stepPrinter) observe(ev runner.Event) {
	state := ev.State
	if !p.started || state.Index != p.last.Index {
		p.printStep(state)
	} else if ev.Restarted {
		fmt.Fprintln(p.w, infoMsg("restarted"))
		p.printStep(state)
	} else if state.Paused != p.last.Paused {
		if state.Paused {
			fmt.Fprintln(p.w, warnMsg("paused"))
		} else {
			fmt.Fprintln(p.w, infoMsg("resumed"))
		}
	}
	if ev.Report.PrimaryElapsed && !ev.Report.Advanced && !state.AtLastStep() {
		fmt.Fprintln(p.w, warnMsg("%s done · type n to continue", state.Step.Title))
	}
	if ev.Report.SubstepFlipped && state.Substep.Active() {
		fmt.Fprintln(p.w, "  "+substepLine(state))
	}
	p.last = state
	p.started = true
}

func (p *stepPrinter) printStep(state engine.State) {
	length := "untimed"
	if state.Primary != nil {
		length = clock(*state.Primary)
	}
	fmt.Fprintln(p.w, infoMsg("Step %d/%d %s %s", state.Index+1, state.StepCount, boldStyle.Render(state.Step.Title), mutedStyle.Render("("+length+")")))
	if notes := strings.TrimSpace(state.Step.Notes); notes != "" {
		fmt.Fprintln(p.w, "  "+mutedStyle.Render(notes))
	}
	if state.Substep.Active() {
		fmt.Fprintln(p.w, "  "+substepLine(state))
	}
}

func substepLine(state engine.State) string {
	title := state.Substep.Title
	if title == "" {
		title = "substep"
	}
	if state.Substep.Phase == timer.PhaseActive {
		return fmt.Sprintf("%s %s %s", title, warnStyle.Render("ACTIVE"), clock(state.Substep.Remaining))
	}
	return fmt.Sprintf("%s %s %s", title, successStyle.Render("resting"), clock(state.Substep.Remaining))
}

// clock renders d as mm:ss, or h:mm:ss from an hour up.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
