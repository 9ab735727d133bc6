// Package runner owns an engine on a dedicated goroutine and feeds it from a
// tick source. Navigation and queries from other goroutines are serialised
// through the session's command channel so the engine never sees concurrent
// access.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/kingrea/lab-assistant/internal/engine"
	"github.com/kingrea/lab-assistant/internal/logbook"
	"github.com/kingrea/lab-assistant/internal/tick"
)

// ErrStopped is returned by session calls made after Run has exited.
var ErrStopped = errors.New("runner: session stopped")

// Event is delivered to observers after every tick or command that was
// applied to the engine.
type Event struct {
	State  engine.State
	Report engine.TickReport
	// StepChanged is set when the current step differs from the previous event.
	StepChanged bool
	// Restarted is set when a GoToStep reinitialised the step's timers.
	Restarted bool
}

// Observer receives events on the session goroutine. It must not call back
// into the session.
type Observer func(Event)

// Session runs one engine.
type Session struct {
	eng      *engine.Engine
	name     string
	source   tick.Source
	logger   *slog.Logger
	journal  *logbook.Logbook
	observer Observer
	exit     bool

	cmds    chan command
	done    chan struct{}
	started sync.Once
}

type command struct {
	apply   func(*engine.Engine) error
	reply   chan result
	restart bool
}

type result struct {
	state engine.State
	err   error
}

// Option customises a session.
type Option func(*Session)

// WithSource replaces the default wall-clock tick source.
func WithSource(src tick.Source) Option {
	return func(s *Session) {
		if src != nil {
			s.source = src
		}
	}
}

// WithLogger routes session diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal records step transitions in the sessions logbook.
func WithJournal(book *logbook.Logbook) Option {
	return func(s *Session) {
		s.journal = book
	}
}

// WithObserver registers a callback for engine events.
func WithObserver(fn Observer) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithName labels log lines and journal entries with the procedure name.
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}

// WithExitOnFinish makes Run return once the last step's countdown is spent.
func WithExitOnFinish() Option {
	return func(s *Session) {
		s.exit = true
	}
}

// NewSession wraps a loaded engine. Without WithSource the session ticks
// once per tick.DefaultInterval.
func NewSession(eng *engine.Engine, opts ...Option) (*Session, error) {
	if eng == nil {
		return nil, errors.New("runner: engine is required")
	}
	if !eng.Loaded() {
		return nil, errors.New("runner: engine has no procedure loaded")
	}
	s := &Session{
		eng:    eng,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cmds:   make(chan command),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run drives the engine until ctx is cancelled, or until the procedure
// finishes when WithExitOnFinish is set. The tick source is stopped on
// return. Run may only be called once.
func (s *Session) Run(ctx context.Context) error {
	ran := false
	s.started.Do(func() { ran = true })
	if !ran {
		return ErrStopped
	}
	if s.source == nil {
		s.source = tick.NewTicker(tick.DefaultInterval)
	}
	defer close(s.done)
	defer s.source.Stop()

	last := s.eng.Snapshot()
	s.logger.Info("session started", "procedure", s.name, "steps", last.StepCount)
	s.journal.Info("start %s (%d steps)", s.label(), last.StepCount)
	s.logStep(last)
	s.emit(Event{State: last, StepChanged: true})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", "procedure", s.name, "step", last.Index)
			s.journal.Info("stop %s at step %d", s.label(), last.Index+1)
			return nil
		case <-s.source.C():
			report := s.eng.Tick()
			if report.Ignored {
				continue
			}
			state := s.eng.Snapshot()
			changed := state.Index != last.Index
			if report.PrimaryElapsed {
				s.logger.Info("step timer elapsed", "step", last.Index, "title", last.Step.Title)
			}
			if report.SubstepFlipped {
				s.logger.Debug("substep phase", "step", state.Index, "phase", state.Substep.Phase.String())
			}
			if changed {
				s.logStep(state)
			}
			last = state
			s.emit(Event{State: state, Report: report, StepChanged: changed})
			if s.exit && state.Finished() {
				s.logger.Info("session finished", "procedure", s.name)
				s.journal.Info("finished %s", s.label())
				return nil
			}
		case cmd := <-s.cmds:
			err := cmd.apply(s.eng)
			state := s.eng.Snapshot()
			cmd.reply <- result{state: state, err: err}
			if err != nil {
				s.logger.Warn("session command rejected", "err", err)
				continue
			}
			moved := state.Index != last.Index
			if moved || cmd.restart {
				s.logStep(state)
			}
			changed := moved || cmd.restart || state.Paused != last.Paused
			last = state
			if changed {
				s.emit(Event{State: state, StepChanged: moved, Restarted: cmd.restart})
			}
		}
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the current engine state.
func (s *Session) Snapshot(ctx context.Context) (engine.State, error) {
	return s.do(ctx, func(*engine.Engine) error { return nil })
}

// GoToStep jumps to index. Jumping to the current step restarts its timers.
func (s *Session) GoToStep(ctx context.Context, index int) (engine.State, error) {
	return s.send(ctx, command{
		apply:   func(e *engine.Engine) error { return e.GoToStep(index) },
		restart: true,
	})
}

// StepForward moves to the next step if there is one.
func (s *Session) StepForward(ctx context.Context) (engine.State, error) {
	return s.do(ctx, func(e *engine.Engine) error {
		e.StepForward()
		return nil
	})
}

// StepBackward moves to the previous step if there is one.
func (s *Session) StepBackward(ctx context.Context) (engine.State, error) {
	return s.do(ctx, func(e *engine.Engine) error {
		e.StepBackward()
		return nil
	})
}

// Pause freezes the engine.
func (s *Session) Pause(ctx context.Context) (engine.State, error) {
	return s.do(ctx, func(e *engine.Engine) error {
		e.Pause()
		return nil
	})
}

// Resume unfreezes the engine.
func (s *Session) Resume(ctx context.Context) (engine.State, error) {
	return s.do(ctx, func(e *engine.Engine) error {
		e.Resume()
		return nil
	})
}

// TogglePause flips the paused flag.
func (s *Session) TogglePause(ctx context.Context) (engine.State, error) {
	return s.do(ctx, func(e *engine.Engine) error {
		e.TogglePause()
		return nil
	})
}

func (s *Session) do(ctx context.Context, fn func(*engine.Engine) error) (engine.State, error) {
	return s.send(ctx, command{apply: fn})
}

func (s *Session) send(ctx context.Context, cmd command) (engine.State, error) {
	reply := make(chan result, 1)
	cmd.reply = reply
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return engine.State{}, ErrStopped
	case <-ctx.Done():
		return engine.State{}, ctx.Err()
	}
	res := <-reply
	return res.state, res.err
}

func (s *Session) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}

func (s *Session) logStep(state engine.State) {
	s.logger.Info("step entered", "procedure", s.name, "step", state.Index, "title", state.Step.Title)
	s.journal.Info("%s step %d/%d %s", s.label(), state.Index+1, state.StepCount, state.Step.Title)
}

func (s *Session) label() string {
	if s.name == "" {
		return "procedure"
	}
	return s.name
}
