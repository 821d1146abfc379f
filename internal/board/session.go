package board

import (
	"context"
	"errors"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultAutosaveDelay = 1000 * time.Millisecond

var ErrStopped = errors.New("session stopped")

type request struct {
	ev    Event
	reply chan error
}

// Session owns a Board and applies every pointer, command, remote and autosave
// event on the goroutine running Run, one at a time.
type Session struct {
	board  *Board
	logger *slog.Logger
	delay  time.Duration

	inbox   chan request
	done    chan struct{}
	pending bool
}

func NewSession(opts Options) (*Session, error) {
	s := &Session{
		inbox: make(chan request),
		done:  make(chan struct{}),
		delay: opts.AutosaveDelay,
	}

	if s.delay <= 0 {
		s.delay = DefaultAutosaveDelay
	}

	opts.schedule = s.scheduleAutosave

	b, err := New(opts)
	if err != nil {
		return nil, err
	}

	s.board = b
	s.logger = b.logger
	return s, nil
}

// Run handles events until ctx is done. A pending autosave is flushed before
// it returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			if s.pending {
				if err := s.board.autosave(context.WithoutCancel(ctx)); err != nil {
					s.logger.Error("final autosave failed", err)
				}
			}
			return ctx.Err()

		case req := <-s.inbox:
			if req.ev.Kind == EventAutosave {
				s.pending = false
			}

			err := s.board.Handle(ctx, req.ev)
			if req.reply != nil {
				req.reply <- err
				continue
			}

			if err != nil {
				s.logger.Error("autosave failed", err)
			}
		}
	}
}

// Submit queues ev and waits until it has been applied.
func (s *Session) Submit(ctx context.Context, ev Event) error {
	req := request{ev: ev, reply: make(chan error, 1)}

	select {
	case s.inbox <- req:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inspect runs fn against the board between two events.
func (s *Session) Inspect(ctx context.Context, fn func(*Board)) error {
	return s.Submit(ctx, Event{Kind: eventInspect, inspect: fn})
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// scheduleAutosave runs on the Run goroutine. The first change arms a timer;
// later changes ride along until it fires and the save sees the newest surface.
func (s *Session) scheduleAutosave() {
	if s.pending {
		return
	}

	s.pending = true
	time.AfterFunc(s.delay, func() {
		select {
		case s.inbox <- request{ev: Event{Kind: EventAutosave}}:
		case <-s.done:
		}
	})
}
