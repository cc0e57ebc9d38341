package viewer

import (
	"context"
	"errors"
)

// Loader loads one attempt and blocks until it has rendered or failed.
type Loader interface {
	Load(ctx context.Context, att Attempt) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, att Attempt) error

func (f LoaderFunc) Load(ctx context.Context, att Attempt) error {
	return f(ctx, att)
}

// Drive runs the session to a terminal phase using a blocking loader, one attempt at a time.
// Each load gets a context bounded by the session's LoadTimeout. If ctx ends first the session
// is closed.
func (s *Session) Drive(ctx context.Context, loader Loader) Snapshot {
	att, ok := s.Start()
	if !ok {
		att, ok = s.Current()
	}
	for ok {
		loadCtx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
		err := loader.Load(loadCtx, att)
		timedOut := errors.Is(loadCtx.Err(), context.DeadlineExceeded)
		cancel()

		if ctx.Err() != nil {
			s.Close()
			break
		}
		switch {
		case err == nil:
			s.Loaded(att.Token)
		case timedOut:
			s.Failed(att.Token, ErrLoadTimeout)
		default:
			s.Failed(att.Token, err)
		}
		// A stale outcome means the session's own timer already moved on.
		att, ok = s.Current()
	}
	return s.Snapshot()
}
