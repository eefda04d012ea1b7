package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrStreamIdle is returned by a stream body that delivered no bytes within
// the per-call timeout.
var ErrStreamIdle = errors.New("stream idle")

// idleBody cancels the underlying request when no bytes arrive for
// timeout. Each successful read re-arms the timer.
type idleBody struct {
	rc      io.ReadCloser
	ctx     context.Context
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func newIdleBody(ctx context.Context, cancel context.CancelCauseFunc, rc io.ReadCloser, timeout time.Duration) *idleBody {
	b := &idleBody{rc: rc, ctx: ctx, cancel: cancel, timeout: timeout}
	b.timer = time.AfterFunc(timeout, func() { cancel(ErrStreamIdle) })
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.timer.Reset(b.timeout)
	}
	if err != nil && err != io.EOF && errors.Is(context.Cause(b.ctx), ErrStreamIdle) {
		err = fmt.Errorf("%w for %s", ErrStreamIdle, b.timeout)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	err := b.rc.Close()
	b.cancel(context.Canceled)
	return err
}
