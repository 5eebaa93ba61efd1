package oren

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryWithBackoff runs fn until it succeeds, returns a non-temporary error,
// maxRetries retries have been spent (negative means no limit) or ctx is done.
// The delay between attempts grows exponentially from initial up to max.
func RetryWithBackoff(ctx context.Context, maxRetries int, initial, max time.Duration, fn func(attempt int) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn(attempt)
		if err == nil || IsTemporary(err) {
			return err
		}
		Debug("Encountered fatal error (not retrying): %v", err)
		return backoff.Permanent(err)
	}
	return backoff.RetryNotify(op, newRetryPolicy(ctx, maxRetries, initial, max), func(err error, next time.Duration) {
		Debug("Retry attempt %d failed: %v (waiting %v before retry)", attempt, err, next)
	})
}

func newRetryPolicy(ctx context.Context, maxRetries int, initial, max time.Duration) backoff.BackOff {
	var b backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(max),
		backoff.WithMaxElapsedTime(0),
	)
	if maxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// transmit delivers one accepted SendData frame, retransmitting while the
// transport reports it lost. Every attempt is checked against the session it
// was accepted in; once that session is gone the send is abandoned and no
// further counters move.
func (c *Client) transmit(ctx context.Context, epoch uint64, conn Conn, d *Delivery, payload []byte) {
	err := RetryWithBackoff(ctx, d.maxRetry, c.config.RetryInitialInterval, c.config.RetryMaxInterval,
		func(attempt int) error {
			if !c.beginAttempt(epoch, d, attempt) {
				return ErrSendAbandoned
			}
			err := conn.Send(ctx, Frame{Line: d.line, Type: d.dataType, Payload: payload, Attempt: attempt})
			switch {
			case err == nil:
				return nil
			case ctx.Err() != nil:
				return ErrSendAbandoned
			case errors.Is(err, context.DeadlineExceeded):
				// The transport's own per-attempt deadline.
				return fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return err
		})
	if err != nil && ctx.Err() != nil {
		err = ErrSendAbandoned
	}
	c.completeSend(epoch, d, err)
}

// beginAttempt counts an attempt if the session that accepted the send is
// still online.
func (c *Client) beginAttempt(epoch uint64, d *Delivery, attempt int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.session.epoch || c.session.state != StateOnline {
		return false
	}
	c.stats.recordAttempt(attempt)
	if c.metrics != nil {
		c.metrics.IncrementFrameSent(d.dataType)
	}
	if l, ok := c.lines.get(d.line); ok && l.lastSend == d {
		l.pendingRetry = attempt - 1
	}
	d.setAttempts(attempt)
	return true
}

// completeSend records the outcome of a send.
func (c *Client) completeSend(epoch uint64, d *Delivery, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.session.epoch || c.session.state != StateOnline ||
		errors.Is(err, ErrSendAbandoned) {
		Debug("Abandoned %s", d)
		d.finish(ErrSendAbandoned)
		return
	}

	switch {
	case err == nil:
		c.stats.recordDelivered(d.size)
		if c.metrics != nil {
			c.metrics.AddBytesSent(uint64(d.size))
		}
		d.finish(nil)
	case IsTemporary(err):
		Warning("Lost %s after %d attempts: %v", d, d.Attempts(), err)
		c.stats.recordLost()
		c.trackError("lost")
		d.finish(NewLineError(d.line, "send", fmt.Errorf("%w: %v", ErrSendLost, err)))
	default:
		Error("Send failed on line %d: %v", d.line, err)
		c.stats.recordLost()
		c.trackError("send")
		d.finish(NewLineError(d.line, "send", err))
	}
}
