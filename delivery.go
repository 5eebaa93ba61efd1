package oren

import (
	"context"
	"fmt"
	"sync"
)

// Delivery tracks one SendData call until the frame is acknowledged, lost or
// abandoned. Exactly one outcome is recorded.
type Delivery struct {
	line     uint32
	dataType DataType
	size     int
	maxRetry int

	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	attempts int
	err      error
}

func newDelivery(line uint32, dataType DataType, size, maxRetry int) *Delivery {
	return &Delivery{
		line:     line,
		dataType: dataType,
		size:     size,
		maxRetry: maxRetry,
		done:     make(chan struct{}),
	}
}

// Line returns the line the data was sent on.
func (d *Delivery) Line() uint32 { return d.line }

// Type returns the data type of the frame.
func (d *Delivery) Type() DataType { return d.dataType }

// Size returns the payload size in bytes.
func (d *Delivery) Size() int { return d.size }

// Done is closed once the outcome is known.
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Err returns nil while pending or after success, ErrSendLost (wrapped) when
// the retry budget ran out, ErrSendAbandoned when the session ended first,
// or the fatal transport error.
func (d *Delivery) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Attempts returns the number of transmission attempts made so far.
func (d *Delivery) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// Wait blocks until the outcome is known or ctx is done.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Delivery) setAttempts(n int) {
	d.mu.Lock()
	d.attempts = n
	d.mu.Unlock()
}

func (d *Delivery) finish(err error) {
	d.once.Do(func() {
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		close(d.done)
	})
}

func (d *Delivery) String() string {
	return fmt.Sprintf("Delivery{line=%d type=%s size=%d attempts=%d}", d.line, d.dataType, d.size, d.Attempts())
}

// SendData sends one data frame on a started line. The frame is retransmitted
// up to maxRetry times while the transport reports it lost; any negative
// maxRetry, such as InfiniteRetry, keeps trying until delivery or the end of
// the session.
//
// SendData returns as soon as the frame is queued. The returned Delivery
// reports the outcome; a failure after acceptance is never silent.
func (c *Client) SendData(line uint32, dataType DataType, data []byte, maxRetry int) (*Delivery, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := validateLine(line); err != nil {
		return nil, err
	}
	switch {
	case dataType > UserData:
		return nil, NewLineError(line, "send", fmt.Errorf("%w: data type %d", ErrInvalidArgument, uint32(dataType)))
	case len(data) == 0:
		return nil, NewLineError(line, "send", fmt.Errorf("%w: empty payload", ErrInvalidArgument))
	case len(data) > OREN_MAX_PAYLOAD_SIZE:
		return nil, NewLineError(line, "send",
			fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidArgument, len(data), OREN_MAX_PAYLOAD_SIZE))
	}

	c.mu.Lock()
	conn, sessionCtx, err := c.onlineConnLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, NewLineError(line, "send", err)
	}
	l, ok := c.lines.get(line)
	if !ok {
		c.mu.Unlock()
		return nil, NewLineError(line, "send", ErrLineUnknown)
	}
	if l.remoteRefused.Refuses(dataType) {
		c.mu.Unlock()
		return nil, NewLineError(line, "send", fmt.Errorf("%w: %s", ErrDataRefused, dataType))
	}

	d := newDelivery(line, dataType, len(data), maxRetry)
	l.lastSend = d
	l.pendingRetry = 0
	c.stats.recordGenerated(len(data))
	epoch := c.session.epoch
	payload := cloneBytes(data)
	c.spawn(func() { c.transmit(sessionCtx, epoch, conn, d, payload) })
	c.mu.Unlock()

	return d, nil
}
