// Package canbus wraps a socketcan bus into a simple send/recv-with-timeout
// channel, matching the shape the OBD dispatcher and the supervisor's CAN
// receive loop expect: non-blocking receive bounded by a timeout, and a send that never
// blocks indefinitely.
package canbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/brutella/can"
)

// Frame is an 11-bit-arbitration CAN frame. Extended IDs and CAN-FD are not
// part of this system's wire format.
type Frame struct {
	ID     uint32
	Data   [8]byte
	Length uint8
}

// Logger is the subset of the application logger the channel needs.
type Logger interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Channel is a receive-buffered wrapper around a *can.Bus. Frames arriving
// on the bus are queued by a subscribed handler; Recv drains that queue or
// times out.
type Channel struct {
	bus    *can.Bus
	logger Logger

	incoming chan can.Frame

	mu         sync.Mutex
	sendErrors uint64
	dropped    uint64

	closeOnce sync.Once
	done      chan struct{}
}

// frameHandler adapts the channel's enqueue method to brutella/can's
// Handler interface.
type frameHandler struct {
	ch *Channel
}

func (h frameHandler) Handle(frame can.Frame) {
	h.ch.enqueue(frame)
}

// Open binds to the named CAN interface (e.g. "vcan0") and starts the
// background read loop. The returned Channel must be closed with Close.
func Open(name string, logger Logger) (*Channel, error) {
	bus, err := can.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, fmt.Errorf("open CAN interface %q: %w", name, err)
	}

	ch := &Channel{
		bus:      bus,
		logger:   logger,
		incoming: make(chan can.Frame, 256),
		done:     make(chan struct{}),
	}

	bus.Subscribe(frameHandler{ch: ch})

	go func() {
		if err := bus.ConnectAndPublish(); err != nil {
			select {
			case <-ch.done:
				// closed deliberately, suppress the expected error
			default:
				logger.Printf("CAN bus terminated: %v", err)
			}
		}
	}()

	return ch, nil
}

func (c *Channel) enqueue(frame can.Frame) {
	select {
	case c.incoming <- frame:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.logger.Debug("CAN receive queue full, dropping frame 0x%03X", frame.ID)
	}
}

// Send transmits a frame. Failures are logged and counted by the caller via
// the returned error; they never terminate the caller's loop.
func (c *Channel) Send(f Frame) error {
	frame := can.Frame{ID: f.ID, Length: f.Length, Data: f.Data}
	if err := c.bus.Publish(frame); err != nil {
		c.mu.Lock()
		c.sendErrors++
		c.mu.Unlock()
		return fmt.Errorf("send frame 0x%03X: %w", f.ID, err)
	}
	c.logger.Debug("CAN TX: ID=0x%03X Len=%d Data=%02X", f.ID, f.Length, f.Data[:f.Length])
	return nil
}

// Recv blocks until a frame arrives or timeout elapses, returning ok=false
// on timeout. It never blocks indefinitely.
func (c *Channel) Recv(timeout time.Duration) (frame Frame, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-c.incoming:
		c.logger.Debug("CAN RX: ID=0x%03X Len=%d Data=%02X", f.ID, f.Length, f.Data[:f.Length])
		return Frame{ID: f.ID, Data: f.Data, Length: f.Length}, true
	case <-timer.C:
		return Frame{}, false
	}
}

// DroppedFrames returns how many inbound frames were discarded because the
// receive queue was full.
func (c *Channel) DroppedFrames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// SendErrors returns the count of failed Send calls.
func (c *Channel) SendErrors() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendErrors
}

// Close disconnects the underlying bus. Safe to call more than once; only
// the first call disconnects.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.bus.Disconnect()
	})
	return err
}
