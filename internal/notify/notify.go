// Package notify holds the single status message a view shows after an
// asynchronous operation completes.
package notify

import (
	"time"

	"github.com/JonMunkholm/crm/internal/clock"
)

// Kind is the tone of a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notification is one status message.
type Notification struct {
	Kind      Kind
	Message   string
	CreatedAt time.Time
}

// Channel is a single-slot notification holder. A newer message replaces the
// older one. Messages expire after the TTL or at the next navigation.
//
// Channel is owned by one view session and is not safe for concurrent use.
type Channel struct {
	clock   clock.Clock
	ttl     time.Duration
	current *Notification
	carry   bool // survives the next Navigate
	seq     uint64
}

// New returns an empty channel.
func New(c clock.Clock, ttl time.Duration) *Channel {
	if c == nil {
		c = clock.Real{}
	}
	return &Channel{clock: c, ttl: ttl}
}

// Post shows a message in the current view. It disappears after the TTL or
// on the next navigation, whichever comes first.
func (c *Channel) Post(kind Kind, message string) {
	c.set(kind, message, false)
}

// Flash stores a message for the view about to be mounted, for example the
// list after a delete. It survives exactly one Navigate; its TTL starts then.
func (c *Channel) Flash(kind Kind, message string) {
	c.set(kind, message, true)
}

func (c *Channel) set(kind Kind, message string, carry bool) {
	c.seq++
	c.current = &Notification{Kind: kind, Message: message, CreatedAt: c.clock.Now()}
	c.carry = carry
}

// Navigate records a view mount. A flashed message becomes visible and
// starts its TTL; anything else is cleared.
func (c *Channel) Navigate() {
	if c.current == nil {
		return
	}
	if c.carry {
		c.carry = false
		c.seq++
		c.current.CreatedAt = c.clock.Now()
		return
	}
	c.Dismiss()
}

// Dismiss clears the slot.
func (c *Channel) Dismiss() {
	if c.current != nil {
		c.seq++
	}
	c.current = nil
	c.carry = false
}

// Current returns the visible message, if any. A flashed message is not
// visible until the view it was meant for is mounted.
func (c *Channel) Current() (Notification, bool) {
	if c.current == nil || c.carry {
		return Notification{}, false
	}
	if c.clock.Now().Sub(c.current.CreatedAt) >= c.ttl {
		c.Dismiss()
		return Notification{}, false
	}
	return *c.current, true
}

// ExpiresIn returns how long the visible message has left, or 0 when there
// is none.
func (c *Channel) ExpiresIn() time.Duration {
	n, ok := c.Current()
	if !ok {
		return 0
	}
	return c.ttl - c.clock.Now().Sub(n.CreatedAt)
}

// Seq changes whenever the slot changes. Renderers that schedule their own
// expiry tick compare it to ignore ticks for replaced messages.
func (c *Channel) Seq() uint64 {
	return c.seq
}
