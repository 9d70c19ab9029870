package compose

import "sync"

// Snapshot is what the distribution channel carries: the three derived values
// consumers observe. State is always a deep clone; subscribers may keep it.
type Snapshot struct {
	Phase      Phase                `json:"phase"`
	Validation ValidationResult     `json:"validation"`
	State      *ChapterComposeState `json:"state"`
}

// Channel is a minimal in-process publish/subscribe container: it holds the
// latest snapshot and a list of subscriber callbacks invoked synchronously,
// in subscription order, on every publish. No broker, no buffering.
//
// Callbacks run on the publisher's goroutine and must not block; consumers
// needing buffering bridge into their own channels.
type Channel struct {
	mu     sync.Mutex
	latest *Snapshot
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// NewChannel creates an empty channel with no published snapshot.
func NewChannel() *Channel {
	return &Channel{}
}

// Publish stores snap as the latest value and delivers it to every
// subscriber.
func (c *Channel) Publish(snap Snapshot) {
	c.mu.Lock()
	c.latest = &snap
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
}

// Subscribe registers fn and returns a cancel function that unregisters it.
// If a snapshot has already been published, fn is invoked immediately with
// the latest value.
func (c *Channel) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	latest := c.latest
	c.mu.Unlock()

	if latest != nil {
		fn(*latest)
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
	}
}

// Latest returns the most recently published snapshot, if any.
func (c *Channel) Latest() (Snapshot, bool) {
	if c == nil {
		return Snapshot{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}
