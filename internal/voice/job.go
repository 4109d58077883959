package voice

import (
	"sync"

	"github.com/google/uuid"
)

// CursorState is the terminal-tracking state of one target's stream
// within a job.
type CursorState int32

const (
	CursorActive CursorState = iota
	CursorSucceeded
	CursorFailed
	CursorStopped
)

func (s CursorState) String() string {
	switch s {
	case CursorActive:
		return "active"
	case CursorSucceeded:
		return "succeeded"
	case CursorFailed:
		return "failed"
	default:
		return "stopped"
	}
}

// Cursor is one target's playback position and outcome. The engine's
// stream goroutine is its only writer.
type Cursor struct {
	link *Link

	mu       sync.Mutex
	state    CursorState
	frame    int
	err      error
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newCursor(link *Link) *Cursor {
	return &Cursor{
		link: link,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// State returns the cursor's current state.
func (c *Cursor) State() CursorState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Err returns the failure cause for a failed cursor.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Frame returns how many frames have been written.
func (c *Cursor) Frame() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.frame
}

// requestStop asks the stream goroutine to stop at the next frame
// boundary. No-op on a terminal cursor.
func (c *Cursor) requestStop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cursor) advance() {
	c.mu.Lock()
	c.frame++
	c.mu.Unlock()
}

func (c *Cursor) finish(state CursorState, err error) {
	c.mu.Lock()
	c.state = state
	c.err = err
	c.mu.Unlock()
	close(c.done)
}

// Job is one playback request fanned out to a set of voice links,
// with one independent cursor per target account.
type Job struct {
	id      string
	cursors map[string]*Cursor // accountID → cursor

	wg   sync.WaitGroup
	done chan struct{}
}

func newJob(links []*Link) *Job {
	j := &Job{
		id:      uuid.NewString(),
		cursors: make(map[string]*Cursor, len(links)),
		done:    make(chan struct{}),
	}
	for _, l := range links {
		j.cursors[l.AccountID()] = newCursor(l)
	}

	return j
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Cursor returns the cursor for an account, or nil.
func (j *Job) Cursor(accountID string) *Cursor {
	return j.cursors[accountID]
}

// Cursors returns the per-account cursors.
func (j *Job) Cursors() map[string]*Cursor {
	return j.cursors
}

// Active reports whether at least one cursor is still streaming.
func (j *Job) Active() bool {
	for _, c := range j.cursors {
		if c.State() == CursorActive {
			return true
		}
	}

	return false
}

// Done is closed once every cursor is terminal.
func (j *Job) Done() <-chan struct{} { return j.done }
