package voice

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/pkg/audio"
)

// Engine fans one audio source out to N voice links. Each target
// streams in its own goroutine with an independent cursor; a failure
// or stop on one target never affects the others. The engine runs at
// most one cursor per link at a time and rejects submissions to a
// busy link.
type Engine struct {
	logger        *zap.Logger
	frameDuration time.Duration

	mu   sync.Mutex
	jobs map[string]*Job
	busy map[*Link]*Cursor
}

// maxRetainedJobs bounds the completed-job history kept for status
// lookups.
const maxRetainedJobs = 256

// NewEngine creates a fan-out engine pacing writes at frameDuration.
func NewEngine(logger *zap.Logger, frameDuration time.Duration) *Engine {
	return &Engine{
		logger:        logger,
		frameDuration: frameDuration,
		jobs:          make(map[string]*Job),
		busy:          make(map[*Link]*Cursor),
	}
}

// Submit starts streaming src to every target link. All targets must
// be Active and idle; targets must be non-empty. On success the
// returned job is already streaming.
func (e *Engine) Submit(src *audio.Source, targets []*Link) (*Job, error) {
	if len(targets) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no target voice links")
	}

	seen := make(map[string]bool, len(targets))
	for _, l := range targets {
		if seen[l.AccountID()] {
			return nil, apperr.Newf(apperr.KindValidation, "duplicate target account %s", l.AccountID())
		}
		seen[l.AccountID()] = true

		if state := l.State(); state != LinkActive {
			return nil, apperr.Newf(apperr.KindVoiceLinkClosed,
				"voice link for account %s is %s, not active", l.AccountID(), state)
		}
	}

	e.mu.Lock()
	for _, l := range targets {
		if _, taken := e.busy[l]; taken {
			e.mu.Unlock()

			return nil, apperr.Newf(apperr.KindTargetBusy,
				"account %s already has active playback", l.AccountID())
		}
	}

	job := newJob(targets)
	for _, l := range targets {
		e.busy[l] = job.Cursor(l.AccountID())
	}
	e.pruneLocked()
	e.jobs[job.ID()] = job
	e.mu.Unlock()

	for _, l := range targets {
		cursor := job.Cursor(l.AccountID())
		job.wg.Add(1)
		go e.stream(job, cursor, src)
	}

	go func() {
		job.wg.Wait()
		close(job.done)
	}()

	e.logger.Info("audio job submitted",
		zap.String("job_id", job.ID()),
		zap.Int("targets", len(targets)),
		zap.Int("frames", src.NumFrames()))

	return job, nil
}

// pruneLocked drops completed jobs once the retained history grows
// past its cap. Callers hold e.mu.
func (e *Engine) pruneLocked() {
	if len(e.jobs) < maxRetainedJobs {
		return
	}
	for id, job := range e.jobs {
		if !job.Active() {
			delete(e.jobs, id)
		}
	}
}

// Job returns a submitted job by id.
func (e *Engine) Job(id string) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, ok := e.jobs[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "unknown audio job %q", id)
	}

	return job, nil
}

// Stop requests cooperative cancellation of every still-active cursor
// of a job and waits for their stream goroutines to finish. Cursors
// already terminal are untouched.
func (e *Engine) Stop(jobID string) error {
	job, err := e.Job(jobID)
	if err != nil {
		return err
	}

	for _, cursor := range job.Cursors() {
		cursor.requestStop()
	}
	job.wg.Wait()

	return nil
}

// StopAccount cancels only the cursors addressed to one account,
// leaving the rest of any shared job running. It waits for the
// cancelled cursors to finish. Stopping an account with no active
// playback is a no-op.
func (e *Engine) StopAccount(accountID string) {
	e.mu.Lock()
	var stopped []*Cursor
	for link, cursor := range e.busy {
		if link.AccountID() == accountID {
			stopped = append(stopped, cursor)
		}
	}
	e.mu.Unlock()

	for _, cursor := range stopped {
		cursor.requestStop()
		<-cursor.done
	}
}

// stream feeds one target until the source ends, the cursor is
// stopped, or the link dies. Cancellation is checked at frame
// granularity; an in-flight transport write is never interrupted.
func (e *Engine) stream(job *Job, cursor *Cursor, src *audio.Source) {
	defer job.wg.Done()

	ticker := time.NewTicker(e.frameDuration)
	defer ticker.Stop()

	state, err := CursorSucceeded, error(nil)

	for i := 0; ; i++ {
		frame := src.Frame(i)
		if frame == nil {
			break
		}

		select {
		case <-cursor.stop:
			state = CursorStopped
		case <-cursor.link.Done():
			state = CursorFailed
			err = apperr.Newf(apperr.KindVoiceLinkClosed,
				"voice link for account %s closed mid-stream", cursor.link.AccountID())
		case <-ticker.C:
			if werr := cursor.link.WriteFrame(frame); werr != nil {
				state = CursorFailed
				err = werr
			} else {
				cursor.advance()
			}
		}

		if state != CursorSucceeded {
			break
		}
	}

	e.mu.Lock()
	if e.busy[cursor.link] == cursor {
		delete(e.busy, cursor.link)
	}
	e.mu.Unlock()

	cursor.finish(state, err)

	e.logger.Debug("audio cursor finished",
		zap.String("job_id", job.ID()),
		zap.String("account_id", cursor.link.AccountID()),
		zap.String("state", state.String()),
		zap.Int("frames_written", cursor.Frame()),
		zap.Error(err))
}
