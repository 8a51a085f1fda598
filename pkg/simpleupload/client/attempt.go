package client

import (
	"context"
	"sync"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Attempt is one upload, from authorization to a terminal outcome.
// Attempts are never reused; each owns its cancellation and its authorization.
type Attempt struct {
	ctx    context.Context
	cancel context.CancelFunc
	file   *simpleupload.File
	done   chan struct{}

	mu       sync.Mutex
	state    simpleupload.State
	outcome  simpleupload.Outcome
	progress float64

	// serializes progress delivery so callbacks never observe a lower value
	progressMu sync.Mutex
}

func newAttempt(parent context.Context, file *simpleupload.File) *Attempt {
	ctx, cancel := context.WithCancel(parent)
	return &Attempt{
		ctx:    ctx,
		cancel: cancel,
		file:   file,
		done:   make(chan struct{}),
		state:  simpleupload.StateIdle,
	}
}

// Abort requests cancellation. An attempt that has not resolved yet resolves
// to Aborted; calling Abort after resolution has no effect.
func (a *Attempt) Abort() {
	a.cancel()
}

// Done is closed once the outcome is final and every callback has run
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt resolves or ctx is done
func (a *Attempt) Wait(ctx context.Context) (simpleupload.Outcome, error) {
	select {
	case <-a.done:
		return a.Outcome(), nil
	case <-ctx.Done():
		return simpleupload.Outcome{}, ctx.Err()
	}
}

// State returns the current lifecycle state
func (a *Attempt) State() simpleupload.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Outcome returns the outcome; it is the zero value until the attempt resolves
func (a *Attempt) Outcome() simpleupload.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// Progress returns the last reported progress in percent
func (a *Attempt) Progress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// File returns the file being uploaded
func (a *Attempt) File() *simpleupload.File {
	return a.file
}

func (a *Attempt) aborted() bool {
	return a.ctx.Err() != nil
}

// advance moves to a non-terminal state; it fails once the attempt resolved
// or was aborted.
func (a *Attempt) advance(s simpleupload.State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() || a.aborted() {
		return false
	}
	a.state = s
	return true
}

// finish records the terminal outcome. An abort requested before this point
// always wins, even over a success the provider already acknowledged.
func (a *Attempt) finish(o simpleupload.Outcome) simpleupload.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() {
		return a.outcome
	}
	if a.aborted() {
		o = simpleupload.Aborted()
	}
	a.state = o.State
	a.outcome = o
	return o
}

// reportProgress converts loaded/total to percent and passes it to emit when
// it is higher than anything reported before.
func (a *Attempt) reportProgress(loaded, total int64, emit func(float64)) {
	if total <= 0 {
		return
	}
	pct := float64(loaded) / float64(total) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	a.progressMu.Lock()
	defer a.progressMu.Unlock()

	a.mu.Lock()
	if a.state.IsTerminal() || pct <= a.progress {
		a.mu.Unlock()
		return
	}
	a.progress = pct
	a.mu.Unlock()

	if emit != nil {
		emit(pct)
	}
}
