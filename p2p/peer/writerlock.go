package peer

import (
	"errors"
	"time"
)

// errLockTimeout is returned by writerLock.acquire when no writer becomes
// available before the deadline.
var errLockTimeout = errors.New("peer: timed out waiting for the writer slot")

// writerLock is a cap-1 semaphore guarding a peer's session.Writer against
// concurrent SendMessage calls. The channel receive/send pair is safe to
// call from any number of goroutines at once: the runtime scheduler picks
// exactly one winner per available token, so concurrent SendMessage
// callers queue on acquire instead of racing each other.
type writerLock struct {
	slot chan struct{}
}

func newWriterLock() *writerLock {
	l := &writerLock{slot: make(chan struct{}, 1)}
	l.slot <- struct{}{}
	return l
}

// acquire blocks until the slot is available or timeout elapses. Safe to
// call concurrently from any number of goroutines.
func (l *writerLock) acquire(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.slot:
		return nil
	case <-timer.C:
		return errLockTimeout
	}
}

// release hands the slot back. Panics if the slot was already free, which
// would mean a caller released without first acquiring.
func (l *writerLock) release() {
	select {
	case l.slot <- struct{}{}:
	default:
		panic("writer lock released while already free")
	}
}
