package component

// callbackLock serializes every user callback within one component —
// state workers, subscriber callbacks, and timed callbacks alike — so
// user code is effectively single-threaded inside a component (spec
// §4.6, §5 "Callback mutex"). It is a 1-buffered channel rather than a
// sync.Mutex so Stop can drop a held lock without blocking: a callback
// goroutine parked on Lock when Stop fires is released by the extra
// Unlock that Stop performs, instead of waiting for the holder to
// finish on its own. The lock is not re-entrant: a goroutine that calls
// Lock while already holding it blocks.
type callbackLock struct {
	ch chan struct{}
}

func newCallbackLock() *callbackLock {
	l := &callbackLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

// Lock blocks until the token is available.
func (l *callbackLock) Lock() {
	<-l.ch
}

// Unlock returns the token. Safe to call even if nothing is currently
// waiting; an Unlock while the token is already available is a no-op.
// Every call site in this package pairs Unlock with Lock except Stop,
// whose unpaired Unlock relies on that no-op behaviour.
func (l *callbackLock) Unlock() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}
