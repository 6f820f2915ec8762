package safe_close

import "sync"

// SafeClose coordinates the shutdown of a long running service and the
// goroutines it starts (API server, tick loop).
//
//  1. The main goroutine waits on ReceiveCloseSignal and calls Done before it returns.
//  2. Worker goroutines are started with Attach and exit on the close signal.
//  3. Any goroutine may call SendCloseSignal with a fatal error to stop the service.
//     Workers must not call CloseWait, it would deadlock.
//  4. Outside callers stop the service with CloseWait.
type SafeClose struct {
	m           sync.Mutex
	wg          sync.WaitGroup
	closeSignal chan struct{}
	done        chan struct{}
	doneOnce    sync.Once
	closeErr    error
}

func NewSafeClose() *SafeClose {
	return &SafeClose{
		closeSignal: make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// CloseWait sends the close signal and blocks until Done was called and
// every attached goroutine returned. Safe to call more than once.
func (s *SafeClose) CloseWait() {
	s.SendCloseSignal(nil)
	s.wg.Wait()
	<-s.done
}

// SendCloseSignal closes the close signal channel. The first non-nil err
// is kept and returned by Err.
func (s *SafeClose) SendCloseSignal(err error) {
	s.m.Lock()
	defer s.m.Unlock()

	if err != nil && s.closeErr == nil {
		s.closeErr = err
	}
	if !s.closedLocked() {
		close(s.closeSignal)
	}
}

func (s *SafeClose) Err() error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.closeErr
}

func (s *SafeClose) ReceiveCloseSignal() <-chan struct{} {
	return s.closeSignal
}

// Attach runs f in a new goroutine tracked by CloseWait. f must return
// after closeSignal is closed and call done when it returns.
// If the close signal was already sent, f is not run.
func (s *SafeClose) Attach(f func(done func(), closeSignal <-chan struct{})) {
	s.m.Lock()
	if s.closedLocked() {
		s.m.Unlock()
		return
	}
	s.wg.Add(1)
	s.m.Unlock()

	go f(s.wg.Done, s.closeSignal)
}

// Done notifies CloseWait that the main goroutine returned.
func (s *SafeClose) Done() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

func (s *SafeClose) closedLocked() bool {
	select {
	case <-s.closeSignal:
		return true
	default:
		return false
	}
}
