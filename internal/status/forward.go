package status

import "sync"

// Forwarder is a Reporter whose destination can be replaced between phases,
// so a long-lived worker keeps one Reporter while each phase gets its own
// consumer queue.
type Forwarder struct {
	mu     sync.Mutex
	target Reporter
}

// NewForwarder creates a Forwarder writing to target. A nil target discards
// everything until Attach is called.
func NewForwarder(target Reporter) *Forwarder {
	return &Forwarder{target: target}
}

// Attach points the Forwarder at target.
func (f *Forwarder) Attach(target Reporter) {
	f.mu.Lock()
	f.target = target
	f.mu.Unlock()
}

func (f *Forwarder) current() Reporter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

func (f *Forwarder) Clear() {
	if t := f.current(); t != nil {
		t.Clear()
	}
}

func (f *Forwarder) Status(format string, args ...interface{}) {
	if t := f.current(); t != nil {
		t.Status(format, args...)
	}
}

func (f *Forwarder) Progress(value int) {
	if t := f.current(); t != nil {
		t.Progress(value)
	}
}

func (f *Forwarder) Reset() {
	if t := f.current(); t != nil {
		t.Reset()
	}
}

func (f *Forwarder) Complete(done Completion) {
	if t := f.current(); t != nil {
		t.Complete(done)
	}
}

func (f *Forwarder) Current() int {
	if t := f.current(); t != nil {
		return t.Current()
	}
	return 0
}

var _ Reporter = (*Forwarder)(nil)
