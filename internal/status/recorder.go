package status

import (
	"fmt"
	"strings"
	"sync"
)

// Recorder is an in-memory Reporter used by tests and dry runs.
type Recorder struct {
	gate
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) push(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Clear() {
	r.push(Event{Kind: EventClear})
}

func (r *Recorder) Status(format string, args ...interface{}) {
	r.push(Event{Kind: EventStatus, Line: fmt.Sprintf(format, args...)})
}

func (r *Recorder) Progress(value int) {
	if v, ok := r.advance(value); ok {
		r.push(Event{Kind: EventProgress, Progress: v})
	}
}

func (r *Recorder) Reset() {
	r.reset()
	r.push(Event{Kind: EventProgress, Progress: 0})
}

func (r *Recorder) Complete(done Completion) {
	r.push(Event{Kind: EventCompletion, Completion: done})
}

func (r *Recorder) Current() int {
	return r.value()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Lines returns the recorded status lines in order.
func (r *Recorder) Lines() []string {
	var lines []string
	for _, e := range r.Events() {
		if e.Kind == EventStatus {
			lines = append(lines, e.Line)
		}
	}
	return lines
}

// ProgressValues returns the recorded progress values in order.
func (r *Recorder) ProgressValues() []int {
	var values []int
	for _, e := range r.Events() {
		if e.Kind == EventProgress {
			values = append(values, e.Progress)
		}
	}
	return values
}

// CountLines counts status lines containing substr.
func (r *Recorder) CountLines(substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// CountLinesFold is CountLines ignoring case.
func (r *Recorder) CountLinesFold(substr string) int {
	substr = strings.ToLower(substr)
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(strings.ToLower(line), substr) {
			n++
		}
	}
	return n
}

// Completion returns the last completion event, if any.
func (r *Recorder) Completion() (Completion, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventCompletion {
			return events[i].Completion, true
		}
	}
	return Completion{}, false
}

var _ Reporter = (*Recorder)(nil)
