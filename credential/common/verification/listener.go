// Package verification records the outcome of each sub-check performed while
// verifying documents, credentials, presentations and tickets.
package verification

import (
	"fmt"
	"strings"
	"sync"
)

// Listener receives one event per verification sub-check.
type Listener interface {
	// Done is called once per sub-check. subject is the object being verified.
	Done(subject interface{}, succeeded bool, message string)
	// Reset drops all recorded events.
	Reset()
}

// Record is a single verification event.
type Record struct {
	Subject   interface{}
	Succeeded bool
	Message   string
}

// DefaultListener keeps every event and renders them as a text report.
type DefaultListener struct {
	ident           string
	succeededPrefix string
	failedPrefix    string

	mu      sync.Mutex
	records []Record
}

// NewDefaultListener creates a listener whose report lines are
// "<ident> <prefix> <message>".
func NewDefaultListener(ident, succeededPrefix, failedPrefix string) *DefaultListener {
	return &DefaultListener{
		ident:           ident,
		succeededPrefix: succeededPrefix,
		failedPrefix:    failedPrefix,
	}
}

// Done implements Listener.
func (l *DefaultListener) Done(subject interface{}, succeeded bool, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, Record{Subject: subject, Succeeded: succeeded, Message: message})
}

// Reset implements Listener.
func (l *DefaultListener) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
}

// Records returns a copy of the recorded events.
func (l *DefaultListener) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)

	return out
}

// Failures returns the number of failed checks.
func (l *DefaultListener) Failures() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, r := range l.records {
		if !r.Succeeded {
			n++
		}
	}

	return n
}

func (l *DefaultListener) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sb strings.Builder
	for _, r := range l.records {
		prefix := l.failedPrefix
		if r.Succeeded {
			prefix = l.succeededPrefix
		}

		fmt.Fprintf(&sb, "%s %s %s\n", l.ident, prefix, r.Message)
	}

	return sb.String()
}
