package verification

import "fmt"

// Check drives a sequence of sub-checks for one subject.
//
// Without a listener the first failure ends the sequence. With a listener
// every sub-check is evaluated and reported. Result is the same either way.
type Check struct {
	listener Listener
	subject  interface{}
	ok       bool
}

// NewCheck starts a check sequence. listener may be nil.
func NewCheck(listener Listener, subject interface{}) *Check {
	return &Check{listener: listener, subject: subject, ok: true}
}

// Verify records cond and reports whether the caller should go on with the
// next sub-check.
func (c *Check) Verify(cond bool, format string, args ...interface{}) bool {
	c.record(cond, format, args...)
	return cond || c.listener != nil
}

// Require records cond and reports whether it holds. Use it for sub-checks
// that later checks depend on.
func (c *Check) Require(cond bool, format string, args ...interface{}) bool {
	c.record(cond, format, args...)
	return cond
}

// Fail records a failed sub-check.
func (c *Check) Fail(format string, args ...interface{}) bool {
	c.record(false, format, args...)
	return false
}

// Result reports whether every recorded sub-check succeeded.
func (c *Check) Result() bool {
	return c.ok
}

func (c *Check) record(cond bool, format string, args ...interface{}) {
	if !cond {
		c.ok = false
	}
	if c.listener != nil {
		c.listener.Done(c.subject, cond, fmt.Sprintf(format, args...))
	}
}
