package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runChecks(listener Listener, results ...bool) (bool, int) {
	c := NewCheck(listener, "subject")
	evaluated := 0
	for i, r := range results {
		evaluated++
		if !c.Verify(r, "check %d", i) {
			break
		}
	}

	return c.Result(), evaluated
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name              string
		results           []bool
		want              bool
		wantEvaluated     int
		wantWithListener  int
		wantListenerFails int
	}{
		{name: "All pass", results: []bool{true, true, true}, want: true, wantEvaluated: 3, wantWithListener: 3},
		{name: "First fails", results: []bool{false, true, true}, want: false, wantEvaluated: 1, wantWithListener: 3, wantListenerFails: 1},
		{name: "Two fail", results: []bool{true, false, false}, want: false, wantEvaluated: 2, wantWithListener: 3, wantListenerFails: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, evaluated := runChecks(nil, tt.results...)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantEvaluated, evaluated)

			l := NewDefaultListener("  ", "ok", "ERR")
			got, evaluated = runChecks(l, tt.results...)
			assert.Equal(t, tt.want, got, "listener must not change the result")
			assert.Equal(t, tt.wantWithListener, evaluated)
			assert.Len(t, l.Records(), tt.wantWithListener)
			assert.Equal(t, tt.wantListenerFails, l.Failures())
		})
	}
}

func TestCheckRequire(t *testing.T) {
	l := NewDefaultListener("", "", "")
	c := NewCheck(l, nil)

	assert.False(t, c.Require(false, "key found"))
	assert.False(t, c.Result())
	require.Len(t, l.Records(), 1)
	assert.False(t, l.Records()[0].Succeeded)
}

func TestDefaultListener(t *testing.T) {
	l := NewDefaultListener("  -", "OK", "FAILED")
	l.Done("doc", true, "proof found")
	l.Done("doc", false, "signature mismatch")

	assert.Equal(t, "  - OK proof found\n  - FAILED signature mismatch\n", l.String())

	l.Reset()
	assert.Empty(t, l.Records())
	assert.Equal(t, "", l.String())
}
