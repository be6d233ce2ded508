package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEBuildsErrorWithOpAndKind(t *testing.T) {
	err := E(Op("watcher.elect"), Transport, "connection refused")

	var e *Error
	assert.True(t, As(err, &e))
	assert.Equal(t, Op("watcher.elect"), e.Op)
	assert.Equal(t, Transport, e.Kind)
	assert.Contains(t, err.Error(), "watcher.elect")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	err := E(ScriptLoad, New("boom"))
	assert.Equal(t, ScriptLoad, KindOf(err))
	assert.Equal(t, Unspecified, KindOf(New("plain error")))
}

func TestErrorWithoutOpOmitsPrefix(t *testing.T) {
	err := E(Internal, "failure")
	assert.Equal(t, "failure", err.Error())
}
