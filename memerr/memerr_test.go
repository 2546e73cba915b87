package memerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsByKind(t *testing.T) {
	err := NotFoundf("checkpoint %q missing", "cp1")
	assert.True(t, errors.Is(err, Sentinel(NotFound)))
	assert.False(t, errors.Is(err, Sentinel(AccessError)))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := AccessErrorf(cause, "failed to open")
	assert.ErrorIs(t, err, cause)
}

func TestShortIOMessage(t *testing.T) {
	err := ShortIOf(10, 4, 0x1000)
	assert.Equal(t, ShortIO, err.Kind)
	assert.Contains(t, err.Error(), "requested 10 bytes, got 4")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "unknown", Unknown.String())
}
