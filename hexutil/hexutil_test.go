package hexutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatternScenarioS1(t *testing.T) {
	got, err := ParsePattern("4D 5A 90 00")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4D, 0x5A, 0x90, 0x00}, got)

	_, err = ParsePattern("ABC")
	assert.Error(t, err)

	got, err = ParsePattern("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, got)
}

func TestParsePatternUnicodeWhitespace(t *testing.T) {
	got, err := ParsePattern("4D\t5A 90")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4D, 0x5A, 0x90}, got)
}

func TestParsePatternInvalidHex(t *testing.T) {
	_, err := ParsePattern("ZZ")
	assert.Error(t, err)
}
