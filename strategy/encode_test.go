package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeStringRoundTripsThroughParseEscapes(t *testing.T) {
	encoded := EncodeString(`weird "input" with\backslash`)
	require.True(t, len(encoded) >= 2)
	require.Equal(t, byte('"'), encoded[0])
	require.Equal(t, byte('"'), encoded[len(encoded)-1])

	decoded, err := parseEscapes(encoded[1 : len(encoded)-1])
	require.NoError(t, err)
	require.Equal(t, `weird "input" with\backslash`, decoded)
}

func TestEncodeStringEmpty(t *testing.T) {
	require.Equal(t, `""`, EncodeString(""))
}
