package app

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeKey(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	decoded, err := DecodeKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, decoded)

	decoded, err = DecodeKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, decoded)

	decoded, err = DecodeKey(" " + base64.RawStdEncoding.EncodeToString(raw[:31]) + " ")
	require.NoError(t, err)
	require.Equal(t, raw[:31], decoded)

	decoded, err = DecodeKey("not a hex or base64 secret!")
	require.NoError(t, err)
	require.Equal(t, []byte("not a hex or base64 secret!"), decoded)

	_, err = DecodeKey("   ")
	require.Error(t, err)
}
