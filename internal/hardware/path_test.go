package hardware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultNearPathSerialize(t *testing.T) {
	path := DefaultNearPath()
	out := path.Serialize()

	require.Equal(t, byte(5), out[0])
	require.Equal(t, []byte{0x80, 0x00, 0x00, 44}, out[1:5], "44 with hardened offset applied")
	require.Equal(t, []byte{0x80, 0x00, 0x01, 0x8d}, out[5:9], "397 with hardened offset applied")
}

func TestParsePathRoundTripsDefaultPath(t *testing.T) {
	path, err := ParsePath("m/44'/397'/0'/0'/1'")
	require.NoError(t, err)
	require.Equal(t, DefaultNearPath(), path)
}

func TestParsePathRejectsMalformedElement(t *testing.T) {
	_, err := ParsePath("m/abc/1")
	require.Error(t, err)
}

func TestValidateEd25519AcceptsDefaultPath(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}
	err := ValidateEd25519(seed, DefaultNearPath())
	require.NoError(t, err)
}
