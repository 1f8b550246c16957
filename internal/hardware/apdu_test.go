package hardware

import (
	"testing"

	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
	"github.com/stretchr/testify/require"
)

func TestAPDUEncode(t *testing.T) {
	a := APDU{CLA: CLANear, INS: INSGetVersion, P1: 0x01, P2: 0x02, Data: []byte{0xaa, 0xbb}}
	raw, err := a.Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{CLANear, INSGetVersion, 0x01, 0x02, 0x02, 0xaa, 0xbb}, raw)
}

func TestAPDUEncodeRejectsOversizedData(t *testing.T) {
	a := APDU{Data: make([]byte, 256)}
	_, err := a.Encode()
	require.Error(t, err)
}

func TestParseResponseSplitsStatusWord(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x90, 0x00}
	data, sw, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, data)
	require.Equal(t, SWSuccess, sw)
}

func TestClassifyStatusWordMapsToNearerrKinds(t *testing.T) {
	require.Nil(t, ClassifyStatusWord(SWSuccess))

	err := ClassifyStatusWord(SWUserRejected)
	require.Equal(t, nearerr.UserRejected, err.Kind)

	err = ClassifyStatusWord(SWDeviceLocked)
	require.Equal(t, nearerr.DeviceLocked, err.Kind)
	require.Contains(t, err.Recovery, nearerr.RecoveryUnlock)
}

func TestChunkPayloadSmallFitsInOneChunk(t *testing.T) {
	chunks := ChunkPayload(make([]byte, 100))
	require.Len(t, chunks, 1)
	require.Equal(t, ChunkFirst, chunks[0].P1)
}

func TestChunkPayloadSplitsIntoFirstMiddleLast(t *testing.T) {
	chunks := ChunkPayload(make([]byte, 600))
	require.Len(t, chunks, 3)
	require.Equal(t, ChunkFirst, chunks[0].P1)
	require.Equal(t, ChunkMiddle, chunks[1].P1)
	require.Equal(t, ChunkLast, chunks[2].P1)
	require.Len(t, chunks[0].Data, 250)
	require.Len(t, chunks[1].Data, 250)
	require.Len(t, chunks[2].Data, 100)
}

func TestChunkPayloadExactMultipleOfChunkSize(t *testing.T) {
	chunks := ChunkPayload(make([]byte, 500))
	require.Len(t, chunks, 2)
	require.Equal(t, ChunkFirst, chunks[0].P1)
	require.Equal(t, ChunkLast, chunks[1].P1)
}
