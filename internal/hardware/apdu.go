package hardware

import (
	"fmt"

	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// APDU is an Application Protocol Data Unit: [CLA][INS][P1][P2][Lc][data].
type APDU struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// NEAR app CLA/INS per spec §4.3.
const (
	CLANear byte = 0x80

	INSGetVersion       byte = 0x00
	INSGetPublicKey     byte = 0x04
	INSSignTransaction  byte = 0x02
	INSSignNEP413       byte = 0x07
)

// Encode serializes the APDU as [CLA][INS][P1][P2][Lc][data]. Lc is a
// single byte: callers must keep Data at or under 255 bytes (see
// ChunkPayload for larger application payloads).
func (a APDU) Encode() ([]byte, error) {
	if len(a.Data) > 255 {
		return nil, fmt.Errorf("apdu data length %d exceeds single-byte Lc", len(a.Data))
	}
	out := make([]byte, 5+len(a.Data))
	out[0], out[1], out[2], out[3] = a.CLA, a.INS, a.P1, a.P2
	out[4] = byte(len(a.Data))
	copy(out[5:], a.Data)
	return out, nil
}

// StatusWord is the two-byte trailer of every APDU response.
type StatusWord uint16

const (
	SWSuccess                  StatusWord = 0x9000
	SWUserRejected             StatusWord = 0x6985
	SWDeviceLocked             StatusWord = 0x6982
	SWAppNotOpen               StatusWord = 0x6e01
	SWWrongApp                 StatusWord = 0x6e00
	SWUnsupportedInstruction   StatusWord = 0x6d00
	SWInvalidDataShort         StatusWord = 0x6700
	SWInvalidDataParams        StatusWord = 0x6a80
	SWDeviceBusy               StatusWord = 0x6986
)

// ParseResponse splits a raw device response into its data and status
// word. A response shorter than 2 bytes is a framing/protocol violation.
func ParseResponse(raw []byte) (data []byte, sw StatusWord, err error) {
	if len(raw) < 2 {
		return nil, 0, fmt.Errorf("response too short: %d bytes", len(raw))
	}
	sw = StatusWord(uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1]))
	return raw[:len(raw)-2], sw, nil
}

// ClassifyStatusWord maps a non-success status word to a *nearerr.Error
// per spec's status table.
func ClassifyStatusWord(sw StatusWord) *nearerr.Error {
	switch sw {
	case SWSuccess:
		return nil
	case SWUserRejected:
		return nearerr.New(nearerr.UserRejected, "device returned user-rejected/conditions-not-satisfied", nil)
	case SWDeviceLocked:
		return nearerr.New(nearerr.DeviceLocked, "device is locked", nil, nearerr.RecoveryUnlock)
	case SWAppNotOpen:
		return nearerr.New(nearerr.AppNotOpen, "NEAR app is not open on the device", nil, nearerr.RecoveryOpenApp)
	case SWWrongApp:
		return nearerr.New(nearerr.WrongApp, "wrong app open on the device", nil, nearerr.RecoveryOpenApp)
	case SWUnsupportedInstruction:
		return nearerr.New(nearerr.AppVersionUnsupported, "device app does not support this instruction", nil, nearerr.RecoveryContactSupport)
	case SWInvalidDataShort, SWInvalidDataParams:
		return nearerr.New(nearerr.InvalidData, "device rejected the request data", nil)
	case SWDeviceBusy:
		return nearerr.New(nearerr.DeviceBusy, "device is busy with another request", nil, nearerr.RecoveryRetry)
	default:
		return nearerr.New(nearerr.UnknownError, fmt.Sprintf("unrecognized status word %04x", uint16(sw)), nil)
	}
}

// PayloadChunk is one chunk of a large application payload, tagged with
// the P1 continuation marker spec'd in §4.3.
type PayloadChunk struct {
	P1   byte
	Data []byte
}

const (
	ChunkFirst   byte = 0x00
	ChunkMiddle  byte = 0x01
	ChunkLast    byte = 0x02
	maxChunkSize      = 250
)

// ChunkPayload splits a large application payload (path + serialized tx,
// or path + NEP-413 fields) into ≤250-byte chunks tagged P1=first/
// middle/last. A payload that fits in one chunk is tagged ChunkFirst
// (which doubles as "only" chunk; callers must also treat it as the last
// chunk for timeout-budget purposes).
func ChunkPayload(payload []byte) []PayloadChunk {
	if len(payload) <= maxChunkSize {
		return []PayloadChunk{{P1: ChunkFirst, Data: payload}}
	}

	var chunks []PayloadChunk
	offset := 0
	for offset < len(payload) {
		end := offset + maxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		p1 := ChunkMiddle
		if offset == 0 {
			p1 = ChunkFirst
		}
		if end == len(payload) {
			p1 = ChunkLast
		}
		chunks = append(chunks, PayloadChunk{P1: p1, Data: payload[offset:end]})
		offset = end
	}
	return chunks
}

