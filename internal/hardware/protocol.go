package hardware

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// Default and extended timeouts per spec §4.3. GetPublicKey uses the
// extended budget only when on-device confirmation is requested;
// SignTransaction/SignNEP413 relax it only for the final chunk, since that
// is the chunk the user actually confirms or rejects on the device screen.
const (
	defaultCommandTimeout = 10 * time.Second
	confirmationTimeout   = 60 * time.Second
)

// Transport is the minimal surface protocol.go needs from the HID layer:
// send one framed request, block for the framed response.
type Transport interface {
	Exchange(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error)
}

// Protocol drives the NEAR app command set over a Transport, serializing
// requests so only one is ever outstanding at a time — concurrent callers
// get DEVICE_BUSY rather than interleaving on the wire.
type Protocol struct {
	transport Transport

	mu   sync.Mutex
	busy bool
}

func NewProtocol(t Transport) *Protocol {
	return &Protocol{transport: t}
}

// acquire marks the protocol busy or returns DEVICE_BUSY if a request is
// already outstanding.
func (p *Protocol) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return nearerr.New(nearerr.DeviceBusy, "another device request is already outstanding", nil, nearerr.RecoveryRetry)
	}
	p.busy = true
	return nil
}

func (p *Protocol) release() {
	p.mu.Lock()
	p.busy = false
	p.mu.Unlock()
}

// send performs one APDU round trip and classifies a non-success status
// word into a *nearerr.Error.
func (p *Protocol) send(ctx context.Context, apdu APDU, timeout time.Duration) ([]byte, error) {
	raw, err := apdu.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode apdu: %w", err)
	}
	resp, err := p.transport.Exchange(ctx, raw, timeout)
	if err != nil {
		return nil, err
	}
	data, sw, err := ParseResponse(resp)
	if err != nil {
		return nil, err
	}
	if sw != SWSuccess {
		return nil, ClassifyStatusWord(sw)
	}
	return data, nil
}

// sendChunked sends a multi-chunk application payload, enforcing SW=0x9000
// on every non-final chunk; only the final chunk's response data is
// returned to the caller, and a non-success status word on it is returned
// as the classified error. The final chunk alone is given the
// relaxed confirmationTimeout, since it's the one a human confirms.
func (p *Protocol) sendChunked(ctx context.Context, ins byte, p2 byte, payload []byte) ([]byte, error) {
	chunks := ChunkPayload(payload)
	for i, chunk := range chunks {
		isLast := i == len(chunks)-1
		timeout := defaultCommandTimeout
		if isLast {
			timeout = confirmationTimeout
		}

		apdu := APDU{CLA: CLANear, INS: ins, P1: chunk.P1, P2: p2, Data: chunk.Data}
		data, err := p.send(ctx, apdu, timeout)
		if err != nil {
			return nil, err
		}
		if isLast {
			return data, nil
		}
		// Non-final chunks must not carry a response payload.
		if len(data) != 0 {
			return nil, fmt.Errorf("unexpected non-empty response on intermediate chunk %d", i)
		}
	}
	return nil, fmt.Errorf("empty payload produced no chunks")
}

// Version is the device app's semantic version as reported by GET_VERSION.
type Version struct {
	Major, Minor, Patch byte
}

// GetVersion queries the NEAR app version.
func (p *Protocol) GetVersion(ctx context.Context) (Version, error) {
	if err := p.acquire(); err != nil {
		return Version{}, err
	}
	defer p.release()

	data, err := p.send(ctx, APDU{CLA: CLANear, INS: INSGetVersion}, defaultCommandTimeout)
	if err != nil {
		return Version{}, err
	}
	if len(data) < 3 {
		return Version{}, fmt.Errorf("get_version response too short: %d bytes", len(data))
	}
	return Version{Major: data[0], Minor: data[1], Patch: data[2]}, nil
}

// GetPublicKey requests the ed25519 public key for path. When confirm is
// true, P1=0x01 requests an on-device confirmation prompt and the call
// uses confirmationTimeout instead of the default.
func (p *Protocol) GetPublicKey(ctx context.Context, path DerivationPath, confirm bool) ([]byte, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	p1 := byte(0x00)
	timeout := defaultCommandTimeout
	if confirm {
		p1 = 0x01
		timeout = confirmationTimeout
	}

	data, err := p.send(ctx, APDU{CLA: CLANear, INS: INSGetPublicKey, P1: p1, Data: path.Serialize()}, timeout)
	if err != nil {
		return nil, err
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("get_public_key response has unexpected length %d", len(data))
	}
	return data, nil
}

// SignTransaction signs a borsh-serialized NEAR transaction, returning the
// 64-byte ed25519 signature. payload is path‖serializedTx.
func (p *Protocol) SignTransaction(ctx context.Context, path DerivationPath, serializedTx []byte) ([]byte, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	payload := append(append([]byte{}, path.Serialize()...), serializedTx...)
	data, err := p.sendChunked(ctx, INSSignTransaction, 0x00, payload)
	if err != nil {
		return nil, err
	}
	if len(data) != 64 {
		return nil, fmt.Errorf("sign_transaction response has unexpected length %d", len(data))
	}
	return data, nil
}

// SignNEP413Message signs a NEP-413 off-chain message, returning the
// 64-byte ed25519 signature. payload is
// path‖nonce(32B)‖len-prefixed recipient‖len-prefixed message‖len-prefixed callback.
func (p *Protocol) SignNEP413Message(ctx context.Context, path DerivationPath, nonce [32]byte, message, recipient, callback string) ([]byte, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	payload := path.Serialize()
	payload = append(payload, nonce[:]...)
	payload = appendLenPrefixed(payload, recipient)
	payload = appendLenPrefixed(payload, message)
	payload = appendLenPrefixed(payload, callback)

	data, err := p.sendChunked(ctx, INSSignNEP413, 0x00, payload)
	if err != nil {
		return nil, err
	}
	if len(data) != 64 {
		return nil, fmt.Errorf("sign_nep413 response has unexpected length %d", len(data))
	}
	return data, nil
}

func appendLenPrefixed(buf []byte, s string) []byte {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, []byte(s)...)
	return buf
}
