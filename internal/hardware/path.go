package hardware

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/anyproto/go-slip10"
)

const hardenedOffset uint32 = 0x80000000

// DerivationPath is a sequence of BIP44-style path elements. Hardened
// elements (originally written with a trailing apostrophe, e.g. "44'")
// are represented here by Hardened=true; SerializePath adds the hardened
// offset before encoding.
type PathElement struct {
	Index    uint32
	Hardened bool
}

type DerivationPath []PathElement

// DefaultNearPath is the product's default derivation path:
// m/44'/397'/0'/0'/1' (397 is NEAR's registered SLIP-44 coin type).
func DefaultNearPath() DerivationPath {
	return DerivationPath{
		{44, true}, {397, true}, {0, true}, {0, true}, {1, true},
	}
}

// ParsePath parses a "44'/397'/0'/0'/1'" style string (with or without a
// leading "m/") into a DerivationPath.
func ParsePath(s string) (DerivationPath, error) {
	s = strings.TrimPrefix(s, "m/")
	parts := strings.Split(s, "/")
	path := make(DerivationPath, 0, len(parts))
	for _, p := range parts {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		numStr := strings.TrimRight(p, "'h")
		n, err := strconv.ParseUint(numStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path element %q: %w", p, err)
		}
		path = append(path, PathElement{Index: uint32(n), Hardened: hardened})
	}
	return path, nil
}

// Serialize writes [n(1B)] [element(4B BE)]... with the hardened offset
// applied to hardened elements before encoding.
func (p DerivationPath) Serialize() []byte {
	out := make([]byte, 1+4*len(p))
	out[0] = byte(len(p))
	for i, el := range p {
		v := el.Index
		if el.Hardened {
			v += hardenedOffset
		}
		binary.BigEndian.PutUint32(out[1+4*i:5+4*i], v)
	}
	return out
}

// ValidateEd25519 confirms path is derivable as an ed25519 hardened path
// via SLIP-0010, the same check the software side performs before handing
// a path to the device (grounded on github.com/anyproto/go-slip10, a
// direct teacher dependency otherwise unused by this domain — see
// internal/services/address/tezos.go for the teacher's own usage of
// slip10.DeriveForPath).
func ValidateEd25519(seed []byte, path DerivationPath) error {
	node, err := slip10.DeriveForPath(toSlip10Path(path), seed)
	if err != nil {
		return fmt.Errorf("slip10 derivation failed: %w", err)
	}
	pub, _ := node.Keypair()
	if len(pub) != 32 {
		return fmt.Errorf("derived ed25519 public key has unexpected length %d", len(pub))
	}
	return nil
}

func toSlip10Path(path DerivationPath) string {
	var b strings.Builder
	b.WriteString("m")
	for _, el := range path {
		b.WriteString("/")
		b.WriteString(strconv.FormatUint(uint64(el.Index), 10))
		if el.Hardened {
			b.WriteString("'")
		}
	}
	return b.String()
}
