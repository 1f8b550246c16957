package txcodec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeTransferTransaction(t *testing.T) {
	tx := Transaction{
		SignerID:   "alice.near",
		Nonce:      1,
		ReceiverID: "bob.near",
		Actions: []Action{
			{Kind: ActionTransfer, TransferDeposit: big.NewInt(1000000)},
		},
	}

	raw, err := tx.Serialize()
	require.NoError(t, err)

	offset := 0
	// signerId: 4-byte len + "alice.near"
	require.Equal(t, uint32(len("alice.near")), leU32(raw[offset:offset+4]))
	offset += 4 + len("alice.near")
	// curve discriminant + 32-byte public key
	require.Equal(t, byte(0x00), raw[offset])
	offset += 1 + 32
	// nonce u64 LE
	require.Equal(t, uint64(1), leU64(raw[offset:offset+8]))
	offset += 8
	// receiverId
	require.Equal(t, uint32(len("bob.near")), leU32(raw[offset:offset+4]))
	offset += 4 + len("bob.near")
	// blockHash
	offset += 32
	// action count
	require.Equal(t, uint32(1), leU32(raw[offset:offset+4]))
	offset += 4
	// action discriminant
	require.Equal(t, byte(ActionTransfer), raw[offset])
}

func TestSerializeFunctionCallAction(t *testing.T) {
	tx := Transaction{
		SignerID:   "alice.near",
		ReceiverID: "contract.near",
		Actions: []Action{
			{
				Kind:       ActionFunctionCall,
				MethodName: "transfer",
				Args:       []byte(`{"amount":"1"}`),
				Gas:        30_000_000_000_000,
				Deposit:    big.NewInt(1),
			},
		},
	}
	raw, err := tx.Serialize()
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}

func TestSerializeAddKeyFullAccess(t *testing.T) {
	tx := Transaction{
		SignerID:   "alice.near",
		ReceiverID: "alice.near",
		Actions: []Action{
			{Kind: ActionAddKey, Permission: PermissionFullAccess},
		},
	}
	raw, err := tx.Serialize()
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}

func TestU128RejectsNegative(t *testing.T) {
	tx := Transaction{
		Actions: []Action{{Kind: ActionTransfer, TransferDeposit: big.NewInt(-1)}},
	}
	_, err := tx.Serialize()
	require.Error(t, err)
}

func TestSignedEnvelopeAppendsSignature(t *testing.T) {
	serialized := []byte{1, 2, 3}
	var sig [64]byte
	sig[0] = 0xff

	env := SignedEnvelope(serialized, sig)
	require.Equal(t, serialized, env[:3])
	require.Equal(t, byte(0x00), env[3])
	require.Equal(t, sig[:], env[4:])
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
