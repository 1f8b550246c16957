// Package txcodec implements NEAR's canonical borsh-like binary
// transaction encoding from spec §4.3/§7: the same byte layout the
// hardware app and the JSON-RPC broadcast endpoint both expect. The
// encoder mirrors the deterministic-signing-payload concept from
// src/chainadapter/adapter.go's UnsignedTransaction.SigningPayload, with
// NEAR's concrete field layout in place of the teacher's
// per-chain-adapter placeholder.
package txcodec

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// ActionKind is the wire discriminant for an action variant. Values are
// fixed by the NEAR protocol, not by this spec.
type ActionKind byte

const (
	ActionCreateAccount  ActionKind = 0
	ActionDeployContract ActionKind = 1
	ActionFunctionCall   ActionKind = 2
	ActionTransfer       ActionKind = 3
	ActionStake          ActionKind = 4
	ActionAddKey         ActionKind = 5
	ActionDeleteKey      ActionKind = 6
	ActionDeleteAccount  ActionKind = 7
)

// AccessKeyPermission is the wire discriminant for an AddKey permission.
type AccessKeyPermission byte

const (
	PermissionFunctionCall AccessKeyPermission = 0
	PermissionFullAccess   AccessKeyPermission = 1
)

// Action is one transaction action in wire form. Fields not relevant to
// Kind are ignored by Serialize.
type Action struct {
	Kind ActionKind

	// FunctionCall
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    *big.Int

	// Transfer
	TransferDeposit *big.Int

	// Stake
	StakeAmount  *big.Int
	StakePublicKey [32]byte

	// AddKey
	AddKeyPublicKey [32]byte
	Permission      AccessKeyPermission
	AllowedMethods  []string
	Receiver        string
	Allowance       *big.Int

	// DeleteKey
	DeleteKeyPublicKey [32]byte

	// DeleteAccount
	BeneficiaryID string

	// DeployContract
	Code []byte
}

// Transaction is an unsigned NEAR transaction in the fields the signer
// needs; nonce and blockHash are supplied by the caller (typically from
// rpcclient's query/block responses) rather than derived here.
type Transaction struct {
	SignerID   string
	PublicKey  [32]byte // ed25519 public key of the signing access key
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []Action
}

func putString(buf []byte, s string) []byte {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, []byte(s)...)
	return buf
}

func putBytes(buf []byte, b []byte) []byte {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(b)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, b...)
	return buf
}

func putU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// putU128 writes v as a little-endian 16-byte unsigned integer. v must be
// non-negative and fit in 128 bits.
func putU128(buf []byte, v *big.Int) ([]byte, error) {
	if v == nil {
		v = big.NewInt(0)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("u128 value must be non-negative")
	}
	b := v.Bytes() // big-endian, no leading zeros
	if len(b) > 16 {
		return nil, fmt.Errorf("u128 value overflows 16 bytes")
	}
	var out [16]byte
	// b is big-endian; copying it in reverse order yields little-endian.
	for i := 0; i < len(b); i++ {
		out[i] = b[len(b)-1-i]
	}
	return append(buf, out[:]...), nil
}

func serializeAction(buf []byte, a Action) ([]byte, error) {
	buf = append(buf, byte(a.Kind))
	var err error

	switch a.Kind {
	case ActionCreateAccount:
		// No fields.
	case ActionDeployContract:
		buf = putBytes(buf, a.Code)
	case ActionFunctionCall:
		buf = putString(buf, a.MethodName)
		buf = putBytes(buf, a.Args)
		buf = putU64(buf, a.Gas)
		buf, err = putU128(buf, a.Deposit)
	case ActionTransfer:
		buf, err = putU128(buf, a.TransferDeposit)
	case ActionStake:
		buf, err = putU128(buf, a.StakeAmount)
		if err == nil {
			buf = append(buf, 0x00) // ed25519 curve discriminant
			buf = append(buf, a.StakePublicKey[:]...)
		}
	case ActionAddKey:
		buf = append(buf, 0x00)
		buf = append(buf, a.AddKeyPublicKey[:]...)
		buf = append(buf, byte(a.Permission))
		if a.Permission == PermissionFunctionCall {
			if a.Allowance == nil {
				buf = append(buf, 0x00) // Option<u128> = None
			} else {
				buf = append(buf, 0x01)
				buf, err = putU128(buf, a.Allowance)
			}
			if err == nil {
				buf = putString(buf, a.Receiver)
				var methodsBuf [4]byte
				binary.LittleEndian.PutUint32(methodsBuf[:], uint32(len(a.AllowedMethods)))
				buf = append(buf, methodsBuf[:]...)
				for _, m := range a.AllowedMethods {
					buf = putString(buf, m)
				}
			}
		}
	case ActionDeleteKey:
		buf = append(buf, 0x00)
		buf = append(buf, a.DeleteKeyPublicKey[:]...)
	case ActionDeleteAccount:
		buf = putString(buf, a.BeneficiaryID)
	default:
		return nil, fmt.Errorf("unknown action kind %d", a.Kind)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Serialize encodes tx in NEAR's canonical binary layout: signerId,
// publicKey ([curve=0][32B]), nonce (u64 LE), receiverId, blockHash
// (32B), then the action count (u32 LE) and each action.
func (tx Transaction) Serialize() ([]byte, error) {
	var buf []byte
	buf = putString(buf, tx.SignerID)
	buf = append(buf, 0x00) // ed25519 curve discriminant
	buf = append(buf, tx.PublicKey[:]...)
	buf = putU64(buf, tx.Nonce)
	buf = putString(buf, tx.ReceiverID)
	buf = append(buf, tx.BlockHash[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(tx.Actions)))
	buf = append(buf, countBuf[:]...)

	for i, a := range tx.Actions {
		var err error
		buf, err = serializeAction(buf, a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return buf, nil
}

// SignedEnvelope appends the ed25519 signature discriminant and the raw
// 64-byte signature to serializedTx, producing the payload
// broadcast_tx_commit expects (base64-encoded by the caller).
func SignedEnvelope(serializedTx []byte, signature [64]byte) []byte {
	out := make([]byte, 0, len(serializedTx)+1+64)
	out = append(out, serializedTx...)
	out = append(out, 0x00)
	out = append(out, signature[:]...)
	return out
}
