// Package wire implements the canonical Solana transaction wire format:
// message assembly with deterministic account ordering, compact-u16 framed
// binary serialization, and the base64 transport encoding used by
// sendTransaction.
package wire

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// Pubkey is an ed25519 public key identifying an account or program.
type Pubkey [32]byte

// Hash is a 32-byte ledger hash, here always a recent blockhash.
type Hash [32]byte

// Signature is an ed25519 signature over the serialized message bytes.
type Signature [64]byte

// SystemProgramID is the native System program (all-zero key,
// base58 "11111111111111111111111111111111").
var SystemProgramID = Pubkey{}

// PubkeyFromBase58 parses a base58-encoded public key.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode pubkey: %w", err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("invalid pubkey length: %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }

// HashFromBase58 parses a base58-encoded blockhash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	b, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string { return base58.Encode(h[:]) }

func (s Signature) String() string { return base58.Encode(s[:]) }

// AccountMeta describes how an instruction references an account.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a directive naming a program, the accounts it touches and
// opaque program-specific data.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// SerializationError reports malformed bytes in either codec direction.
// It always indicates a defect, never a transient condition.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("wire: %s: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func serErr(op string, format string, args ...interface{}) error {
	return &SerializationError{Op: op, Err: fmt.Errorf(format, args...)}
}

// encodeCompactU16 appends a Solana compact-u16 (shortvec) length prefix:
// little-endian base-128 with a continuation bit, at most three bytes.
func encodeCompactU16(buf *bytes.Buffer, n int) {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

// decodeCompactU16 reads a shortvec length prefix.
func decodeCompactU16(r *bytes.Reader) (int, error) {
	var n, shift int
	for i := 0; i < 3; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("short compact-u16: %w", err)
		}
		n |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			if n > 0xffff {
				return 0, fmt.Errorf("compact-u16 overflow: %d", n)
			}
			return n, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("compact-u16 longer than 3 bytes")
}
