// Package keys owns the device signing keypair. Keys are generated in
// volatile memory at startup and never persisted; secret material stays out
// of logs and error messages.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"filippo.io/edwards25519"

	"solana-heartbeat/internal/wire"
)

// EntropyError reports an unavailable or failing secure random source.
type EntropyError struct {
	Err error
}

func (e *EntropyError) Error() string { return fmt.Sprintf("entropy source: %v", e.Err) }

func (e *EntropyError) Unwrap() error { return e.Err }

// Keypair is an ed25519 signing keypair. The zero value is unusable; create
// one with Generate.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  wire.Pubkey
}

// Generate creates a keypair from crypto/rand.
func Generate() (*Keypair, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom creates a keypair from the given random source.
func GenerateFrom(r io.Reader) (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, &EntropyError{Err: err}
	}
	kp := &Keypair{priv: priv}
	copy(kp.pub[:], pub)
	return kp, nil
}

// PublicKey returns the derived public key.
func (k *Keypair) PublicKey() wire.Pubkey { return k.pub }

// Sign produces an ed25519 signature over the exact message bytes. It never
// mutates the keypair; for a fixed key and message the signature is
// deterministic.
func (k *Keypair) Sign(message []byte) wire.Signature {
	var sig wire.Signature
	copy(sig[:], ed25519.Sign(k.priv, message))
	return sig
}

// Zero wipes the private key. The keypair is unusable afterwards.
func (k *Keypair) Zero() {
	for i := range k.priv {
		k.priv[i] = 0
	}
	k.priv = nil
}

// String renders the public key only.
func (k *Keypair) String() string { return k.pub.String() }

// Verify checks sig over message against pub. The network is the authority
// on signatures; this exists for tests and local sanity checks.
func Verify(pub wire.Pubkey, message []byte, sig wire.Signature) bool {
	return ed25519.Verify(pub[:], message, sig[:])
}

// IsOnCurve reports whether the key is a valid ed25519 curve point.
func IsOnCurve(pub wire.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(pub[:])
	return err == nil
}

// RandomPubkey returns a fresh unique on-curve public key with no known
// private key, used as a throwaway transfer recipient.
func RandomPubkey() (wire.Pubkey, error) {
	var pk wire.Pubkey
	for {
		if _, err := io.ReadFull(rand.Reader, pk[:]); err != nil {
			return pk, &EntropyError{Err: err}
		}
		if IsOnCurve(pk) {
			return pk, nil
		}
	}
}
