// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/math/set"
)

// SignatureLen is the length of a guardian attestation: r || s || v, with v
// the secp256k1 recovery id.
const SignatureLen = 65

// GuardianSignature is a single guardian's attestation over a body digest,
// tagged with the guardian's slot in its set.
type GuardianSignature struct {
	Index     uint8
	Signature [SignatureLen]byte
}

// SignatureSet accumulates per-guardian attestations against one body digest
// for one guardian epoch. A slot is present iff it is not all zero bytes.
type SignatureSet struct {
	// GuardianSetIndex is the epoch the attestations were produced under.
	// The finalizer rejects the set unless this matches the epoch of the
	// guardian set it is verifying against.
	GuardianSetIndex uint32

	// Digest is the body digest every present slot attested to.
	Digest common.Hash

	// Signatures holds one slot per committee seat.
	Signatures [MaxGuardians][SignatureLen]byte
}

// SlotPresent reports whether the guardian at the given slot has attested.
func (s *SignatureSet) SlotPresent(slot int) bool {
	if slot < 0 || slot >= MaxGuardians {
		return false
	}
	return s.Signatures[slot] != [SignatureLen]byte{}
}

// SignerBits returns the set of present slots.
func (s *SignatureSet) SignerBits() set.Bits {
	bits := set.NewBits()
	for i := 0; i < MaxGuardians; i++ {
		if s.SlotPresent(i) {
			bits.Add(i)
		}
	}
	return bits
}

// NumSigners returns the count of present slots.
func (s *SignatureSet) NumSigners() int {
	n := 0
	for i := 0; i < MaxGuardians; i++ {
		if s.SlotPresent(i) {
			n++
		}
	}
	return n
}

// Attest signs a body digest with a guardian secret key, producing the
// 65-byte recoverable attestation stored in a signature-set slot.
func Attest(digest common.Hash, sk *ecdsa.PrivateKey) ([SignatureLen]byte, error) {
	var out [SignatureLen]byte
	sig, err := crypto.Sign(digest[:], sk)
	if err != nil {
		return out, err
	}
	if len(sig) != SignatureLen {
		return out, fmt.Errorf("%w: unexpected signature length %d", ErrInvalidSignature, len(sig))
	}
	copy(out[:], sig)
	return out, nil
}

// VerifyAttestation recovers the signer of an attestation and checks it
// against the guardian key-hash registered for the slot. The source program
// left this step implicit; here it runs before a slot is ever accepted.
func VerifyAttestation(digest common.Hash, sig [SignatureLen]byte, key common.Address) error {
	recovered, err := RecoverAttester(digest, sig)
	if err != nil {
		return err
	}
	if recovered != key {
		return fmt.Errorf("%w: recovered %s, want %s", ErrInvalidSignature, recovered, key)
	}
	return nil
}

// RecoverAttester returns the 20-byte key-hash of the key that produced an
// attestation over the given digest.
func RecoverAttester(digest common.Hash, sig [SignatureLen]byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest[:], sig[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	return KeyHash(pub), nil
}

// KeyHash derives the 20-byte guardian key-hash from a public key: the last
// 20 bytes of the Keccak-256 of the uncompressed key without its prefix byte.
func KeyHash(pub *ecdsa.PublicKey) common.Address {
	raw := crypto.FromECDSAPub(pub)
	return common.BytesToAddress(crypto.Keccak256(raw[1:])[12:])
}
