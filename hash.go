// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"bytes"
	"encoding/binary"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Body is the signed portion of a VAA: the exact fields guardians observe and
// attest to. Its serialized layout is a hard external contract shared with
// the off-chain guardian software; any change silently breaks
// interoperability rather than failing loudly.
type Body struct {
	Timestamp      uint32
	Nonce          uint32
	EmitterChain   uint8
	EmitterAddress [EmitterAddressLen]byte
	Payload        []byte
}

// Serialize returns the canonical byte representation of the body:
// big-endian fixed-width integers in declaration order, with the payload
// occupying the remainder. No length prefixes.
func (b *Body) Serialize() []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 4 + 1 + EmitterAddressLen + len(b.Payload))

	_ = binary.Write(&buf, binary.BigEndian, b.Timestamp)
	_ = binary.Write(&buf, binary.BigEndian, b.Nonce)
	buf.WriteByte(b.EmitterChain)
	buf.Write(b.EmitterAddress[:])
	buf.Write(b.Payload)

	return buf.Bytes()
}

// Digest returns the Keccak-256 hash of the canonical body serialization.
// This is the 32-byte value guardians sign over and the finalizer recomputes.
func (b *Body) Digest() common.Hash {
	return common.BytesToHash(crypto.Keccak256(b.Serialize()))
}
