// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/binary"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/ledger"
)

// Record address namespaces. Every record the engine creates is addressed by
// a deterministic derivation from the bridge state id, so create-once
// semantics at the substrate double as uniqueness and replay guarantees.
var (
	seedState        = []byte("bridge:state")
	seedGuardianSet  = []byte("bridge:guardian-set")
	seedMessage      = []byte("bridge:message")
	seedSignatureSet = []byte("bridge:signature-set")
	seedClaim        = []byte("bridge:claim")
)

// State is the bridge's singleton record: the current guardian epoch and the
// configuration fixed at initialization. It is passed through the engine
// explicitly; the only singleton-ness is the create-once address it lives at.
type State struct {
	GuardianSetIndex uint32
	Config           Config
}

// StateID derives the bridge state address for an instance seed.
func StateID(instance []byte) ids.ID {
	return ledger.DeriveID(seedState, instance)
}

// GuardianSetID derives the record address of a guardian epoch.
func (b *Bridge) GuardianSetID(index uint32) ids.ID {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], index)
	return ledger.DeriveID(seedGuardianSet, b.stateID[:], be[:])
}

// MessageID derives the record address of a published message from its
// emitter and the client-nonce discriminator. A duplicate pair fails at
// creation; the caller must pick a fresh seed.
func (b *Bridge) MessageID(emitter [vaa.EmitterAddressLen]byte, seed uint8) ids.ID {
	return ledger.DeriveID(seedMessage, b.stateID[:], emitter[:], []byte{seed})
}

// SignatureSetID derives the record address of the signature set for a
// (digest, guardian epoch) pair.
func (b *Bridge) SignatureSetID(digest common.Hash, index uint32) ids.ID {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], index)
	return ledger.DeriveID(seedSignatureSet, b.stateID[:], digest[:], be[:])
}

// ClaimID derives the record address of the claim for a digest. The digest
// is the identity: one claim per digest, ever.
func (b *Bridge) ClaimID(digest common.Hash) ids.ID {
	return ledger.DeriveID(seedClaim, b.stateID[:], digest[:])
}

func (b *Bridge) readState() (*State, error) {
	data, err := b.store.Get(b.stateID)
	if err != nil {
		return nil, err
	}
	state := &State{}
	if err := vaa.Codec.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (b *Bridge) writeState(state *State) error {
	data, err := vaa.Codec.Marshal(state)
	if err != nil {
		return err
	}
	return b.store.Put(b.stateID, data)
}

func (b *Bridge) readGuardianSet(index uint32) (*vaa.GuardianSet, error) {
	data, err := b.store.Get(b.GuardianSetID(index))
	if err != nil {
		return nil, err
	}
	set := &vaa.GuardianSet{}
	if err := vaa.Codec.Unmarshal(data, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (b *Bridge) readSignatureSet(id ids.ID) (*vaa.SignatureSet, error) {
	data, err := b.store.Get(id)
	if err != nil {
		return nil, err
	}
	set := &vaa.SignatureSet{}
	if err := vaa.Codec.Unmarshal(data, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (b *Bridge) readMessage(id ids.ID) (*vaa.Message, error) {
	data, err := b.store.Get(id)
	if err != nil {
		return nil, err
	}
	msg := &vaa.Message{}
	if err := vaa.Codec.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
