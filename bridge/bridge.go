// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge is the verification engine of the message bridge: it admits
// messages behind a fee gate, aggregates guardian attestations, and finalizes
// a message into a claimed VAA once a quorum of the current guardian set has
// attested to its exact byte content. Every entry point is an imperative,
// ordered validation pipeline that fails closed on the first violation.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/cache"
	"github.com/luxfi/vaa/ledger"
)

// recoveryCacheSize bounds the attestation-recovery memo. Entries are
// (digest, signature) -> recovered key-hash, which never changes, so plain
// LRU eviction is safe.
const recoveryCacheSize = 1024

type attestationKey struct {
	digest common.Hash
	sig    [vaa.SignatureLen]byte
}

// Bridge drives one bridge instance against a ledger substrate. All mutable
// state lives in substrate records; the struct itself only carries wiring.
// A single mutex serializes operations, standing in for the substrate's
// serialization of conflicting transactions.
type Bridge struct {
	mu    sync.Mutex
	log   log.Logger
	store ledger.Store
	bank  ledger.Bank
	clock ledger.Clock

	stateID  ids.ID
	recovery *cache.LRU[attestationKey, common.Address]
}

// New wires a bridge engine for the instance identified by the given seed.
// The engine is usable once Initialize has created the state record (in this
// process or an earlier one).
func New(logger log.Logger, store ledger.Store, bank ledger.Bank, clock ledger.Clock, instance []byte) *Bridge {
	return &Bridge{
		log:      logger,
		store:    store,
		bank:     bank,
		clock:    clock,
		stateID:  StateID(instance),
		recovery: cache.NewLRU[attestationKey, common.Address](recoveryCacheSize),
	}
}

// TreasuryID returns the account publication fees must be transferred to.
// The bridge state record doubles as its treasury.
func (b *Bridge) TreasuryID() ids.ID { return b.stateID }

// Initialize creates the bridge state record and guardian epoch 0. The state
// address is fixed per instance, so a second initialization fails with the
// substrate's ErrRecordExists.
func (b *Bridge) Initialize(payer ids.ID, keys []common.Address, cfg Config) (*vaa.GuardianSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	set, err := vaa.NewGuardianSet(0, keys, now)
	if err != nil {
		return nil, err
	}

	state := &State{GuardianSetIndex: 0, Config: cfg}
	stateData, err := vaa.Codec.Marshal(state)
	if err != nil {
		return nil, err
	}
	if err := b.store.Create(b.stateID, stateData, payer); err != nil {
		return nil, err
	}

	setData, err := vaa.Codec.Marshal(set)
	if err != nil {
		return nil, err
	}
	if err := b.store.Create(b.GuardianSetID(0), setData, payer); err != nil {
		return nil, err
	}

	b.log.Info("bridge initialized",
		log.Stringer("state", b.stateID),
		log.Int("guardians", len(keys)),
	)
	return set, nil
}

// PublishParams are the inputs of a publish call.
type PublishParams struct {
	// Payer funds the new message record's deposit.
	Payer ids.ID

	// Emitter is the identity attributed as the message's originator.
	// EmitterSigned must reflect whether the emitter signed the request;
	// unsigned emitters are rejected to prevent spoofed attribution.
	Emitter       [vaa.EmitterAddressLen]byte
	EmitterSigned bool

	// Seed is the client-nonce-derived discriminator addressing the record.
	Seed uint8

	// Nonce is the message nonce guardians will see.
	Nonce uint32

	// Payload is the opaque message body.
	Payload []byte

	// Batch reflects the atomic batch this call executes in, used to locate
	// the fee transfer bundled immediately before it.
	Batch ledger.Batch
}

// PublishMessage admits a new outbound message. Preconditions run in order:
// fee evidence, payload bound, emitter authorization. On success the message
// record is created at the address derived from (emitter, seed); a duplicate
// pair fails with the substrate's ErrRecordExists.
func (b *Bridge) PublishMessage(p PublishParams) (*vaa.Message, ids.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkFeeEvidence(p.Batch); err != nil {
		return nil, ids.Empty, err
	}
	if len(p.Payload) > vaa.MaxPayloadSize {
		return nil, ids.Empty, fmt.Errorf("%w: %d bytes, maximum %d", vaa.ErrPayloadTooLarge, len(p.Payload), vaa.MaxPayloadSize)
	}
	if !p.EmitterSigned {
		return nil, ids.Empty, vaa.ErrUnauthorizedEmitter
	}

	msg := &vaa.Message{
		SubmissionTime: b.clock.Now(),
		Nonce:          p.Nonce,
		EmitterChain:   vaa.ChainIDLocal,
		EmitterAddress: p.Emitter,
		Payload:        p.Payload,
	}
	data, err := vaa.Codec.Marshal(msg)
	if err != nil {
		return nil, ids.Empty, err
	}

	id := b.MessageID(p.Emitter, p.Seed)
	if err := b.store.Create(id, data, p.Payer); err != nil {
		return nil, ids.Empty, err
	}

	b.log.Debug("message published",
		log.Stringer("message", id),
		log.Uint32("nonce", p.Nonce),
		log.Int("payload", len(p.Payload)),
	)
	return msg, id, nil
}

// VerifyParams are the inputs of a signature-collection call.
type VerifyParams struct {
	// Payer funds the signature-set record's deposit when it is created.
	Payer ids.ID

	// Digest is the body digest the attestations cover.
	Digest common.Hash

	// Signers is a sparse slot map: only the guardians attesting in this
	// call appear. Slots absent here are left untouched.
	Signers []vaa.GuardianSignature

	// InitialCreation demands that no signature set exist yet for the
	// (digest, current epoch) pair, guarding a set under construction from
	// being silently extended by an unrelated party.
	InitialCreation bool
}

// VerifySignatures checks each presented attestation against the current
// guardian set and merges the verified slots into the signature set for
// (digest, current epoch). Merging is additive: a filled slot is never
// re-emptied, and the whole read-merge-write runs as one atomic unit.
func (b *Bridge) VerifySignatures(p VerifyParams) (*vaa.SignatureSet, ids.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.readState()
	if err != nil {
		return nil, ids.Empty, err
	}
	guardianSet, err := b.readGuardianSet(state.GuardianSetIndex)
	if err != nil {
		return nil, ids.Empty, err
	}

	for _, s := range p.Signers {
		key, err := guardianSet.KeyAt(int(s.Index))
		if err != nil {
			return nil, ids.Empty, err
		}
		recovered, err := b.recoverAttester(p.Digest, s.Signature)
		if err != nil {
			return nil, ids.Empty, err
		}
		if recovered != key {
			return nil, ids.Empty, fmt.Errorf("%w: slot %d recovered %s, want %s",
				vaa.ErrInvalidSignature, s.Index, recovered, key)
		}
	}

	id := b.SignatureSetID(p.Digest, guardianSet.Index)
	exists := b.store.Has(id)
	if p.InitialCreation && exists {
		return nil, ids.Empty, fmt.Errorf("%w: %s", vaa.ErrAlreadyExists, id)
	}

	set := &vaa.SignatureSet{
		GuardianSetIndex: guardianSet.Index,
		Digest:           p.Digest,
	}
	if exists {
		if set, err = b.readSignatureSet(id); err != nil {
			return nil, ids.Empty, err
		}
	}
	for _, s := range p.Signers {
		set.Signatures[s.Index] = s.Signature
	}

	data, err := vaa.Codec.Marshal(set)
	if err != nil {
		return nil, ids.Empty, err
	}
	if exists {
		err = b.store.Put(id, data)
	} else {
		err = b.store.Create(id, data, p.Payer)
	}
	if err != nil {
		return nil, ids.Empty, err
	}

	b.log.Debug("signatures collected",
		log.Stringer("signatureSet", id),
		log.Uint32("guardianSet", guardianSet.Index),
		log.Int("present", set.NumSigners()),
	)
	return set, id, nil
}

// recoverAttester memoizes attestation recovery; the mapping from
// (digest, signature) to key-hash is immutable.
func (b *Bridge) recoverAttester(digest common.Hash, sig [vaa.SignatureLen]byte) (common.Address, error) {
	return b.recovery.Get(
		attestationKey{digest: digest, sig: sig},
		func(k attestationKey) (common.Address, error) {
			return vaa.RecoverAttester(k.digest, k.sig)
		},
	)
}

// PostVAA finalizes a message. The pipeline short-circuits on the first
// failure and leaves no partial state behind: nothing is written until every
// validation has passed, and the claim creation is the single atomic
// check-then-create that makes finalization happen at most once per digest.
func (b *Bridge) PostVAA(payer ids.ID, msgID ids.ID, sigSetID ids.ID, data *vaa.PostVAAData) (*vaa.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	state, err := b.readState()
	if err != nil {
		return nil, err
	}
	guardianSet, err := b.readGuardianSet(state.GuardianSetIndex)
	if err != nil {
		return nil, err
	}
	sigSet, err := b.readSignatureSet(sigSetID)
	if err != nil {
		return nil, err
	}

	// 1. Epoch liveness.
	if !guardianSet.IsActive(now) {
		return nil, fmt.Errorf("%w: set %d expired at %d, now %d",
			vaa.ErrGuardianSetExpired, guardianSet.Index, guardianSet.ExpirationTime, now)
	}

	// 2. Epoch binding. Both the signature set and the presented header must
	// name the current epoch.
	if sigSet.GuardianSetIndex != guardianSet.Index {
		return nil, fmt.Errorf("%w: signatures bound to set %d, current is %d",
			vaa.ErrGuardianSetMismatch, sigSet.GuardianSetIndex, guardianSet.Index)
	}
	if data.GuardianSetIndex != sigSet.GuardianSetIndex {
		return nil, fmt.Errorf("%w: header names set %d, signatures bound to set %d",
			vaa.ErrGuardianSetMismatch, data.GuardianSetIndex, sigSet.GuardianSetIndex)
	}

	// 3. Integrity: the digest recomputed from the presented body must be
	// the digest the guardians attested to, and the stored message must
	// carry the same body.
	digest := data.Body().Digest()
	if digest != sigSet.Digest {
		return nil, fmt.Errorf("%w: body digest %s, attested %s",
			vaa.ErrIntegrityMismatch, digest, sigSet.Digest)
	}
	msg, err := b.readMessage(msgID)
	if err != nil {
		return nil, err
	}
	if msg.Body().Digest() != digest {
		return nil, fmt.Errorf("%w: message record does not match the presented body",
			vaa.ErrIntegrityMismatch)
	}

	// 4. Quorum.
	present := uint16(sigSet.NumSigners()) //nolint:gosec // at most MaxGuardians
	threshold := guardianSet.QuorumThreshold()
	if present < threshold {
		return nil, fmt.Errorf("%w: %d of %d guardians attested, need %d",
			vaa.ErrConsensusNotReached, present, len(guardianSet.Keys), threshold)
	}

	// 5. Replay protection. The claim's address is the digest's, so this
	// create is the atomic existence-check-and-allocation.
	claim := &vaa.Claim{Digest: digest, ClaimedAt: now}
	claimData, err := vaa.Codec.Marshal(claim)
	if err != nil {
		return nil, err
	}
	if err := b.store.Create(b.ClaimID(digest), claimData, payer); err != nil {
		if errors.Is(err, ledger.ErrRecordExists) {
			return nil, fmt.Errorf("%w: digest %s", vaa.ErrAlreadyClaimed, digest)
		}
		return nil, err
	}

	// 6. Finalize.
	msg.VAAVersion = vaa.Version
	msg.VAATime = now
	msg.VAASignatureRecord = sigSetID
	msgData, err := vaa.Codec.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := b.store.Put(msgID, msgData); err != nil {
		return nil, err
	}

	b.refund(payer)

	b.log.Info("vaa finalized",
		log.Stringer("message", msgID),
		log.Stringer("digest", digest),
		log.Uint32("guardianSet", guardianSet.Index),
		log.Int("signers", int(present)),
	)
	return msg, nil
}

// UpdateGuardianSet rotates the committee: the current set is retired after
// the configured grace period and its successor becomes the epoch new
// signature sets bind to.
func (b *Bridge) UpdateGuardianSet(payer ids.ID, newKeys []common.Address) (*vaa.GuardianSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.readState()
	if err != nil {
		return nil, err
	}
	current, err := b.readGuardianSet(state.GuardianSetIndex)
	if err != nil {
		return nil, err
	}

	now := b.clock.Now()
	next, err := current.Rotate(newKeys, now, state.Config.GuardianSetGracePeriod)
	if err != nil {
		return nil, err
	}

	nextData, err := vaa.Codec.Marshal(next)
	if err != nil {
		return nil, err
	}
	if err := b.store.Create(b.GuardianSetID(next.Index), nextData, payer); err != nil {
		return nil, err
	}

	currentData, err := vaa.Codec.Marshal(current)
	if err != nil {
		return nil, err
	}
	if err := b.store.Put(b.GuardianSetID(current.Index), currentData); err != nil {
		return nil, err
	}

	state.GuardianSetIndex = next.Index
	if err := b.writeState(state); err != nil {
		return nil, err
	}

	b.log.Info("guardian set rotated",
		log.Uint32("from", current.Index),
		log.Uint32("to", next.Index),
		log.Uint32("retiresAt", current.ExpirationTime),
	)
	return next, nil
}
