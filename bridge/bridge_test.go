// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"crypto/ecdsa"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/ledger"
)

type testEnv struct {
	bridge *Bridge
	mem    *ledger.Memory
	clock  *ledger.ManualClock
	payer  ids.ID

	guardianKeys   []*ecdsa.PrivateKey
	guardianHashes []common.Address
}

func newTestEnv(t *testing.T, guardians int) *testEnv {
	t.Helper()

	env := &testEnv{
		mem:   ledger.NewMemory(),
		clock: &ledger.ManualClock{Time: 1_700_000_000},
		payer: ledger.DeriveID([]byte("payer")),
	}
	env.mem.Credit(env.payer, uint256.NewInt(100_000_000))

	for i := 0; i < guardians; i++ {
		sk, err := crypto.GenerateKey()
		require.NoError(t, err)
		env.guardianKeys = append(env.guardianKeys, sk)
		env.guardianHashes = append(env.guardianHashes, vaa.KeyHash(&sk.PublicKey))
	}

	env.bridge = New(log.NewNoOpLogger(), env.mem, env.mem, env.clock, []byte("test"))
	_, err := env.bridge.Initialize(env.payer, env.guardianHashes, DefaultConfig())
	require.NoError(t, err)
	return env
}

// feeBatch simulates the atomic batch of a publish call: the fee transfer at
// index 0, already executed by the substrate, and the publish at index 1.
func (env *testEnv) feeBatch(t *testing.T, amount uint64) ledger.Batch {
	t.Helper()
	treasury := env.bridge.TreasuryID()
	require.NoError(t, env.mem.Transfer(env.payer, treasury, uint256.NewInt(amount)))
	return &ledger.OpBatch{
		Ops: []ledger.Operation{
			ledger.NewTransferOperation(env.payer, treasury, amount),
			{},
		},
		Index: 1,
	}
}

func (env *testEnv) publish(t *testing.T, seed uint8, nonce uint32, payload []byte) (*vaa.Message, ids.ID) {
	t.Helper()
	var emitter [vaa.EmitterAddressLen]byte
	emitter[0] = 0xe1

	msg, id, err := env.bridge.PublishMessage(PublishParams{
		Payer:         env.payer,
		Emitter:       emitter,
		EmitterSigned: true,
		Seed:          seed,
		Nonce:         nonce,
		Payload:       payload,
		Batch:         env.feeBatch(t, TransferFee),
	})
	require.NoError(t, err)
	return msg, id
}

func (env *testEnv) attest(t *testing.T, digest common.Hash, slots ...int) []vaa.GuardianSignature {
	t.Helper()
	sigs := make([]vaa.GuardianSignature, 0, len(slots))
	for _, slot := range slots {
		sig, err := vaa.Attest(digest, env.guardianKeys[slot])
		require.NoError(t, err)
		sigs = append(sigs, vaa.GuardianSignature{Index: uint8(slot), Signature: sig})
	}
	return sigs
}

func postVAAData(msg *vaa.Message, index uint32, sigs []vaa.GuardianSignature) *vaa.PostVAAData {
	return &vaa.PostVAAData{
		Version:          vaa.Version,
		GuardianSetIndex: index,
		Signatures:       sigs,
		Timestamp:        msg.SubmissionTime,
		Nonce:            msg.Nonce,
		EmitterChain:     msg.EmitterChain,
		EmitterAddress:   msg.EmitterAddress,
		Payload:          msg.Payload,
	}
}

func TestInitializeOnce(t *testing.T) {
	env := newTestEnv(t, 3)

	// The state record address is fixed per instance; a second
	// initialization collides with it.
	_, err := env.bridge.Initialize(env.payer, env.guardianHashes, DefaultConfig())
	require.ErrorIs(t, err, ledger.ErrRecordExists)
}

func TestInitializeTooManyGuardians(t *testing.T) {
	mem := ledger.NewMemory()
	payer := ledger.DeriveID([]byte("payer"))
	mem.Credit(payer, uint256.NewInt(1_000_000))

	keys := make([]common.Address, vaa.MaxGuardians+1)
	for i := range keys {
		keys[i][19] = byte(i + 1)
	}

	b := New(log.NewNoOpLogger(), mem, mem, &ledger.ManualClock{}, []byte("test"))
	_, err := b.Initialize(payer, keys, DefaultConfig())
	require.ErrorIs(t, err, vaa.ErrInvalidConfig)
	require.False(t, mem.Has(b.TreasuryID()), "failed initialization must not create the state record")
}

func TestPublishMessage(t *testing.T) {
	env := newTestEnv(t, 3)

	msg, id := env.publish(t, 1, 7, []byte("hi"))
	require.Equal(t, env.clock.Time, msg.SubmissionTime)
	require.Equal(t, vaa.ChainIDLocal, msg.EmitterChain)
	require.Equal(t, uint32(7), msg.Nonce)
	require.Equal(t, vaa.MessageStatusPublished, msg.Status())
	require.True(t, env.mem.Has(id))

	stored, err := env.bridge.readMessage(id)
	require.NoError(t, err)
	require.Equal(t, msg, stored)

	// Same (emitter, seed) pair: the derived address is taken.
	var emitter [vaa.EmitterAddressLen]byte
	emitter[0] = 0xe1
	_, _, err = env.bridge.PublishMessage(PublishParams{
		Payer:         env.payer,
		Emitter:       emitter,
		EmitterSigned: true,
		Seed:          1,
		Nonce:         8,
		Payload:       []byte("other"),
		Batch:         env.feeBatch(t, TransferFee),
	})
	require.ErrorIs(t, err, ledger.ErrRecordExists)
}

func TestPublishFeeEvidence(t *testing.T) {
	env := newTestEnv(t, 3)
	treasury := env.bridge.TreasuryID()
	elsewhere := ledger.DeriveID([]byte("elsewhere"))

	tests := []struct {
		name  string
		batch ledger.Batch
	}{
		{
			"no preceding operation",
			&ledger.OpBatch{Ops: []ledger.Operation{{}}, Index: 0},
		},
		{
			"preceding operation is not a transfer",
			&ledger.OpBatch{Ops: []ledger.Operation{{Program: ledger.DeriveID([]byte("x"))}, {}}, Index: 1},
		},
		{
			"transfer does not target the treasury",
			&ledger.OpBatch{Ops: []ledger.Operation{
				ledger.NewTransferOperation(env.payer, elsewhere, TransferFee), {},
			}, Index: 1},
		},
		{
			"amount below the fee",
			&ledger.OpBatch{Ops: []ledger.Operation{
				ledger.NewTransferOperation(env.payer, treasury, TransferFee-1), {},
			}, Index: 1},
		},
	}

	var emitter [vaa.EmitterAddressLen]byte
	emitter[0] = 0xe2

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := uint8(i + 1)
			_, _, err := env.bridge.PublishMessage(PublishParams{
				Payer:         env.payer,
				Emitter:       emitter,
				EmitterSigned: true,
				Seed:          seed,
				Nonce:         1,
				Payload:       []byte("hi"),
				Batch:         tt.batch,
			})
			require.ErrorIs(t, err, vaa.ErrFeeEvidence)

			// No partial side effects: the record must not exist.
			require.False(t, env.mem.Has(env.bridge.MessageID(emitter, seed)))
		})
	}
}

func TestPublishPayloadTooLarge(t *testing.T) {
	env := newTestEnv(t, 3)

	var emitter [vaa.EmitterAddressLen]byte
	_, _, err := env.bridge.PublishMessage(PublishParams{
		Payer:         env.payer,
		Emitter:       emitter,
		EmitterSigned: true,
		Seed:          1,
		Nonce:         1,
		Payload:       make([]byte, vaa.MaxPayloadSize+1),
		Batch:         env.feeBatch(t, TransferFee),
	})
	require.ErrorIs(t, err, vaa.ErrPayloadTooLarge)

	// Exactly at the bound is fine.
	_, _, err = env.bridge.PublishMessage(PublishParams{
		Payer:         env.payer,
		Emitter:       emitter,
		EmitterSigned: true,
		Seed:          1,
		Nonce:         1,
		Payload:       make([]byte, vaa.MaxPayloadSize),
		Batch:         env.feeBatch(t, TransferFee),
	})
	require.NoError(t, err)
}

func TestPublishUnsignedEmitter(t *testing.T) {
	env := newTestEnv(t, 3)

	var emitter [vaa.EmitterAddressLen]byte
	_, _, err := env.bridge.PublishMessage(PublishParams{
		Payer:   env.payer,
		Emitter: emitter,
		Seed:    1,
		Nonce:   1,
		Payload: []byte("hi"),
		Batch:   env.feeBatch(t, TransferFee),
	})
	require.ErrorIs(t, err, vaa.ErrUnauthorizedEmitter)
}

func TestPublishFromEnvelope(t *testing.T) {
	env := newTestEnv(t, 3)

	wrapped, err := (&vaa.Envelope{Kind: vaa.EnvelopeKindPostVAA, Payload: []byte("hi")}).Serialize()
	require.NoError(t, err)
	parsed, err := vaa.ParseEnvelope(wrapped)
	require.NoError(t, err)

	msg, _ := env.publish(t, 9, 7, parsed.Payload)
	require.Equal(t, []byte("hi"), msg.Payload)
}

func TestVerifySignatures(t *testing.T) {
	env := newTestEnv(t, 3)
	msg, _ := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	set, id, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 2),
		InitialCreation: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, set.NumSigners())
	require.True(t, set.SlotPresent(0))
	require.True(t, set.SlotPresent(2))
	require.Equal(t, digest, set.Digest)
	require.Equal(t, uint32(0), set.GuardianSetIndex)

	// Initial creation demands a fresh record.
	_, _, err = env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 1),
		InitialCreation: true,
	})
	require.ErrorIs(t, err, vaa.ErrAlreadyExists)

	// Merging adds slots without losing the existing ones.
	set, id2, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:   env.payer,
		Digest:  digest,
		Signers: env.attest(t, digest, 1),
	})
	require.NoError(t, err)
	require.Equal(t, id, id2)
	require.Equal(t, 3, set.NumSigners())
}

func TestVerifySignaturesRejects(t *testing.T) {
	env := newTestEnv(t, 3)
	msg, _ := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	// Slot outside the committee.
	badSlot := env.attest(t, digest, 0)
	badSlot[0].Index = 3
	_, _, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:   env.payer,
		Digest:  digest,
		Signers: badSlot,
	})
	require.ErrorIs(t, err, vaa.ErrUnknownGuardian)

	// Attestation recovers to a key other than the slot's guardian.
	wrongKey := env.attest(t, digest, 1)
	wrongKey[0].Index = 0
	_, _, err = env.bridge.VerifySignatures(VerifyParams{
		Payer:   env.payer,
		Digest:  digest,
		Signers: wrongKey,
	})
	require.ErrorIs(t, err, vaa.ErrInvalidSignature)

	// Nothing was stored along the way.
	require.False(t, env.mem.Has(env.bridge.SignatureSetID(digest, 0)))
}

func TestPostVAALifecycle(t *testing.T) {
	env := newTestEnv(t, 3)

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	// Threshold for a 3-member committee is 1; two attestations clear it.
	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	finalized, err := env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.NoError(t, err)
	require.Equal(t, vaa.MessageStatusFinalized, finalized.Status())
	require.Equal(t, vaa.Version, finalized.VAAVersion)
	require.Equal(t, env.clock.Time, finalized.VAATime)
	require.Equal(t, sigSetID, finalized.VAASignatureRecord)

	// The finalization metadata is persisted.
	stored, err := env.bridge.readMessage(msgID)
	require.NoError(t, err)
	require.Equal(t, finalized, stored)
	require.True(t, env.mem.Has(env.bridge.ClaimID(digest)))

	// Replay: the claim address is taken.
	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.ErrorIs(t, err, vaa.ErrAlreadyClaimed)
}

func TestPostVAAQuorumBoundary(t *testing.T) {
	env := newTestEnv(t, 6) // threshold 3

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	// threshold-1 present slots: rejected.
	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.ErrorIs(t, err, vaa.ErrConsensusNotReached)
	require.False(t, env.mem.Has(env.bridge.ClaimID(digest)), "rejected finalization must not claim")

	// Exactly threshold: accepted.
	_, _, err = env.bridge.VerifySignatures(VerifyParams{
		Payer:   env.payer,
		Digest:  digest,
		Signers: env.attest(t, digest, 4),
	})
	require.NoError(t, err)

	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.NoError(t, err)
}

func TestPostVAAGuardianSetMismatch(t *testing.T) {
	env := newTestEnv(t, 3)

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	// A header naming the wrong epoch is rejected even when the signature
	// set itself is current.
	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 1, nil))
	require.ErrorIs(t, err, vaa.ErrGuardianSetMismatch)

	// Rotate: the signature set stays bound to epoch 0 while the current
	// epoch moves to 1.
	_, err = env.bridge.UpdateGuardianSet(env.payer, env.guardianHashes)
	require.NoError(t, err)

	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.ErrorIs(t, err, vaa.ErrGuardianSetMismatch)
}

func TestPostVAAGuardianSetExpired(t *testing.T) {
	env := newTestEnv(t, 3)

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	// Retire epoch 0 in place, with the clock sitting exactly on the
	// expiration instant.
	set, err := env.bridge.readGuardianSet(0)
	require.NoError(t, err)
	set.ExpirationTime = env.clock.Time
	data, err := vaa.Codec.Marshal(set)
	require.NoError(t, err)
	require.NoError(t, env.mem.Put(env.bridge.GuardianSetID(0), data))

	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.ErrorIs(t, err, vaa.ErrGuardianSetExpired)
}

func TestPostVAAIntegrityMismatch(t *testing.T) {
	env := newTestEnv(t, 3)

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()

	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	// The presented body disagrees with what the guardians attested to.
	tampered := postVAAData(msg, 0, nil)
	tampered.Payload = []byte("h!")
	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, tampered)
	require.ErrorIs(t, err, vaa.ErrIntegrityMismatch)

	// The presented body matches the attestations but not the message
	// record being finalized.
	other, _ := env.publish(t, 2, 8, []byte("bye"))
	otherDigest := other.Body().Digest()
	_, otherSigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          otherDigest,
		Signers:         env.attest(t, otherDigest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)
	_, err = env.bridge.PostVAA(env.payer, msgID, otherSigSetID, postVAAData(other, 0, nil))
	require.ErrorIs(t, err, vaa.ErrIntegrityMismatch)
}

func TestPostVAARefund(t *testing.T) {
	env := newTestEnv(t, 3)
	treasury := env.bridge.TreasuryID()

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()
	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	// The publish fee left the treasury with excess above its deposit, so
	// finalization refunds the per-VAA surcharge.
	before := env.mem.Balance(treasury)
	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.NoError(t, err)

	after := env.mem.Balance(treasury)
	require.Equal(t, uint256.NewInt(VAATxFee), new(uint256.Int).Sub(before, after))
}

func TestPostVAANoRefundBelowReserve(t *testing.T) {
	env := newTestEnv(t, 3)
	treasury := env.bridge.TreasuryID()

	msg, msgID := env.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()
	_, sigSetID, err := env.bridge.VerifySignatures(VerifyParams{
		Payer:           env.payer,
		Digest:          digest,
		Signers:         env.attest(t, digest, 0, 1),
		InitialCreation: true,
	})
	require.NoError(t, err)

	// Drain the treasury down to its reserve; finalization must still
	// succeed, just without the courtesy refund.
	sink := ledger.DeriveID([]byte("sink"))
	require.NoError(t, env.mem.Transfer(treasury, sink, env.mem.ExcessBalance(treasury)))
	before := env.mem.Balance(treasury)

	_, err = env.bridge.PostVAA(env.payer, msgID, sigSetID, postVAAData(msg, 0, nil))
	require.NoError(t, err)
	require.Equal(t, before, env.mem.Balance(treasury))
}

func TestUpdateGuardianSet(t *testing.T) {
	env := newTestEnv(t, 3)
	grace := DefaultConfig().GuardianSetGracePeriod

	newKeys := make([]common.Address, 5)
	for i := range newKeys {
		newKeys[i][0] = 0x20
		newKeys[i][19] = byte(i + 1)
	}

	next, err := env.bridge.UpdateGuardianSet(env.payer, newKeys)
	require.NoError(t, err)
	require.Equal(t, uint32(1), next.Index)

	// The retired set expires after the grace period.
	old, err := env.bridge.readGuardianSet(0)
	require.NoError(t, err)
	require.Equal(t, env.clock.Time+grace, old.ExpirationTime)
	require.True(t, old.IsActive(env.clock.Time))

	state, err := env.bridge.readState()
	require.NoError(t, err)
	require.Equal(t, uint32(1), state.GuardianSetIndex)

	// New collections bind to the new epoch.
	env2 := newTestEnv(t, 4)
	_, err = env2.bridge.UpdateGuardianSet(env2.payer, env2.guardianHashes)
	require.NoError(t, err)
	msg, _ := env2.publish(t, 1, 7, []byte("hi"))
	digest := msg.Body().Digest()
	set, _, err := env2.bridge.VerifySignatures(VerifyParams{
		Payer:   env2.payer,
		Digest:  digest,
		Signers: env2.attest(t, digest, 0),
	})
	require.NoError(t, err)
	require.Equal(t, uint32(1), set.GuardianSetIndex)
}
