// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import "errors"

// Every failure mode of the verification core maps to one of these sentinel
// errors. They are all terminal: the caller must change its input (fresh
// nonce, more attestations, a live guardian set), not retry identically.
var (
	// ErrInvalidConfig is returned for bad initialization parameters, such
	// as a guardian set with more than MaxGuardians keys.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPayloadTooLarge is returned when a message payload exceeds
	// MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrFeeEvidence is returned when the operation bundled before a publish
	// call is missing, is not a transfer to the treasury, or carries an
	// insufficient amount.
	ErrFeeEvidence = errors.New("invalid fee evidence")

	// ErrGuardianSetExpired is returned when finalization is attempted
	// against a retired guardian set.
	ErrGuardianSetExpired = errors.New("guardian set expired")

	// ErrGuardianSetMismatch is returned when a signature set is bound to a
	// different guardian epoch than the one presented.
	ErrGuardianSetMismatch = errors.New("guardian set mismatch")

	// ErrIntegrityMismatch is returned when the recomputed body digest
	// disagrees with the digest the guardians attested to.
	ErrIntegrityMismatch = errors.New("message digest mismatch")

	// ErrConsensusNotReached is returned when fewer attestation slots are
	// present than the quorum threshold requires.
	ErrConsensusNotReached = errors.New("consensus not reached")

	// ErrAlreadyClaimed is returned when a digest has already been finalized.
	ErrAlreadyClaimed = errors.New("vaa already claimed")

	// ErrAlreadyExists is returned when initial creation of a signature set
	// is requested but a set for the pair already exists.
	ErrAlreadyExists = errors.New("signature set already exists")

	// ErrUnauthorizedEmitter is returned when the emitter did not sign the
	// publish request.
	ErrUnauthorizedEmitter = errors.New("emitter is not a signer")

	// ErrUnknownGuardian is returned when an attestation names a slot outside
	// the guardian set.
	ErrUnknownGuardian = errors.New("unknown guardian slot")

	// ErrInvalidSignature is returned when an attestation does not recover
	// to the guardian key registered for its slot.
	ErrInvalidSignature = errors.New("invalid attestation signature")
)
