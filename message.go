// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"github.com/luxfi/ids"
)

const (
	// MaxPayloadSize is the maximum message payload accepted for publication.
	MaxPayloadSize = 400

	// EmitterAddressLen is the size of an emitter address.
	EmitterAddressLen = 32

	// ChainIDLocal is the chain id of the chain this core runs on, used as
	// the emitter chain of every locally published message.
	ChainIDLocal uint8 = 1

	// Version is the VAA header version written at finalization.
	Version uint8 = 1
)

// MessageStatus tracks where a message is in its lifecycle.
type MessageStatus uint8

const (
	// MessageStatusPublished means the message is admitted and waiting for
	// attestations. A message that never reaches quorum stays published
	// forever; only guardian sets expire.
	MessageStatusPublished MessageStatus = iota

	// MessageStatusFinalized means a quorum of the guardian set attested to
	// the message and it was claimed. Terminal.
	MessageStatusFinalized
)

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusPublished:
		return "published"
	case MessageStatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Message is the record of a published, possibly finalized, cross-chain
// message. It is created by the publisher and mutated exactly once
// afterwards, when the finalizer writes the VAA header fields.
type Message struct {
	// VAAVersion is zero until finalization.
	VAAVersion uint8

	// VAATime is the oracle time of finalization, zero until then.
	VAATime uint32

	// VAASignatureRecord is the address of the signature set that carried
	// the finalizing quorum, ids.Empty until then.
	VAASignatureRecord ids.ID

	// SubmissionTime is the oracle time the message was published.
	SubmissionTime uint32

	// Nonce is the caller-chosen message nonce.
	Nonce uint32

	// EmitterChain and EmitterAddress attribute the message's originator.
	EmitterChain   uint8
	EmitterAddress [EmitterAddressLen]byte

	// Payload is the opaque message body, at most MaxPayloadSize bytes.
	Payload []byte
}

// Status derives the lifecycle state from the finalization fields.
func (m *Message) Status() MessageStatus {
	if m.VAAVersion != 0 {
		return MessageStatusFinalized
	}
	return MessageStatusPublished
}

// Body returns the canonical body the guardians attest to for this message.
// The timestamp attested to is the submission time.
func (m *Message) Body() *Body {
	return &Body{
		Timestamp:      m.SubmissionTime,
		Nonce:          m.Nonce,
		EmitterChain:   m.EmitterChain,
		EmitterAddress: m.EmitterAddress,
		Payload:        m.Payload,
	}
}

// PostVAAData is the full VAA a caller presents for finalization: the header
// naming the guardian epoch and attestations, and the body whose digest the
// attestations cover.
type PostVAAData struct {
	// Header.
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []GuardianSignature

	// Body.
	Timestamp      uint32
	Nonce          uint32
	EmitterChain   uint8
	EmitterAddress [EmitterAddressLen]byte
	Payload        []byte
}

// Body returns the body portion of the VAA.
func (d *PostVAAData) Body() *Body {
	return &Body{
		Timestamp:      d.Timestamp,
		Nonce:          d.Nonce,
		EmitterChain:   d.EmitterChain,
		EmitterAddress: d.EmitterAddress,
		Payload:        d.Payload,
	}
}
