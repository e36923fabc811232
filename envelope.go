// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// EnvelopeMagic prefixes every envelope.
var EnvelopeMagic = []byte("WHEV")

// EnvelopeKind distinguishes envelope contents.
type EnvelopeKind uint8

// EnvelopeKindPostVAA wraps a payload destined for publication.
const EnvelopeKindPostVAA EnvelopeKind = 1

var (
	// ErrInvalidMagic is returned when an envelope does not start with
	// EnvelopeMagic.
	ErrInvalidMagic = errors.New("invalid envelope magic")

	// ErrUnknownEnvelopeKind is returned for an unrecognized kind byte.
	ErrUnknownEnvelopeKind = errors.New("unknown envelope kind")

	// ErrShortEnvelope is returned when an envelope is truncated.
	ErrShortEnvelope = errors.New("unexpected end of envelope")
)

// Envelope is the trivial binary wrapper external producers use to hand an
// opaque payload to the bridge. It is not part of the consensus logic; the
// publisher consumes only the payload bytes.
//
// Wire format:
//
//	magic   4 bytes, must match EnvelopeMagic exactly
//	kind    1 byte
//	length  2 bytes, big-endian payload length
//	payload length bytes
type Envelope struct {
	Kind    EnvelopeKind
	Payload []byte
}

// Serialize turns the envelope into bytes.
func (e *Envelope) Serialize() ([]byte, error) {
	if len(e.Payload) > 0xffff {
		return nil, fmt.Errorf("%w: payload length %d does not fit in two bytes", ErrPayloadTooLarge, len(e.Payload))
	}

	var buf bytes.Buffer
	buf.Grow(len(EnvelopeMagic) + 1 + 2 + len(e.Payload))
	buf.Write(EnvelopeMagic)
	buf.WriteByte(byte(e.Kind))
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(e.Payload)))
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// ParseEnvelope decodes an envelope from bytes.
func ParseEnvelope(b []byte) (*Envelope, error) {
	if len(b) < len(EnvelopeMagic)+3 {
		return nil, ErrShortEnvelope
	}
	if !bytes.Equal(b[:len(EnvelopeMagic)], EnvelopeMagic) {
		return nil, ErrInvalidMagic
	}
	rest := b[len(EnvelopeMagic):]

	kind := EnvelopeKind(rest[0])
	if kind != EnvelopeKindPostVAA {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEnvelopeKind, kind)
	}

	length := binary.BigEndian.Uint16(rest[1:3])
	body := rest[3:]
	if len(body) < int(length) {
		return nil, ErrShortEnvelope
	}

	payload := make([]byte, length)
	copy(payload, body[:length])
	return &Envelope{Kind: kind, Payload: payload}, nil
}
