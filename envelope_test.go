// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := &Envelope{Kind: EnvelopeKindPostVAA, Payload: []byte{0x42}}

	b, err := env.Serialize()
	require.NoError(t, err)
	require.Equal(t, EnvelopeMagic, b[:4])
	require.Equal(t, byte(EnvelopeKindPostVAA), b[4])
	require.Equal(t, []byte{0x00, 0x01, 0x42}, b[5:])

	parsed, err := ParseEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, env, parsed)
}

func TestEnvelopeEmptyPayload(t *testing.T) {
	env := &Envelope{Kind: EnvelopeKindPostVAA}
	b, err := env.Serialize()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(b)
	require.NoError(t, err)
	require.Empty(t, parsed.Payload)
}

func TestParseEnvelopeRejects(t *testing.T) {
	valid, err := (&Envelope{Kind: EnvelopeKindPostVAA, Payload: []byte("hello")}).Serialize()
	require.NoError(t, err)

	tests := []struct {
		name string
		b    []byte
		want error
	}{
		{"empty", nil, ErrShortEnvelope},
		{"short header", valid[:5], ErrShortEnvelope},
		{"bad magic", append([]byte("XXXX"), valid[4:]...), ErrInvalidMagic},
		{"unknown kind", append(append([]byte{}, valid[:4]...), append([]byte{0x7f}, valid[5:]...)...), ErrUnknownEnvelopeKind},
		{"truncated payload", valid[:len(valid)-1], ErrShortEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.b)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseEnvelopeIgnoresTrailingBytes(t *testing.T) {
	b, err := (&Envelope{Kind: EnvelopeKindPostVAA, Payload: []byte("hi")}).Serialize()
	require.NoError(t, err)

	parsed, err := ParseEnvelope(append(b, 0xff, 0xff))
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), parsed.Payload)
}
