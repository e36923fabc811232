// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"github.com/luxfi/geth/rlp"
)

// CodecImpl serializes records for ledger storage.
type CodecImpl struct{}

// Codec is the default codec instance.
var Codec = &CodecImpl{}

// Marshal serializes a record.
func (c *CodecImpl) Marshal(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// Unmarshal deserializes a record.
func (c *CodecImpl) Unmarshal(b []byte, v interface{}) error {
	return rlp.DecodeBytes(b, v)
}
