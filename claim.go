// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import "github.com/luxfi/geth/common"

// Claim is the one-time record that prevents a body digest from being
// finalized twice. Its storage address is derived from the digest, so the
// ledger's create-once semantics make a second claim fail deterministically.
// A claim is terminal: never mutated, never deleted.
type Claim struct {
	// Digest is the body digest being claimed.
	Digest common.Hash

	// ClaimedAt is the oracle time of finalization.
	ClaimedAt uint32
}
