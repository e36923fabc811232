// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/ledger"
)

// VAATxFee is the fixed per-VAA surcharge covering the guardian operations a
// published message will cost downstream (signature checks and the post-VAA
// call).
const VAATxFee uint64 = 18 * 10000

// Wire sizes of the records a published message will eventually allocate.
// These are fixed by the record layouts, not measured at runtime; if a
// layout changes they must be recomputed.
const (
	signatureStateSize = vaa.MaxGuardians*vaa.SignatureLen + 32 + 4
	claimStateSize     = 32 + 4
)

// TransferFee is the fee a caller must have transferred to the treasury in
// the operation immediately preceding a publish call. It prices the storage
// the message's finalization will consume plus the per-VAA surcharge.
const TransferFee uint64 = signatureStateSize + claimStateSize + VAATxFee

// checkFeeEvidence verifies that the operation bundled immediately before
// the current one is a native transfer of at least TransferFee to the bridge
// treasury. Only the destination and amount matter, not the sender.
func (b *Bridge) checkFeeEvidence(batch ledger.Batch) error {
	current := batch.CurrentIndex()
	if current == 0 {
		return fmt.Errorf("%w: no preceding operation", vaa.ErrFeeEvidence)
	}

	op, err := batch.OperationAt(current - 1)
	if err != nil {
		return fmt.Errorf("%w: %s", vaa.ErrFeeEvidence, err)
	}

	to, amount, err := ledger.ParseTransfer(op)
	if err != nil {
		return fmt.Errorf("%w: %s", vaa.ErrFeeEvidence, err)
	}
	if to != b.stateID {
		return fmt.Errorf("%w: transfer targets %s, not the treasury", vaa.ErrFeeEvidence, to)
	}
	if amount < TransferFee {
		return fmt.Errorf("%w: transferred %d, need %d", vaa.ErrFeeEvidence, amount, TransferFee)
	}
	return nil
}

// refund returns the per-VAA surcharge to the payer when the treasury holds
// more than its minimum reserve. A courtesy, not a guarantee: failure is
// logged and never unwinds the finalization that triggered it.
func (b *Bridge) refund(payer ids.ID) {
	fee := uint256.NewInt(VAATxFee)
	if b.bank.ExcessBalance(b.stateID).Lt(fee) {
		return
	}
	if err := b.bank.Transfer(b.stateID, payer, fee); err != nil {
		b.log.Warn("fee refund failed",
			log.Stringer("payer", payer),
			log.Err(err),
		)
	}
}
