// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger abstracts the storage substrate the verification core runs
// against: a wall-clock oracle, uniquely addressable create-once records with
// caller-funded deposits, and reflection over the sibling operations of an
// atomic batch. The substrate executes each logical operation atomically and
// exactly once; create-once addressing is the primitive every replay
// protection in the core is built on.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
)

var (
	// ErrRecordExists is returned by Create when a record already lives at
	// the derived address.
	ErrRecordExists = errors.New("record already exists")

	// ErrRecordNotFound is returned when a record does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInsufficientFunds is returned when an account cannot cover a
	// transfer or deposit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoSuchOperation is returned when a batch index is out of range.
	ErrNoSuchOperation = errors.New("no such operation")

	// ErrNotTransfer is returned when an operation is not a well-formed
	// native transfer.
	ErrNotTransfer = errors.New("operation is not a transfer")
)

// Clock is the substrate's wall-clock oracle. Now is read once per logical
// operation and treated as fixed for that operation's duration.
type Clock interface {
	Now() uint32
}

// WallClock reads the host clock.
type WallClock struct{}

func (WallClock) Now() uint32 {
	return uint32(time.Now().Unix()) //nolint:gosec // wraps in 2106
}

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	Time uint32
}

func (c *ManualClock) Now() uint32 { return c.Time }

// Advance moves the clock forward.
func (c *ManualClock) Advance(d uint32) { c.Time += d }

// Store is the record substrate. Create is the create-once primitive: it is
// a single indivisible allocation, so two concurrent creates of the same
// address cannot both succeed.
type Store interface {
	// Create allocates a record at id, funding its minimum-for-size deposit
	// from payer. Fails with ErrRecordExists if the address is taken.
	Create(id ids.ID, data []byte, payer ids.ID) error

	// Get returns the record data at id.
	Get(id ids.ID) ([]byte, error)

	// Put overwrites the data of an existing record.
	Put(id ids.ID, data []byte) error

	// Has reports whether a record exists at id.
	Has(id ids.ID) bool
}

// Bank exposes the native-currency balances of the substrate.
type Bank interface {
	// Balance returns the current balance of an account.
	Balance(id ids.ID) *uint256.Int

	// Transfer moves amount between accounts.
	Transfer(from, to ids.ID, amount *uint256.Int) error

	// ExcessBalance returns how much of a record account's balance sits
	// above its minimum-for-size deposit and may be withdrawn.
	ExcessBalance(id ids.ID) *uint256.Int
}

// Deposit economics: a record of size S requires base + S units on deposit.
const (
	depositBase    = 128
	depositPerByte = 1
)

// MinBalanceFor returns the deposit required to keep a record of the given
// size alive.
func MinBalanceFor(size int) *uint256.Int {
	return uint256.NewInt(uint64(depositBase + size*depositPerByte))
}

// DeriveID derives a record address from seed components. Derivation is
// deterministic, so an identical seed tuple always lands on the same address
// and a second Create there fails.
func DeriveID(seeds ...[]byte) ids.ID {
	var id ids.ID
	copy(id[:], crypto.Keccak256(seeds...))
	return id
}

// SystemProgram is the well-known program id of the substrate's native
// transfer handler.
var SystemProgram = ids.ID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

// transferKind is the operation kind tag of a native transfer.
const transferKind uint32 = 2

// transferDataLen is the fixed encoding size of a transfer:
// u32 kind tag + u64 amount, both little-endian.
const transferDataLen = 12

// Operation is one instruction of an atomic batch, as seen through the
// substrate's reflection interface.
type Operation struct {
	// Program is the id of the program the operation targets.
	Program ids.ID

	// Accounts lists the accounts the operation touches. For a transfer:
	// [funder, recipient].
	Accounts []ids.ID

	// Data is the operation's encoded arguments.
	Data []byte
}

// Batch reflects over the atomic batch the current operation executes in.
type Batch interface {
	// CurrentIndex is the position of the currently executing operation.
	CurrentIndex() int

	// OperationAt returns the operation at the given position.
	OperationAt(i int) (Operation, error)
}

// NewTransferOperation builds a native transfer operation.
func NewTransferOperation(from, to ids.ID, amount uint64) Operation {
	data := make([]byte, transferDataLen)
	binary.LittleEndian.PutUint32(data[:4], transferKind)
	binary.LittleEndian.PutUint64(data[4:], amount)
	return Operation{
		Program:  SystemProgram,
		Accounts: []ids.ID{from, to},
		Data:     data,
	}
}

// ParseTransfer validates that an operation is a well-formed native transfer
// and returns its recipient and amount.
func ParseTransfer(op Operation) (ids.ID, uint64, error) {
	if op.Program != SystemProgram {
		return ids.Empty, 0, fmt.Errorf("%w: program %s", ErrNotTransfer, op.Program)
	}
	if len(op.Accounts) != 2 {
		return ids.Empty, 0, fmt.Errorf("%w: %d accounts", ErrNotTransfer, len(op.Accounts))
	}
	if len(op.Data) != transferDataLen {
		return ids.Empty, 0, fmt.Errorf("%w: %d data bytes", ErrNotTransfer, len(op.Data))
	}
	if binary.LittleEndian.Uint32(op.Data[:4]) != transferKind {
		return ids.Empty, 0, fmt.Errorf("%w: kind tag %d", ErrNotTransfer, binary.LittleEndian.Uint32(op.Data[:4]))
	}
	return op.Accounts[1], binary.LittleEndian.Uint64(op.Data[4:]), nil
}

// OpBatch is a concrete Batch over a slice of operations.
type OpBatch struct {
	Ops   []Operation
	Index int
}

func (b *OpBatch) CurrentIndex() int { return b.Index }

func (b *OpBatch) OperationAt(i int) (Operation, error) {
	if i < 0 || i >= len(b.Ops) {
		return Operation{}, fmt.Errorf("%w: index %d of %d", ErrNoSuchOperation, i, len(b.Ops))
	}
	return b.Ops[i], nil
}
