// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

var (
	_ Store = (*Memory)(nil)
	_ Bank  = (*Memory)(nil)
)

// Memory is an in-memory substrate for tests, tools, and single-process
// deployments. One lock guards every call, so each operation is an atomic
// unit and conflicting calls serialize; in particular the existence check
// inside Create and the allocation it guards are indivisible.
type Memory struct {
	mu       sync.RWMutex
	records  map[ids.ID][]byte
	balances map[ids.ID]*uint256.Int
}

// NewMemory returns an empty in-memory substrate.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[ids.ID][]byte),
		balances: make(map[ids.ID]*uint256.Int),
	}
}

// Create allocates a record, funding its deposit from payer.
func (m *Memory) Create(id ids.ID, data []byte, payer ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; ok {
		return fmt.Errorf("%w: %s", ErrRecordExists, id)
	}

	deposit := MinBalanceFor(len(data))
	if err := m.transferLocked(payer, id, deposit); err != nil {
		return err
	}

	m.records[id] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the record data at id.
func (m *Memory) Get(id ids.ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return append([]byte(nil), data...), nil
}

// Put overwrites the data of an existing record.
func (m *Memory) Put(id ids.ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	m.records[id] = append([]byte(nil), data...)
	return nil
}

// Has reports whether a record exists at id.
func (m *Memory) Has(id ids.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.records[id]
	return ok
}

// Balance returns the current balance of an account.
func (m *Memory) Balance(id ids.ID) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.balances[id]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Credit mints funds into an account. Test and genesis faucet.
func (m *Memory) Credit(id ids.ID, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creditLocked(id, amount)
}

// Transfer moves amount between accounts.
func (m *Memory) Transfer(from, to ids.ID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.transferLocked(from, to, amount)
}

// ExcessBalance returns the balance a record holds above its
// minimum-for-size deposit. Non-record accounts hold no deposit, so their
// entire balance is excess.
func (m *Memory) ExcessBalance(id ids.ID) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance, ok := m.balances[id]
	if !ok {
		return uint256.NewInt(0)
	}

	min := uint256.NewInt(0)
	if data, ok := m.records[id]; ok {
		min = MinBalanceFor(len(data))
	}
	if balance.Lt(min) {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(balance, min)
}

func (m *Memory) creditLocked(id ids.ID, amount *uint256.Int) {
	if b, ok := m.balances[id]; ok {
		b.Add(b, amount)
		return
	}
	m.balances[id] = amount.Clone()
}

func (m *Memory) transferLocked(from, to ids.ID, amount *uint256.Int) error {
	balance, ok := m.balances[from]
	if !ok || balance.Lt(amount) {
		return fmt.Errorf("%w: account %s", ErrInsufficientFunds, from)
	}
	balance.Sub(balance, amount)
	m.creditLocked(to, amount)
	return nil
}
