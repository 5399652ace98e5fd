// Package accounts adapts the state tree to the account model of a
// transaction processing runtime. Addresses are fixed width keys, account
// values carry a balance, an owning program, an executable flag and opaque
// data in a fixed binary layout.
package accounts

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// AddressSize is the fixed width of account keys.
const AddressSize = 32

type Address [AddressSize]byte

// Account is the decoded value stored under an address. An account with zero
// balance is considered dead.
type Account struct {
	Balance    uint64
	Owner      Address
	Executable bool
	Data       []byte
}

// StateTree is the slice of the tree contract the adapter needs.
type StateTree interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
}

// SeedFunc builds the account installed for a named builtin program.
type SeedFunc func(name string) Account

// DefaultSeed is the stock builtin account: a small funded executable
// account whose data is the program name.
func DefaultSeed(name string) Account {
	return Account{
		Balance:    5000,
		Executable: true,
		Data:       []byte(name),
	}
}

type Store struct {
	tree StateTree
	seed SeedFunc
}

// NewStore wraps tree in the account view. A nil seed falls back to
// DefaultSeed.
func NewStore(tree StateTree, seed SeedFunc) *Store {
	if seed == nil {
		seed = DefaultSeed
	}
	return &Store{tree: tree, seed: seed}
}

// GetAccount returns the account currently visible under addr, or nil if the
// address was never written.
func (s *Store) GetAccount(addr Address) (*Account, error) {
	value, err := s.tree.Get(addr[:])
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	account, err := decodeAccount(value)
	if err != nil {
		return nil, fmt.Errorf("account %x: %w", addr, err)
	}
	return account, nil
}

// AccountMatchesOwners reports whether a live account exists under addr with
// one of owners as its owning program, and the index of the matching owner.
// Dead and absent accounts never match.
func (s *Store) AccountMatchesOwners(addr Address, owners []Address) (int, bool, error) {
	account, err := s.GetAccount(addr)
	if err != nil {
		return 0, false, err
	}
	if account == nil || account.Balance == 0 {
		return 0, false, nil
	}
	for i, owner := range owners {
		if owner == account.Owner {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// SetAccount encodes account and writes it under addr.
func (s *Store) SetAccount(addr Address, account Account) error {
	return s.tree.Set(addr[:], encodeAccount(account))
}

// AddBuiltinAccount installs the seeded account for a named builtin under
// addr, shadowing any previous entry at that address.
func (s *Store) AddBuiltinAccount(name string, addr Address) error {
	return s.SetAccount(addr, s.seed(name))
}

func encodeAccount(account Account) []byte {
	buf := make([]byte, 0, 8+AddressSize+1+binary.MaxVarintLen64+len(account.Data))
	buf = binary.BigEndian.AppendUint64(buf, account.Balance)
	buf = append(buf, account.Owner[:]...)
	if account.Executable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.AppendUvarint(buf, uint64(len(account.Data)))
	buf = append(buf, account.Data...)
	return buf
}

func decodeAccount(bz []byte) (*Account, error) {
	if len(bz) < 8+AddressSize+1 {
		return nil, fmt.Errorf("account encoding too short: %d bytes", len(bz))
	}
	account := &Account{
		Balance: binary.BigEndian.Uint64(bz[:8]),
	}
	copy(account.Owner[:], bz[8:8+AddressSize])
	switch bz[8+AddressSize] {
	case 0:
	case 1:
		account.Executable = true
	default:
		return nil, fmt.Errorf("invalid executable flag %d", bz[8+AddressSize])
	}
	rest := bz[8+AddressSize+1:]
	length, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, fmt.Errorf("invalid data length prefix")
	}
	rest = rest[n:]
	if uint64(len(rest)) != length {
		return nil, fmt.Errorf("data length %d does not match remaining %d bytes", length, len(rest))
	}
	account.Data = bytes.Clone(rest)
	return account, nil
}
