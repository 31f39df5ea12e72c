// Package memory implements block storage keeping blocks in memory. It
// serves tests and nodes that can rebuild from their peers.
package memory

import (
	"errors"
	"sync"

	"github.com/tallychain/tally/foundation/ledger/database"
)

// errEndOfChain is reported once the iterator walked past the last block.
var errEndOfChain = errors.New("end of chain")

// Memory represents the storage implementation for keeping blocks in memory
// using a slice. This implements the database.Storage interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.BlockData
}

// New constructs a Memory value for use.
func New() (*Memory, error) {
	return &Memory{}, nil
}

// Close in this implementation has nothing to do since everything is kept in
// memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified block and appends it to the in memory chain.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uint64(len(m.blocks))+1 != blockData.Header.Number {
		return errors.New("block is out of order")
	}

	m.blocks = append(m.blocks, blockData)

	return nil
}

// GetBlock returns the contents of the specified block by number.
func (m *Memory) GetBlock(num uint64) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num == 0 || num > uint64(len(m.blocks)) {
		return database.BlockData{}, errEndOfChain
	}

	return m.blocks[num-1], nil
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (m *Memory) ForEach() database.Iterator {
	return &iterator{storage: m}
}

// Reset will clear out the in memory chain.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil

	return nil
}

// =============================================================================

// iterator represents the iteration implementation for walking through the
// blocks in memory. This implements the database.Iterator interface.
type iterator struct {
	storage *Memory // Access to the memory storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from memory.
func (it *iterator) Next() (database.BlockData, error) {
	if it.eoc {
		return database.BlockData{}, errEndOfChain
	}

	it.current++
	blockData, err := it.storage.GetBlock(it.current)
	if err != nil {
		it.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (it *iterator) Done() bool {
	return it.eoc
}
