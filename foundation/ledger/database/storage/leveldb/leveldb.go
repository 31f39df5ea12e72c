// Package leveldb implements block storage over a leveldb database. Blocks
// are keyed by their big endian block number so the natural key order is the
// chain order.
package leveldb

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/tallychain/tally/foundation/ledger/database"
)

// LevelDB represents the storage implementation for reading and storing
// blocks in a leveldb database. This implements the database.Storage
// interface.
type LevelDB struct {
	db *leveldb.DB
}

// New constructs a LevelDB value for use, opening the database under the
// specified path.
func New(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDB{db: db}, nil
}

// Close closes the underlying leveldb database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Write takes the specified block and stores it under its block number.
func (l *LevelDB) Write(blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	return l.db.Put(blockKey(blockData.Header.Number), data, nil)
}

// GetBlock searches the database to locate and return the contents of the
// specified block by number.
func (l *LevelDB) GetBlock(num uint64) (database.BlockData, error) {
	data, err := l.db.Get(blockKey(num), nil)
	if err != nil {
		return database.BlockData{}, err
	}

	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (l *LevelDB) ForEach() database.Iterator {
	return &iterator{ldb: l}
}

// Reset will clear out all the blocks in the database.
func (l *LevelDB) Reset() error {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	if err := iter.Error(); err != nil {
		return err
	}

	return l.db.Write(batch, nil)
}

// blockKey forms the database key for the specified block number.
func blockKey(num uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, num)

	return key
}

// =============================================================================

// iterator represents the iteration implementation for walking through the
// blocks in the database. This implements the database.Iterator interface.
type iterator struct {
	ldb     *LevelDB // Access to the leveldb storage API.
	current uint64   // Current block number being iterated over.
	eoc     bool     // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from the database.
func (it *iterator) Next() (database.BlockData, error) {
	if it.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	it.current++
	blockData, err := it.ldb.GetBlock(it.current)
	if errors.Is(err, leveldb.ErrNotFound) {
		it.eoc = true
	}

	return blockData, err
}

// Done returns the end of chain value.
func (it *iterator) Done() bool {
	return it.eoc
}
