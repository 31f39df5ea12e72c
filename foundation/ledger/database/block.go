package database

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tallychain/tally/foundation/ledger/merkle"
	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// BlockHeader represents common information about each finalized block. The
// block hash itself is assigned by the consensus layer, the header records
// how the block sits in the finalized chain.
type BlockHeader struct {
	Number         uint64                `json:"number"`          // Position in the finalized chain, starting at 1.
	PrevBlockHash  transaction.BlockHash `json:"prev_block_hash"` // Hash of the previously finalized block.
	Slot           uint64                `json:"slot"`            // Consensus slot the block was baked in.
	TimeStamp      uint64                `json:"timestamp"`       // Time of the block in unix seconds.
	TransRoot      string                `json:"trans_root"`      // Merkle root over the transactions in this block.
	GovernanceRoot string                `json:"governance_root"` // Commitment to the governance state after this block.
}

// BlockTx is the persisted form of one transaction in a finalized block. The
// raw bytes are the exact wire encoding, so the content hash can always be
// recomputed from what is stored.
type BlockTx struct {
	Raw     hexutil.Bytes `json:"raw"`
	Arrival uint64        `json:"arrival"`
}

// NewBlockTx constructs the persisted form of a transaction.
func NewBlockTx(tx *transaction.Transaction) BlockTx {
	return BlockTx{
		Raw:     tx.Encode(),
		Arrival: tx.Arrival(),
	}
}

// Transaction decodes the persisted form back into a transaction.
func (btx BlockTx) Transaction() (*transaction.Transaction, error) {
	return transaction.Decode(btx.Raw, btx.Arrival)
}

// Hash returns the transaction content hash. This is part of the merkle
// Hashable interface.
func (btx BlockTx) Hash() ([]byte, error) {
	tx, err := transaction.Decode(btx.Raw, btx.Arrival)
	if err != nil {
		return nil, err
	}

	hash := tx.Hash()
	return hash[:], nil
}

// Equals reports whether two persisted transactions carry the same bytes.
// This is part of the merkle Hashable interface.
func (btx BlockTx) Equals(other BlockTx) bool {
	return bytes.Equal(btx.Raw, other.Raw)
}

// =============================================================================

// Block represents a finalized block as the node keeps it in memory.
type Block struct {
	Hash   transaction.BlockHash
	Header BlockHeader
	Trans  *merkle.Tree[BlockTx] // Nil when the block carries no transactions.
}

// NewBlock constructs the next block of the finalized chain from the
// transactions the consensus layer finalized in it.
func NewBlock(hash transaction.BlockHash, prevBlock Block, slot uint64, timeStamp uint64, governanceRoot [32]byte, txs []*transaction.Transaction) (Block, error) {
	transRoot := signature.ZeroHash

	var tree *merkle.Tree[BlockTx]
	if len(txs) > 0 {
		trans := make([]BlockTx, len(txs))
		for i, tx := range txs {
			trans[i] = NewBlockTx(tx)
		}

		var err error
		tree, err = merkle.NewTree(trans)
		if err != nil {
			return Block{}, err
		}
		transRoot = tree.RootHex()
	}

	block := Block{
		Hash: hash,
		Header: BlockHeader{
			Number:         prevBlock.Header.Number + 1,
			PrevBlockHash:  prevBlock.Hash,
			Slot:           slot,
			TimeStamp:      timeStamp,
			TransRoot:      transRoot,
			GovernanceRoot: hexutil.Encode(governanceRoot[:]),
		},
		Trans: tree,
	}

	return block, nil
}

// Transactions returns the block's transactions in block order.
func (b Block) Transactions() ([]*transaction.Transaction, error) {
	if b.Trans == nil {
		return nil, nil
	}

	values := b.Trans.Values()
	txs := make([]*transaction.Transaction, len(values))
	for i, btx := range values {
		tx, err := btx.Transaction()
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}

	return txs, nil
}

// ValidateChainLink takes a block and validates it to be the next block of
// the specified previous block.
func (b Block) ValidateChainLink(prevBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateChainLink: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	if b.Header.Number != prevBlock.Header.Number+1 {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, prevBlock.Header.Number+1)
	}

	evHandler("database: ValidateChainLink: validate: blk[%d]: check: parent hash matches parent block", b.Header.Number)

	if b.Header.PrevBlockHash != prevBlock.Hash {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.PrevBlockHash, prevBlock.Hash)
	}

	if prevBlock.Header.Number > 0 {
		evHandler("database: ValidateChainLink: validate: blk[%d]: check: block slot is after parent block slot", b.Header.Number)

		if b.Header.Slot <= prevBlock.Header.Slot {
			return fmt.Errorf("block slot is not after parent block slot, parent %d, block %d", prevBlock.Header.Slot, b.Header.Slot)
		}
	}

	evHandler("database: ValidateChainLink: validate: blk[%d]: check: trans root matches transactions", b.Header.Number)

	transRoot := signature.ZeroHash
	if b.Trans != nil {
		transRoot = b.Trans.RootHex()
	}
	if b.Header.TransRoot != transRoot {
		return fmt.Errorf("trans root does not match transactions, got %s, exp %s", transRoot, b.Header.TransRoot)
	}

	return nil
}

// =============================================================================

// BlockData represents what is serialized to storage.
type BlockData struct {
	Hash   transaction.BlockHash `json:"hash"`
	Header BlockHeader           `json:"block"`
	Trans  []BlockTx             `json:"trans"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(block Block) BlockData {
	var trans []BlockTx
	if block.Trans != nil {
		trans = block.Trans.Values()
	}

	return BlockData{
		Hash:   block.Hash,
		Header: block.Header,
		Trans:  trans,
	}
}

// ToBlock converts a storage block into a database block.
func ToBlock(blockData BlockData) (Block, error) {
	var tree *merkle.Tree[BlockTx]
	if len(blockData.Trans) > 0 {
		var err error
		tree, err = merkle.NewTree(blockData.Trans)
		if err != nil {
			return Block{}, err
		}
	}

	return Block{
		Hash:   blockData.Hash,
		Header: blockData.Header,
		Trans:  tree,
	}, nil
}
