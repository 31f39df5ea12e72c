package public

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// submitTx is the payload a wallet posts to submit a signed transaction.
type submitTx struct {
	Header  transaction.Header     `json:"header"`
	Payload hexutil.Bytes          `json:"payload"`
	Sigs    transaction.Signatures `json:"sigs"`
}

// submitIns is the payload for submitting a signed update instruction. The
// instruction travels in its wire encoding.
type submitIns struct {
	Instruction hexutil.Bytes `json:"instruction"`
}

// tx is the view of a tracked transaction returned to clients.
type tx struct {
	Hash       string                `json:"hash"`
	SenderID   transaction.AccountID `json:"sender"`
	SenderName string                `json:"senderName"`
	Nonce      uint64                `json:"nonce"`
	Energy     uint64                `json:"energy"`
	Expiry     uint64                `json:"expiry"`
	Status     string                `json:"status"`
}

// info is the view of one account in the registry.
type info struct {
	Account   transaction.AccountID `json:"account"`
	Name      string                `json:"name"`
	Threshold uint8                 `json:"threshold"`
	Nonce     uint64                `json:"nonce"`
	NextNonce uint64                `json:"nextNonce,omitempty"`
	HighNonce uint64                `json:"highNonce,omitempty"`
	Txs       []tx                  `json:"txs,omitempty"`
}

// actInfo carries the account views together with chain head context.
type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Tracked     int    `json:"tracked"`
	Accounts    []info `json:"accounts"`
}
