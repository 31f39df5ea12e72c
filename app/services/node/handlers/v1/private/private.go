// Package private maintains the group of handlers for consensus driven access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	v1 "github.com/tallychain/tally/business/web/v1"
	"github.com/tallychain/tally/foundation/ledger/database"
	"github.com/tallychain/tally/foundation/ledger/state"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/nameservice"
	"github.com/tallychain/tally/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of consensus facing endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// blockRef is the payload for block lifecycle calls that only need the
// block identity.
type blockRef struct {
	Hash transaction.BlockHash `json:"hash"`
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.RetrieveLatestBlock()
	txs, accounts, liveBlocks := h.State.Counts()

	status := struct {
		LatestBlockHash   string `json:"latest_block_hash"`
		LatestBlockNumber uint64 `json:"latest_block_number"`
		TrackedTxs        int    `json:"tracked_txs"`
		Accounts          int    `json:"accounts"`
		LiveBlocks        int    `json:"live_blocks"`
	}{
		LatestBlockHash:   latestBlock.Hash.String(),
		LatestBlockNumber: latestBlock.Header.Number,
		TrackedTxs:        txs,
		Accounts:          accounts,
		LiveBlocks:        liveBlocks,
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// CandidateTransactions returns the transactions the node proposes for the
// next candidate block.
func (h Handlers) CandidateTransactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	howMany, err := strconv.Atoi(web.Param(r, "howmany"))
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	txs := h.State.CandidateTransactions(howMany)

	hashes := make([]string, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash().String()
	}

	resp := struct {
		Txs []string `json:"txs"`
	}{
		Txs: hashes,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ApplyBlock records the effects of an executed candidate block.
func (h Handlers) ApplyBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var blockCtx state.BlockContext
	if err := web.Decode(r, &blockCtx); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("apply block", "traceid", v.TraceID, "block", blockCtx.Hash, "slot", blockCtx.Slot, "txs", len(blockCtx.TxHashes))
	applied, err := h.State.ApplyBlock(blockCtx)
	if err != nil {
		return v1.NewRequestError(err, errStatus(err))
	}

	resp := struct {
		Status  string `json:"status"`
		Applied int    `json:"applied_updates"`
	}{
		Status:  "block applied",
		Applied: len(applied),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RollbackBlock reverses the youngest applied block on the followed branch.
func (h Handlers) RollbackBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ref blockRef
	if err := web.Decode(r, &ref); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := h.State.RollbackBlock(ref.Hash); err != nil {
		return v1.NewRequestError(err, errStatus(err))
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "block rolled back",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// PruneBlock abandons a live block that fell off the followed branch.
func (h Handlers) PruneBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ref blockRef
	if err := web.Decode(r, &ref); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := h.State.PruneBlock(ref.Hash); err != nil {
		return v1.NewRequestError(err, errStatus(err))
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "block pruned",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// FinalizeBlock makes the oldest applied block on the followed branch
// irreversible and persists it.
func (h Handlers) FinalizeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ref blockRef
	if err := web.Decode(r, &ref); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("finalize block", "traceid", v.TraceID, "block", ref.Hash)
	block, err := h.State.FinalizeBlock(ref.Hash)
	if err != nil {
		return v1.NewRequestError(err, errStatus(err))
	}

	resp := struct {
		Status string `json:"status"`
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	}{
		Status: "block finalized",
		Number: block.Header.Number,
		Hash:   block.Hash.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns finalized blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	if from > to {
		return v1.NewRequestError(errors.New("from greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// errStatus maps the well known block order failures to a conflict status
// and everything else to a bad request.
func errStatus(err error) int {
	switch {
	case errors.Is(err, state.ErrUnknownBlock):
		return http.StatusNotFound
	case errors.Is(err, state.ErrBlockOrder):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
