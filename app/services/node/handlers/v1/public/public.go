// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	v1 "github.com/tallychain/tally/business/web/v1"
	"github.com/tallychain/tally/foundation/events"
	"github.com/tallychain/tally/foundation/ledger/state"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable"
	"github.com/tallychain/tally/foundation/ledger/updates"
	"github.com/tallychain/tally/foundation/nameservice"
	"github.com/tallychain/tally/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds a new signed transaction to the tracked set.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitTx
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	tran, err := transaction.New(req.Header, req.Payload, req.Sigs, uint64(v.Now.Unix()))
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "sender", tran.SenderID(), "nonce", tran.Nonce(), "hash", tran.Hash())
	if err := h.State.SubmitTransaction(tran); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}{
		Status: "transaction accepted",
		Hash:   tran.Hash().String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// TransactionStatus returns the lifecycle status for the specified
// transaction hash.
func (h Handlers) TransactionStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := transaction.ToTxHash(web.Param(r, "hash"))
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	tran, view, exists := h.State.QueryTransaction(hash)
	if !exists {
		return v1.NewRequestError(txtable.ErrUnknownTransaction, http.StatusNotFound)
	}

	resp := struct {
		Hash     string                `json:"hash"`
		Sender   transaction.AccountID `json:"sender"`
		Nonce    uint64                `json:"nonce"`
		Lifetime txtable.View          `json:"lifetime"`
	}{
		Hash:     hash.String(),
		Sender:   tran.SenderID(),
		Nonce:    tran.Nonce(),
		Lifetime: view,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Accounts returns the registry details for all accounts or one account.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountStr := web.Param(r, "account")

	var acts []info
	switch accountStr {
	case "":
		for accountID, account := range h.State.RetrieveAccounts() {
			acts = append(acts, info{
				Account:   accountID,
				Name:      h.NS.Lookup(accountID),
				Threshold: account.Threshold,
				Nonce:     account.Nonce,
			})
		}

	default:
		accountID, err := transaction.ToAccountID(accountStr)
		if err != nil {
			return v1.NewRequestError(err, http.StatusBadRequest)
		}

		detail, err := h.State.QueryAccount(accountID)
		if err != nil {
			return v1.NewRequestError(err, http.StatusNotFound)
		}

		act := info{
			Account:   accountID,
			Name:      h.NS.Lookup(accountID),
			Threshold: detail.Account.Threshold,
			Nonce:     detail.Account.Nonce,
		}
		if detail.HasPending {
			act.NextNonce = detail.Pending.NextNonce
			act.HighNonce = detail.Pending.HighNonce
		}

		for _, tran := range detail.Txs {
			t := tx{
				Hash:       tran.Hash().String(),
				SenderID:   tran.SenderID(),
				SenderName: h.NS.Lookup(tran.SenderID()),
				Nonce:      tran.Nonce(),
				Energy:     tran.Energy(),
				Expiry:     tran.Expiry(),
			}
			if _, view, exists := h.State.QueryTransaction(tran.Hash()); exists {
				t.Status = view.Status
			}
			act.Txs = append(act.Txs, t)
		}

		acts = append(acts, act)
	}

	tracked, _, _ := h.State.Counts()

	ai := actInfo{
		LatestBlock: h.State.RetrieveLatestBlock().Hash.String(),
		Tracked:     tracked,
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// Governance returns the full governance state including the scheduled
// update queues.
func (h Handlers) Governance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gov := h.State.RetrieveGovernance()
	return web.Respond(ctx, w, gov, http.StatusOK)
}

// ChainParameters returns the live chain parameters.
func (h Handlers) ChainParameters(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	params := h.State.RetrieveChainParameters()
	return web.Respond(ctx, w, params, http.StatusOK)
}

// ProtocolStatus reports whether a protocol update took effect and which
// ones are still scheduled.
func (h Handlers) ProtocolStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := h.State.RetrieveProtocolStatus()
	return web.Respond(ctx, w, status, http.StatusOK)
}

// SubmitUpdateInstruction accepts a signed governance update instruction in
// its wire encoding.
func (h Handlers) SubmitUpdateInstruction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitIns
	if err := web.Decode(r, &req); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	ins, err := updates.DecodeInstruction(req.Instruction)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.Log.Infow("add update ins", "traceid", v.TraceID, "kind", ins.Payload().Kind(), "seq", ins.Header().SequenceNumber)
	if err := h.State.SubmitUpdateInstruction(ins); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		Kind   string `json:"kind"`
	}{
		Status: "instruction accepted",
		Kind:   ins.Payload().Kind().String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
