// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/tallychain/tally/app/services/node/handlers/v1/private"
	"github.com/tallychain/tally/app/services/node/handlers/v1/public"
	"github.com/tallychain/tally/foundation/events"
	"github.com/tallychain/tally/foundation/ledger/state"
	"github.com/tallychain/tally/foundation/nameservice"
	"github.com/tallychain/tally/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/list", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/list/:account", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/tx/status/:hash", pbl.TransactionStatus)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction)
	app.Handle(http.MethodGet, version, "/gov/list", pbl.Governance)
	app.Handle(http.MethodGet, version, "/gov/parameters", pbl.ChainParameters)
	app.Handle(http.MethodGet, version, "/gov/protocol", pbl.ProtocolStatus)
	app.Handle(http.MethodPost, version, "/gov/submit", pbl.SubmitUpdateInstruction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/block/list/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/node/tx/candidates/:howmany", prv.CandidateTransactions)
	app.Handle(http.MethodPost, version, "/node/block/apply", prv.ApplyBlock)
	app.Handle(http.MethodPost, version, "/node/block/rollback", prv.RollbackBlock)
	app.Handle(http.MethodPost, version, "/node/block/prune", prv.PruneBlock)
	app.Handle(http.MethodPost, version, "/node/block/finalize", prv.FinalizeBlock)
}
