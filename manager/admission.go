package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tendbot/broker"
	"tendbot/ledger"
	"tendbot/market"
	"tendbot/risk"
	"tendbot/selector"
)

// Admission feeds new positions from a fixed candidate roster into the
// manager. Every call re-runs selection against whatever is open right
// now, so a symbol freed by a close becomes eligible again on the next
// tick.
type Admission struct {
	candidates []market.Candidate
	params     risk.Params
	book       *ledger.Ledger
	mgr        *Manager
	log        zerolog.Logger
}

func NewAdmission(candidates []market.Candidate, params risk.Params, book *ledger.Ledger, mgr *Manager, log zerolog.Logger) *Admission {
	return &Admission{
		candidates: append([]market.Candidate(nil), candidates...),
		params:     params,
		book:       book,
		mgr:        mgr,
		log:        log.With().Str("component", "admission").Logger(),
	}
}

// AdmitCandidates opens every candidate selection lets through. An entry
// the venue rejects still consumed its slot for this tick; selection
// hands the symbol another chance on the next one.
func (a *Admission) AdmitCandidates(ctx context.Context, acct broker.AccountSnapshot, now time.Time) {
	open := a.book.AllOpen()
	for c := range selector.Select(a.candidates, acct, a.params, open) {
		if _, err := a.mgr.Open(ctx, c, acct.Equity, now); err != nil {
			a.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("candidate not opened")
		}
	}
}
