// Package selector picks which trade candidates to open next.
//
// Selection is pure and deterministic: the same candidates, account and open
// positions always produce the same admitted sequence. The result is an
// iter.Seq so callers can stop early, and every range restarts the scan from
// scratch.
package selector

import (
	"iter"
	"sort"

	"tendbot/broker"
	"tendbot/ledger"
	"tendbot/market"
	"tendbot/risk"
)

// Select yields the candidates to open, best confidence first.
//
// Candidates whose symbol already has a live position are dropped. The rest
// are scanned in confidence order (ties keep input order) and admitted while
// a position slot is free and the account risk ceiling has room for another
// per-trade reservation. A candidate that does not fit is skipped, not a
// stopping point; later candidates still get their turn.
func Select(candidates []market.Candidate, acct broker.AccountSnapshot, params risk.Params, open []ledger.Position) iter.Seq[market.Candidate] {
	return func(yield func(market.Candidate) bool) {
		taken := make(map[string]bool, len(open))
		openCount := 0
		for _, p := range open {
			if !p.State.Terminal() {
				taken[p.Candidate.Symbol] = true
				openCount++
			}
		}

		eligible := make([]market.Candidate, 0, len(candidates))
		for _, c := range candidates {
			if !taken[c.Symbol] {
				eligible = append(eligible, c)
			}
		}
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].Confidence > eligible[j].Confidence
		})

		// Each live position holds one per-trade risk reservation.
		committed := float64(openCount) * params.RiskPerTradeUSD
		admitted := 0
		for _, c := range eligible {
			if openCount+admitted >= params.MaxPositions {
				return
			}
			if !risk.WithinCeiling(acct.Equity, committed, params) {
				continue
			}
			committed += params.RiskPerTradeUSD
			admitted++
			if !yield(c) {
				return
			}
		}
	}
}
