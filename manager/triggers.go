package manager

import (
	"tendbot/ledger"
	"tendbot/market"
)

// Price-touch checks. All are inclusive: landing exactly on a level counts
// as touching it.

func entryFilled(p ledger.Position, price float64) bool {
	if p.Candidate.Side == market.Long {
		return price <= p.Candidate.EntryPrice
	}
	return price >= p.Candidate.EntryPrice
}

func stopTouched(p ledger.Position, price float64) bool {
	if p.Candidate.Side == market.Long {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

func targetTouched(p ledger.Position, price float64) bool {
	if p.Candidate.Side == market.Long {
		return price >= p.Candidate.TargetPrice
	}
	return price <= p.Candidate.TargetPrice
}

func halfwayTouched(p ledger.Position, price float64) bool {
	halfway := p.Candidate.Halfway()
	if p.Candidate.Side == market.Long {
		return price >= halfway
	}
	return price <= halfway
}
