package vesting

import (
	"time"

	"token-vesting-service/models"
)

// Totals is the dashboard roll-up of a set of grants.
// Unlocked + Locked == Claimed always holds exactly.
type Totals struct {
	Eligible models.Amount `json:"eligible"`
	Claimed  models.Amount `json:"claimed"`
	Unlocked models.Amount `json:"unlocked"`
	Locked   models.Amount `json:"locked"`
	Expired  models.Amount `json:"expired"`
	Grants   int           `json:"grants"`
}

// Summarize reduces grants to Totals as of asOf.
func Summarize(grants []models.Grant, asOf time.Time) Totals {
	var t Totals
	for i := range grants {
		t.add(&grants[i], asOf)
	}
	t.Locked = t.Claimed.Sub(t.Unlocked)
	return t
}

// SummarizeByCampaign groups grants by campaign before reducing.
func SummarizeByCampaign(grants []models.Grant, asOf time.Time) map[string]Totals {
	out := make(map[string]Totals)
	for i := range grants {
		g := &grants[i]
		t := out[g.CampaignID]
		t.add(g, asOf)
		out[g.CampaignID] = t
	}
	for id, t := range out {
		t.Locked = t.Claimed.Sub(t.Unlocked)
		out[id] = t
	}
	return out
}

func (t *Totals) add(g *models.Grant, asOf time.Time) {
	t.Grants++
	switch {
	case g.Status == models.GrantStatusEligible:
		t.Eligible = t.Eligible.Add(g.TotalAmount)
	case g.Status == models.GrantStatusExpired:
		t.Expired = t.Expired.Add(g.TotalAmount)
	case g.IsClaimed():
		t.Claimed = t.Claimed.Add(g.TotalAmount)
		t.Unlocked = t.Unlocked.Add(Compute(g, asOf).Unlocked)
	}
}
