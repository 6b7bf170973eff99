// Package vesting computes how a claimed grant unlocks over time.
//
// Everything here is a pure function of the grant's immutable terms, its claim time and
// the caller-supplied asOf. Nothing reads the wall clock, so results are deterministic
// and safe to evaluate concurrently without locks.
package vesting

import (
	"errors"
	"fmt"
	"time"

	"token-vesting-service/models"
)

// MaxPeriodMonths bounds linear and cliff schedules to a century.
const MaxPeriodMonths = 1200

var (
	ErrInvalidPolicy  = errors.New("invalid vesting policy")
	ErrInvalidPercent = errors.New("instant unlock percent must be between 0 and 100")
)

// ValidateTerms checks issuance terms. It runs before a grant is persisted, never at
// evaluation time.
func ValidateTerms(instantUnlockPercent int, policy models.VestingPolicy) error {
	if instantUnlockPercent < 0 || instantUnlockPercent > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidPercent, instantUnlockPercent)
	}
	switch policy.Kind {
	case models.VestingInstant:
		if policy.PeriodMonths != 0 {
			return fmt.Errorf("%w: instant policy cannot have a period (got %d months)", ErrInvalidPolicy, policy.PeriodMonths)
		}
	case models.VestingLinear, models.VestingCliff:
		if policy.PeriodMonths <= 0 {
			return fmt.Errorf("%w: %s policy needs a positive period (got %d months)", ErrInvalidPolicy, policy.Kind, policy.PeriodMonths)
		}
		if policy.PeriodMonths > MaxPeriodMonths {
			return fmt.Errorf("%w: %s period of %d months exceeds %d", ErrInvalidPolicy, policy.Kind, policy.PeriodMonths, MaxPeriodMonths)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, policy.Kind)
	}
	return nil
}

// Unlock is the state of a grant's release schedule at a point in time.
type Unlock struct {
	Claimed          models.Amount
	Unlocked         models.Amount
	Locked           models.Amount
	ElapsedMonths    int
	FullyUnlocked    bool
	NextUnlockAt     *time.Time
	NextUnlockAmount models.Amount
}

// Tranche is one release event in a grant's schedule.
type Tranche struct {
	At         time.Time     `json:"at"`
	Amount     models.Amount `json:"amount"`
	Cumulative models.Amount `json:"cumulative"`
}

// InstantAmount is floor(total * percent / 100).
func InstantAmount(total models.Amount, percent int) models.Amount {
	if percent <= 0 {
		return models.Amount{}
	}
	if percent >= 100 {
		return total
	}
	return total.MulDiv(uint64(percent), 100)
}

// EffectivePolicy collapses a 100% instant unlock to the instant policy.
func EffectivePolicy(g *models.Grant) models.VestingPolicy {
	if g.InstantUnlockPercent >= 100 {
		return models.VestingPolicy{Kind: models.VestingInstant}
	}
	return g.Vesting
}

// Compute returns unlocked and locked amounts for g at asOf. Unclaimed grants
// (eligible, expired) have nothing claimed. asOf before the claim is treated as the
// claim instant.
func Compute(g *models.Grant, asOf time.Time) Unlock {
	if !g.IsClaimed() || g.ClaimedAt == nil {
		return Unlock{}
	}
	claimedAt := *g.ClaimedAt
	if asOf.Before(claimedAt) {
		asOf = claimedAt
	}

	total := g.TotalAmount
	instant := InstantAmount(total, g.InstantUnlockPercent)
	remainder := total.Sub(instant)
	u := Unlock{Claimed: total}

	policy := EffectivePolicy(g)
	switch policy.Kind {
	case models.VestingLinear:
		period := policy.PeriodMonths
		elapsed := min(ElapsedMonths(claimedAt, asOf), period)
		u.ElapsedMonths = elapsed
		released := linearCumulative(remainder, elapsed, period)
		u.Unlocked = instant.Add(released)
		// first month whose floored cumulative passes released:
		// k = ceil(period * (released+1) / remainder), which skips zero increments
		if elapsed < period && !remainder.IsZero() {
			if k, ok := released.Add(models.NewAmount(1)).MulDivUp(uint64(period), remainder); ok {
				month := min(max(int(k), elapsed+1), period)
				next := AddMonths(claimedAt, month)
				u.NextUnlockAt = &next
				u.NextUnlockAmount = linearCumulative(remainder, month, period).Sub(released)
			}
		}
	case models.VestingCliff:
		period := policy.PeriodMonths
		u.ElapsedMonths = min(ElapsedMonths(claimedAt, asOf), period)
		cliff := AddMonths(claimedAt, period)
		if asOf.Before(cliff) {
			u.Unlocked = instant
			if !remainder.IsZero() {
				u.NextUnlockAt = &cliff
				u.NextUnlockAmount = remainder
			}
		} else {
			u.Unlocked = total
		}
	default:
		u.Unlocked = total
	}

	u.Locked = total.Sub(u.Unlocked)
	u.FullyUnlocked = u.Locked.IsZero()
	return u
}

// linearCumulative is the part of remainder released after k of period months.
func linearCumulative(remainder models.Amount, k, period int) models.Amount {
	if k >= period {
		return remainder
	}
	if k <= 0 {
		return models.Amount{}
	}
	return remainder.MulDiv(uint64(k), uint64(period))
}

// Tranches lists every release event of a claimed grant, starting with the instant
// unlock at claim time. The last Cumulative always equals TotalAmount.
func Tranches(g *models.Grant) []Tranche {
	if !g.IsClaimed() || g.ClaimedAt == nil {
		return nil
	}
	claimedAt := *g.ClaimedAt
	total := g.TotalAmount
	policy := EffectivePolicy(g)

	if policy.Kind == models.VestingInstant {
		return []Tranche{{At: claimedAt, Amount: total, Cumulative: total}}
	}

	instant := InstantAmount(total, g.InstantUnlockPercent)
	remainder := total.Sub(instant)
	out := []Tranche{{At: claimedAt, Amount: instant, Cumulative: instant}}

	switch policy.Kind {
	case models.VestingLinear:
		prev := models.Amount{}
		for k := 1; k <= policy.PeriodMonths; k++ {
			cum := linearCumulative(remainder, k, policy.PeriodMonths)
			out = append(out, Tranche{
				At:         AddMonths(claimedAt, k),
				Amount:     cum.Sub(prev),
				Cumulative: instant.Add(cum),
			})
			prev = cum
		}
	case models.VestingCliff:
		out = append(out, Tranche{
			At:         AddMonths(claimedAt, policy.PeriodMonths),
			Amount:     remainder,
			Cumulative: total,
		})
	}
	return out
}

// CompletesAt is when the schedule of a claimed grant releases its last token.
func CompletesAt(g *models.Grant) (time.Time, bool) {
	if !g.IsClaimed() || g.ClaimedAt == nil {
		return time.Time{}, false
	}
	policy := EffectivePolicy(g)
	if policy.Kind == models.VestingInstant {
		return *g.ClaimedAt, true
	}
	if InstantAmount(g.TotalAmount, g.InstantUnlockPercent).Equal(g.TotalAmount) {
		return *g.ClaimedAt, true
	}
	return AddMonths(*g.ClaimedAt, policy.PeriodMonths), true
}

// EffectiveStatus applies the read-time vesting -> completed transition.
func EffectiveStatus(g *models.Grant, asOf time.Time) models.GrantStatus {
	if g.Status == models.GrantStatusVesting && Compute(g, asOf).FullyUnlocked {
		return models.GrantStatusCompleted
	}
	return g.Status
}

// ProgressPercent is floor(unlocked * 100 / total) for claimed grants, 0 otherwise.
func ProgressPercent(g *models.Grant, asOf time.Time) int {
	if !g.IsClaimed() {
		return 0
	}
	return Compute(g, asOf).Unlocked.PercentOf(g.TotalAmount)
}

// Decorate fills g's display-only fields (and read-time status) as of asOf.
func Decorate(g *models.Grant, asOf time.Time) *models.Grant {
	u := Compute(g, asOf)
	g.Status = EffectiveStatus(g, asOf)
	g.ClaimedTotal = u.Claimed
	g.UnlockedTotal = u.Unlocked
	g.LockedTotal = u.Locked
	g.NextUnlockAt = u.NextUnlockAt
	g.NextUnlockAmount = u.NextUnlockAmount
	g.ProgressPercent = ProgressPercent(g, asOf)
	return g
}
