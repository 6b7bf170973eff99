// models/amount.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Amount is a token quantity in the smallest denomination (e.g. wei for an 18-decimal token).
// All vesting arithmetic happens on Amount; whole-token decimals only exist at the edges.
type Amount struct {
	v uint256.Int
}

var (
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrAmountOverflow = errors.New("amount exceeds 256 bits")
)

// MaxGrantAmount caps a single grant so sums over any realistic ledger never wrap.
var MaxGrantAmount = func() Amount {
	var a Amount
	a.v.Lsh(uint256.NewInt(1), 192)
	return a
}()

func NewAmount(units uint64) Amount {
	var a Amount
	a.v.SetUint64(units)
	return a
}

// AmountFromUnits parses a base-10 string of smallest units.
func AmountFromUnits(s string) (Amount, error) {
	var a Amount
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return a, ErrNegativeAmount
	}
	if err := a.v.SetFromDecimal(s); err != nil {
		return a, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return a, nil
}

// ParseTokenAmount converts a whole-token decimal string ("12.5") into smallest units,
// truncating anything below the smallest unit.
func ParseTokenAmount(s string, decimals int32) (Amount, error) {
	var a Amount
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return a, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return a, ErrNegativeAmount
	}
	units := d.Shift(decimals).Truncate(0)
	v, overflow := uint256.FromBig(units.BigInt())
	if overflow {
		return a, ErrAmountOverflow
	}
	a.v = *v
	return a, nil
}

// FormatTokenAmount renders an amount as whole tokens, e.g. 1500000000000000000 -> "1.5".
func FormatTokenAmount(a Amount, decimals int32) string {
	return decimal.NewFromBigInt(a.v.ToBig(), -decimals).String()
}

func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub saturates at zero.
func (a Amount) Sub(b Amount) Amount {
	var out Amount
	if a.v.Lt(&b.v) {
		return out
	}
	out.v.Sub(&a.v, &b.v)
	return out
}

// MulDiv returns floor(a * num / den). den must be non-zero.
func (a Amount) MulDiv(num, den uint64) Amount {
	var out Amount
	if den == 0 {
		panic("models: MulDiv by zero")
	}
	res, _ := new(uint256.Int).MulDivOverflow(&a.v, uint256.NewInt(num), uint256.NewInt(den))
	out.v = *res
	return out
}

// MulDivUp returns ceil(a * num / den). ok is false when den is zero or the result
// does not fit in a uint64.
func (a Amount) MulDivUp(num uint64, den Amount) (uint64, bool) {
	if den.IsZero() {
		return 0, false
	}
	n := uint256.NewInt(num)
	q, overflow := new(uint256.Int).MulDivOverflow(&a.v, n, &den.v)
	if overflow {
		return 0, false
	}
	if !new(uint256.Int).MulMod(&a.v, n, &den.v).IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, false
	}
	return q.Uint64(), true
}

// PercentOf returns floor(a * 100 / total), or 100 when total is zero.
func (a Amount) PercentOf(total Amount) int {
	if total.IsZero() {
		return 100
	}
	res, _ := new(uint256.Int).MulDivOverflow(&a.v, uint256.NewInt(100), &total.v)
	return int(res.Uint64())
}

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

func (a Amount) String() string { return a.v.Dec() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts either a quoted unit string or a bare integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = Amount{}
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	parsed, err := AmountFromUnits(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores amounts as decimal text so no SQL dialect rounds them.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := AmountFromUnits(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := AmountFromUnits(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		if v < 0 {
			return ErrNegativeAmount
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}
}
