package models

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenAmount(t *testing.T) {
	a, err := ParseTokenAmount("200", 18)
	require.NoError(t, err)
	assert.Equal(t, "200000000000000000000", a.String())

	a, err = ParseTokenAmount("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", a.String())

	// below the smallest unit is truncated
	a, err = ParseTokenAmount("0.0000000000000000019", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", a.String())

	a, err = ParseTokenAmount("35000000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "35000000000"+"000000000000000000", a.String())
	assert.Equal(t, "35000000000", FormatTokenAmount(a, 18))

	_, err = ParseTokenAmount("-1", 18)
	require.True(t, errors.Is(err, ErrNegativeAmount))

	_, err = ParseTokenAmount("ten", 18)
	require.Error(t, err)
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(1000)
	b := NewAmount(250)

	assert.Equal(t, "1250", a.Add(b).String())
	assert.Equal(t, "750", a.Sub(b).String())
	assert.True(t, b.Sub(a).IsZero(), "sub saturates at zero")
	assert.Equal(t, "333", a.MulDiv(1, 3).String())
	assert.Equal(t, 25, b.PercentOf(a))
	assert.Equal(t, 100, NewAmount(0).PercentOf(NewAmount(0)))
	assert.Equal(t, 1, a.Cmp(b))
	assert.True(t, a.Equal(NewAmount(1000)))

	big, err := AmountFromUnits("5000000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1250000000000000000000000000", big.MulDiv(25, 100).String())
}

func TestAmountJSON(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"123456789012345678901234567890","b":42}`), &v))
	assert.Equal(t, "123456789012345678901234567890", v.A.String())
	assert.Equal(t, "42", v.B.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"123456789012345678901234567890","b":"42"}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a":"-5"}`), &v))
}

func TestAmountSQL(t *testing.T) {
	a := NewAmount(987654321)
	val, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, "987654321", val)

	var back Amount
	require.NoError(t, back.Scan([]byte("987654321")))
	assert.True(t, back.Equal(a))
	require.NoError(t, back.Scan(int64(7)))
	assert.Equal(t, "7", back.String())
	require.Error(t, back.Scan(3.14))
}

func TestCampaignTypeLabel(t *testing.T) {
	assert.Equal(t, "Referral", CampaignTypeReferral.Label())
	assert.True(t, CampaignTypePresale.Valid())
	assert.False(t, CampaignType("nft").Valid())
}

func TestCampaignTypeLabelConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := CampaignTypeReferral.Label(); got != "Referral" {
					t.Errorf("label = %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMulDivUp(t *testing.T) {
	k, ok := NewAmount(1).MulDivUp(1200, NewAmount(3))
	require.True(t, ok)
	assert.Equal(t, uint64(400), k)

	k, ok = NewAmount(2).MulDivUp(5, NewAmount(2))
	require.True(t, ok)
	assert.Equal(t, uint64(5), k)

	k, ok = NewAmount(1).MulDivUp(5, NewAmount(2))
	require.True(t, ok)
	assert.Equal(t, uint64(3), k)

	_, ok = NewAmount(1).MulDivUp(5, Amount{})
	assert.False(t, ok)

	huge, err := ParseTokenAmount("1000000000000", 18)
	require.NoError(t, err)
	_, ok = huge.MulDivUp(1200, NewAmount(1))
	assert.False(t, ok, "result does not fit in uint64")
}
