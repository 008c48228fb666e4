package bigmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return v
}

func TestMinMaxBig(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"0", "0"},
		{"1", "2"},
		{"-5", "3"},
		{"1000000000000000000000000", "-1"},
		{"-7", "-7"},
	}

	for _, tc := range cases {
		a, b := bi(tc.a), bi(tc.b)
		min, max := MinBig(a, b), MaxBig(a, b)

		// min+max == a+b and each result is one of the inputs
		sum := new(big.Int).Add(min, max)
		assert.Zero(t, sum.Cmp(new(big.Int).Add(a, b)), "a=%s b=%s", tc.a, tc.b)
		assert.True(t, min.Cmp(a) == 0 || min.Cmp(b) == 0)
		assert.True(t, max.Cmp(a) == 0 || max.Cmp(b) == 0)
		assert.True(t, min.Cmp(max) <= 0)
	}
}

func TestMinBigDoesNotAliasInputs(t *testing.T) {
	a, b := big.NewInt(1), big.NewInt(2)
	m := MinBig(a, b)
	m.SetInt64(99)
	assert.EqualValues(t, 1, a.Int64())
}

func TestClampPositive(t *testing.T) {
	assert.Zero(t, ClampPositive(bi("-100")).Sign())
	assert.Zero(t, ClampPositive(bi("0")).Sign())
	assert.Zero(t, ClampPositive(bi("42")).Cmp(bi("42")))
}

func TestReduceByPrecisionBuffer(t *testing.T) {
	inputs := []string{"0", "1", "99999999", "100000000", "1000000000000000000", "123456789123456789123456789"}
	for _, in := range inputs {
		x := bi(in)
		got := ReduceByPrecisionBuffer(x)

		require.True(t, got.Sign() >= 0)
		require.True(t, got.Cmp(x) <= 0, "result must not exceed input")

		// relative error bounded by x / 1e7
		diff := new(big.Int).Sub(x, got)
		bound := new(big.Int).Div(x, big.NewInt(10_000_000))
		assert.True(t, diff.Cmp(bound) <= 0, "x=%s diff=%s bound=%s", in, diff, bound)
	}
}

func TestApplyGasSlippage(t *testing.T) {
	got := ApplyGasSlippage(big.NewInt(100_000))
	assert.EqualValues(t, 120_000, got.Int64())

	assert.EqualValues(t, uint64(120_000), GasLimitWithSlippage(100_000))
}

func TestReduceByMaxSlippage(t *testing.T) {
	got := ReduceByMaxSlippage(bi("1000000000000"))
	assert.Equal(t, "999999000000", got.String())
}

func TestProcessInput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int
		wantOK   bool
		wantDisp string
		wantRaw  string
	}{
		{"simple", "1.5", 18, true, "1.5", "1500000000000000000"},
		{"integer", "2", 6, true, "2", "2000000"},
		{"comma separator", "0,25", 8, true, "0.25", "25000000"},
		{"trailing dot", "3.", 18, true, "3", "3000000000000000000"},
		{"empty", "", 18, false, "", ""},
		{"lone dot", ".", 18, false, "", ""},
		{"negative", "-1", 18, false, "", ""},
		{"garbage", "12a4", 18, false, "", ""},
		{"excess precision truncated", "1.1234567", 6, true, "1.123456", "1123456"},
		{"zero", "0", 18, true, "0", "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			disp, amount, ok := ProcessInput(tc.raw, tc.decimals)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				assert.Nil(t, amount)
				return
			}
			assert.Equal(t, tc.wantDisp, disp)
			assert.Equal(t, tc.wantRaw, amount.String())
		})
	}
}

func TestProcessInputRoundTrip(t *testing.T) {
	raws := []string{"1", "1500000000000000000", "123456", "999999999999999999999"}
	for _, r := range raws {
		amount := bi(r)
		formatted := FormatUnits(amount, 18)
		_, parsed, ok := ProcessInput(formatted, 18)
		require.True(t, ok, "formatted=%s", formatted)
		assert.Zero(t, parsed.Cmp(amount), "round trip mismatch for %s", r)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(bi("1500000000000000000"), 18))
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.InDelta(t, 2.5, FormatUnitsFloat(bi("2500000"), 6), 1e-9)
}
