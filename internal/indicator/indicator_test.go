package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/models"
)

func day(n int) models.Date {
	return models.NewDate(2025, time.June, 1).AddDays(n)
}

func obsFromCloses(closes ...float64) []models.Observation {
	obs := make([]models.Observation, len(closes))
	for i, c := range closes {
		obs[i] = models.Observation{Date: day(i), Close: c, Volume: 100}
	}
	return obs
}

func TestWMAHandComputed(t *testing.T) {
	wma, err := NewWMA(3)
	require.NoError(t, err)

	// (10*1 + 11*2 + 12*3) / (1+2+3) = 68/6
	vals, err := wma.ComputeWindow(obsFromCloses(10, 11, 12))
	require.NoError(t, err)
	assert.InDelta(t, 68.0/6.0, vals["wma_3"], 1e-12)
}

func TestWMAWrongWindowSize(t *testing.T) {
	wma, err := NewWMA(3)
	require.NoError(t, err)
	_, err = wma.ComputeWindow(obsFromCloses(10, 11))
	assert.Error(t, err)
}

func TestEMAHandComputed(t *testing.T) {
	ema, err := NewEMA(3)
	require.NoError(t, err)

	// alpha = 0.5: seed 10, then 10.5, then 11.25
	vals, err := ema.ComputeWindow(obsFromCloses(10, 11, 12))
	require.NoError(t, err)
	assert.InDelta(t, 11.25, vals["ema_3"], 1e-12)
}

func TestVolatilityHandComputed(t *testing.T) {
	vol, err := NewVolatility(2, false)
	require.NoError(t, err)
	require.Equal(t, 3, vol.Window())

	// returns: +10%, -10%; mean 0; sample std = sqrt(0.02/1)
	vals, err := vol.ComputeWindow(obsFromCloses(100, 110, 99))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.02), vals["vol_2"], 1e-12)
}

func TestVolatilityAnnualized(t *testing.T) {
	plain, err := NewVolatility(2, false)
	require.NoError(t, err)
	annual, err := NewVolatility(2, true)
	require.NoError(t, err)

	window := obsFromCloses(100, 110, 99)
	p, err := plain.ComputeWindow(window)
	require.NoError(t, err)
	a, err := annual.ComputeWindow(window)
	require.NoError(t, err)
	assert.InDelta(t, p["vol_2"]*math.Sqrt(252), a["vol_2"], 1e-12)
}

func TestVolatilityZeroClose(t *testing.T) {
	vol, err := NewVolatility(2, false)
	require.NoError(t, err)
	window := obsFromCloses(100, 110, 99)
	window[0].Close = 0
	_, err = vol.ComputeWindow(window)
	assert.Error(t, err)
}

func TestVMAHandComputed(t *testing.T) {
	vma, err := NewVMA(2)
	require.NoError(t, err)

	window := []models.Observation{
		{Date: day(0), Close: 10, Volume: 100},
		{Date: day(1), Close: 11, Volume: 200},
	}
	vals, err := vma.ComputeWindow(window)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, vals["vma_2"], 1e-12)
}

func TestOBVAccumulation(t *testing.T) {
	obv := NewOBV()
	obs := []models.Observation{
		{Date: day(0), Close: 10, Volume: 5},
		{Date: day(1), Close: 11, Volume: 6}, // up: +6
		{Date: day(2), Close: 11, Volume: 7}, // flat: unchanged
		{Date: day(3), Close: 10, Volume: 8}, // down: -8
	}

	vals := obv.Seed(obs[0])
	assert.Equal(t, 0.0, vals["obv"])

	vals = obv.Step(vals, obs[0], obs[1])
	assert.Equal(t, 6.0, vals["obv"])

	vals = obv.Step(vals, obs[1], obs[2])
	assert.Equal(t, 6.0, vals["obv"])

	vals = obv.Step(vals, obs[2], obs[3])
	assert.Equal(t, -2.0, vals["obv"])
}

func TestDerivedApply(t *testing.T) {
	diff := Derived{Name: "wma_diff_5_20", Minuend: "wma_5", Subtrahend: "wma_20"}
	pct := Derived{Name: "wma_diff_5_20_pct", Minuend: "wma_5", Subtrahend: "wma_20", Percent: true}

	v := models.Values{"wma_5": 10.1234567, "wma_20": 10.0}
	diff.Apply(v)
	pct.Apply(v)
	assert.Equal(t, 0.123457, v["wma_diff_5_20"])   // rounded to 6 decimals
	assert.Equal(t, 1.2346, v["wma_diff_5_20_pct"]) // rounded to 4 decimals
}

func TestDerivedSkipsMissingInputs(t *testing.T) {
	d := Derived{Name: "diff", Minuend: "wma_5", Subtrahend: "wma_20"}
	v := models.Values{"wma_5": 10.0}
	d.Apply(v)
	_, ok := v["diff"]
	assert.False(t, ok)
}

func TestDerivedPercentZeroDenominator(t *testing.T) {
	d := Derived{Name: "pct", Minuend: "a", Subtrahend: "b", Percent: true}
	v := models.Values{"a": 1.0, "b": 0.0}
	d.Apply(v)
	_, ok := v["pct"]
	assert.False(t, ok)
}

func testSet(t *testing.T) *Set {
	t.Helper()
	set, err := BuildSet([]common.IndicatorConfig{
		{Family: "wma", Periods: []int{5, 10}},
		{Family: "obv"},
	}, []common.DerivedConfig{
		{Name: "wma_diff_5_10", Minuend: "wma_5", Subtrahend: "wma_10"},
	})
	require.NoError(t, err)
	return set
}

func TestSetFieldAlignment(t *testing.T) {
	set := testSet(t)
	require.Equal(t, 10, set.MaxWindow())

	obs := make([]models.Observation, 30)
	for i := range obs {
		obs[i] = models.Observation{Date: day(i), Close: 10 + float64(i)*0.1, Volume: 100}
	}

	points, err := set.Evaluate(obs)
	require.NoError(t, err)
	require.Len(t, points, 30)

	count := func(field string) int {
		n := 0
		for _, p := range points {
			if _, ok := p.Values[field]; ok {
				n++
			}
		}
		return n
	}

	// Each window field appears exactly once its window is first full;
	// earlier positions omit the field entirely.
	assert.Equal(t, 26, count("wma_5"))
	assert.Equal(t, 21, count("wma_10"))
	assert.Equal(t, 30, count("obv"))
	// The derived field needs both inputs present.
	assert.Equal(t, 21, count("wma_diff_5_10"))

	_, ok := points[3].Values["wma_5"]
	assert.False(t, ok)
	_, ok = points[4].Values["wma_5"]
	assert.True(t, ok)
}

func TestEvaluateFromMatchesFullEvaluation(t *testing.T) {
	set := testSet(t)

	obs := make([]models.Observation, 25)
	for i := range obs {
		obs[i] = models.Observation{Date: day(i), Close: 10 + math.Sin(float64(i)), Volume: 100 + float64(i)}
	}

	full, err := set.Evaluate(obs)
	require.NoError(t, err)

	for _, split := range []int{10, 15, 24} {
		partial, err := set.EvaluateFrom(obs, split, full[split-1].Values)
		require.NoError(t, err)
		require.Len(t, partial, len(obs)-split)

		for i, p := range partial {
			want := full[split+i]
			require.Equal(t, want.Date, p.Date)
			require.Equal(t, len(want.Values), len(p.Values))
			for field, wv := range want.Values {
				assert.InDelta(t, wv, p.Values[field], 1e-12, "field %s at %s", field, p.Date)
			}
		}
	}
}

func TestEvaluateFromMissingSeed(t *testing.T) {
	set := testSet(t)
	obs := obsFromCloses(10, 11, 12, 13, 14)
	_, err := set.EvaluateFrom(obs, 2, models.Values{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed")
}

func TestSetHash(t *testing.T) {
	a := testSet(t)
	b := testSet(t)
	assert.Equal(t, a.Hash(), b.Hash())

	changed, err := BuildSet([]common.IndicatorConfig{
		{Family: "wma", Periods: []int{5, 20}},
		{Family: "obv"},
	}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), changed.Hash())
}

func TestSetWarmUp(t *testing.T) {
	set := testSet(t)
	assert.Equal(t, 9, set.WarmUp())

	obvOnly, err := BuildSet([]common.IndicatorConfig{{Family: "obv"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, obvOnly.WarmUp())
}

func TestBuildSetRejectsBadConfig(t *testing.T) {
	_, err := BuildSet(nil, nil)
	assert.Error(t, err)

	_, err = BuildSet([]common.IndicatorConfig{{Family: "sma", Periods: []int{5}}}, nil)
	assert.Error(t, err)

	_, err = BuildSet([]common.IndicatorConfig{
		{Family: "wma", Periods: []int{5, 5}},
	}, nil)
	assert.Error(t, err, "duplicate periods produce duplicate fields")

	_, err = BuildSet([]common.IndicatorConfig{
		{Family: "wma", Periods: []int{5}},
	}, []common.DerivedConfig{
		{Name: "diff", Minuend: "wma_5", Subtrahend: "wma_20"},
	})
	assert.Error(t, err, "derived field references unknown input")
}
