package exchange

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fakeRates struct {
	rates map[string]float64
	calls map[string]int
}

func (f *fakeRates) Rate(_ context.Context, day time.Time, base, target string) (float64, error) {
	key := day.Format("2006-01-02")
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[key]++
	rate, ok := f.rates[key]
	if !ok {
		return 0, errors.New("service unavailable")
	}
	return rate, nil
}

func hours(start time.Time, n int) []time.Time {
	index := make([]time.Time, n)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return index
}

func TestResolveImpliedFactor(t *testing.T) {
	index := hours(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	base := []float64{3000, 2000, 1500}
	target := []float64{100, 50, 45}

	rates := &fakeRates{}
	got := NewResolver(rates, "TRY", "USD").Resolve(context.Background(), index, base, target)
	for i := range got {
		if got[i] != target[i]/base[i] {
			t.Errorf("row %d: want %v got %v", i, target[i]/base[i], got[i])
		}
	}
	if len(rates.calls) != 0 {
		t.Errorf("fallback should not be used, got %v", rates.calls)
	}
}

func TestResolveZeroPriceUsesCachedFallback(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := hours(start, 48)
	base := make([]float64, 48)
	target := make([]float64, 48)
	for i := range base {
		base[i], target[i] = 2000, 60
	}
	// a zero-price day
	for i := 24; i < 48; i++ {
		base[i], target[i] = 0, 0
	}

	rates := &fakeRates{rates: map[string]float64{"2024-01-02": 0.033}}
	got := NewResolver(rates, "TRY", "USD").Resolve(context.Background(), index, base, target)

	for i := 24; i < 48; i++ {
		if got[i] != 0.033 {
			t.Fatalf("row %d: expected fallback rate, got %v", i, got[i])
		}
	}
	if rates.calls["2024-01-02"] != 1 {
		t.Errorf("expected one lookup for the day, got %d", rates.calls["2024-01-02"])
	}
}

func TestResolveFailedLookupForwardFills(t *testing.T) {
	index := hours(time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC), 4)
	base := []float64{2000, 2000, math.NaN(), 0}
	target := []float64{60, 70, 50, 0}

	rates := &fakeRates{}
	r := NewResolver(rates, "TRY", "USD")
	got := r.Resolve(context.Background(), index, base, target)

	want := []float64{0.03, 0.035, 0.035, 0.035}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: want %v got %v", i, want[i], got[i])
		}
	}
	if rates.calls["2024-01-02"] != 1 {
		t.Errorf("failed day should be looked up once, got %d", rates.calls["2024-01-02"])
	}
	if r.CachedDays() != 1 {
		t.Errorf("expected 1 cached day, got %d", r.CachedDays())
	}
}

func TestResolveLeadingGapWithoutPriorStaysUndefined(t *testing.T) {
	index := hours(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	got := NewResolver(&fakeRates{}, "TRY", "USD").Resolve(context.Background(), index, nil, []float64{1, 2, 3})
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("row %d should be undefined, got %v", i, v)
		}
	}
}

func TestForwardFill(t *testing.T) {
	values := []float64{math.NaN(), 1, math.NaN(), math.NaN(), 2, math.NaN()}
	ForwardFill(values)
	if !math.IsNaN(values[0]) {
		t.Errorf("leading value should stay undefined")
	}
	for i, want := range []float64{1, 1, 1, 2, 2} {
		if values[i+1] != want {
			t.Errorf("index %d: want %v got %v", i+1, want, values[i+1])
		}
	}
}
