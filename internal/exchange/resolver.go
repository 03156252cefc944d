package exchange

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/metrics"
)

// RateService looks up the base->target exchange rate for a calendar day
type RateService interface {
	Rate(ctx context.Context, day time.Time, base, target string) (float64, error)
}

type dayRate struct {
	rate float64
	ok   bool
}

// Resolver computes per-timestamp conversion factors. One resolver serves a
// single pipeline run; its day cache lives as long as the resolver.
type Resolver struct {
	rates  RateService
	base   string
	target string
	cache  map[string]dayRate
}

// NewResolver creates a resolver converting base-currency prices into target
func NewResolver(rates RateService, base, target string) *Resolver {
	return &Resolver{
		rates:  rates,
		base:   base,
		target: target,
		cache:  make(map[string]dayRate),
	}
}

// Resolve returns target/base for every row. Rows where that is undefined get
// the day's rate from the rate service, and whatever is still undefined is
// forward filled. A nil slice counts as entirely undefined.
func (r *Resolver) Resolve(ctx context.Context, index []time.Time, basePrice, targetPrice []float64) []float64 {
	factors := make([]float64, len(index))
	for i := range index {
		factors[i] = impliedFactor(at(basePrice, i), at(targetPrice, i))
	}

	for i, ts := range index {
		if !math.IsNaN(factors[i]) {
			continue
		}
		if rate, ok := r.dayRate(ctx, ts); ok {
			factors[i] = rate
		}
	}

	ForwardFill(factors)
	return factors
}

// CachedDays returns the number of days looked up so far
func (r *Resolver) CachedDays() int {
	return len(r.cache)
}

func (r *Resolver) dayRate(ctx context.Context, ts time.Time) (float64, bool) {
	key := ts.Format("2006-01-02")
	if cached, ok := r.cache[key]; ok {
		return cached.rate, cached.ok
	}
	if r.rates == nil {
		r.cache[key] = dayRate{}
		return 0, false
	}

	rate, err := r.rates.Rate(ctx, ts, r.base, r.target)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		if err != nil {
			log.Printf("Exchange rate %s->%s for %s unavailable: %v, skipping", r.base, r.target, key, err)
		}
		metrics.ObserveRateLookup(false)
		r.cache[key] = dayRate{}
		return 0, false
	}
	metrics.ObserveRateLookup(true)
	r.cache[key] = dayRate{rate: rate, ok: true}
	return rate, true
}

func impliedFactor(base, target float64) float64 {
	if math.IsNaN(base) || math.IsNaN(target) || base == 0 {
		return math.NaN()
	}
	return target / base
}

func at(values []float64, i int) float64 {
	if i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

// ForwardFill replaces each NaN with the most recent preceding defined value.
func ForwardFill(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
}
