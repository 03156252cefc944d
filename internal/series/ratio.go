package series

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// Ratio derives a single column as numerator / denominator
type Ratio struct {
	def         RatioDefinition
	numerator   *Source
	denominator *Source
}

// NewRatio creates a derived series from two single-column sources
func NewRatio(def RatioDefinition, numerator, denominator *Source) *Ratio {
	return &Ratio{def: def, numerator: numerator, denominator: denominator}
}

func (r *Ratio) Name() string {
	return r.def.Name
}

func (r *Ratio) Columns() []string {
	return []string{r.def.Name}
}

func (r *Ratio) Fetch(ctx context.Context, start, end time.Time) (*table.Frame, error) {
	num, err := r.numerator.FetchLagged(ctx, start, end, r.def.LagHours)
	if err != nil {
		return nil, fmt.Errorf("%s numerator: %w", r.def.Name, err)
	}
	den, err := r.denominator.FetchLagged(ctx, start, end, r.def.LagHours)
	if err != nil {
		return nil, fmt.Errorf("%s denominator: %w", r.def.Name, err)
	}
	return Divide(r.def.Name, num, den)
}

// Divide returns the element-wise ratio of the first column of num and den.
func Divide(name string, num, den *table.Frame) (*table.Frame, error) {
	if !num.SameIndex(den) {
		return nil, &IndexMismatchError{Series: name, LeftLen: num.Len(), RightLen: den.Len()}
	}
	numCols, denCols := num.Columns(), den.Columns()
	if len(numCols) == 0 || len(denCols) == 0 {
		return nil, fmt.Errorf("%s: constituent series have no columns", name)
	}

	a := num.Column(numCols[0])
	b := den.Column(denCols[0])
	out := make([]float64, num.Len())
	for i := range out {
		if b[i] == 0 || math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = a[i] / b[i]
	}

	frame := table.NewFrame(num.Index)
	if err := frame.Set(name, out); err != nil {
		return nil, err
	}
	return frame, nil
}
