package series

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/epias"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

func TestDivide(t *testing.T) {
	start := day(2024, 1, 1, 0)
	num := table.NewHourlyFrame(start, start.Add(2*time.Hour))
	num.Set("ForecastedDemand", []float64{10, 20, math.NaN()})
	den := table.NewHourlyFrame(start, start.Add(2*time.Hour))
	den.Set("ForecastedSupply", []float64{5, 0, 4})

	out, err := Divide("ForecastedDemandSupply", num, den)
	if err != nil {
		t.Fatalf("divide: %v", err)
	}
	got := out.Column("ForecastedDemandSupply")
	if got[0] != 2 {
		t.Errorf("row 0: want 2 got %v", got[0])
	}
	if !math.IsNaN(got[1]) || !math.IsNaN(got[2]) {
		t.Errorf("rows 1 and 2 should be undefined: %v", got)
	}
}

func TestDivideIndexMismatch(t *testing.T) {
	start := day(2024, 1, 1, 0)
	num := table.NewHourlyFrame(start, start.Add(2*time.Hour))
	num.AddEmpty("a")
	den := table.NewHourlyFrame(start, start.Add(3*time.Hour))
	den.AddEmpty("b")

	_, err := Divide("ratio", num, den)
	var mismatch *IndexMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected IndexMismatchError, got %v", err)
	}
}

func TestCatalogBuildsRatio(t *testing.T) {
	client := &fakeClient{respond: func(url string, start, end time.Time) []epias.Item {
		if strings.HasSuffix(url, "lep") {
			return hourlyItems(start, end, "lep", 200)
		}
		return hourlyItems(start, end, "toplam", 100)
	}}
	defs := []Definition{
		{Name: "ForecastedDemand", URL: "http://epias/lep", LagHours: 24,
			Columns: []ColumnMapping{{Key: "lep", Name: "ForecastedDemand"}}},
		supplyDefinition(),
	}
	ratios := []RatioDefinition{{Name: "ForecastedDemandSupply", Numerator: "ForecastedDemand", Denominator: "ForecastedSupply", LagHours: 24}}

	catalog, err := NewCatalog(defs, ratios, client, istanbul)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	fetchers, err := catalog.Fetchers([]string{"ForecastedDemandSupply"})
	if err != nil {
		t.Fatalf("fetchers: %v", err)
	}

	frame, err := fetchers[0].Fetch(context.Background(), day(2024, 1, 1, 0), day(2024, 1, 1, 1))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got := frame.Column("ForecastedDemandSupply")
	if got[0] != 2 || got[1] != 201.0/101.0 {
		t.Errorf("unexpected ratios %v", got)
	}
	for _, req := range client.requests {
		if !req.start.Equal(day(2023, 12, 31, 0)) {
			t.Errorf("ratio lag not applied: %s", req.start)
		}
	}

	if _, err := catalog.Fetchers([]string{"Unknown"}); err == nil {
		t.Error("expected error for unknown series")
	}
}

func TestCatalogRejectsUnknownRatioPart(t *testing.T) {
	_, err := NewCatalog([]Definition{supplyDefinition()},
		[]RatioDefinition{{Name: "r", Numerator: "missing", Denominator: "ForecastedSupply"}},
		&fakeClient{}, istanbul)
	if err == nil {
		t.Fatal("expected error")
	}
}
