package series

import (
	"fmt"
	"time"
)

// Catalog resolves series names to fetchers
type Catalog struct {
	sources map[string]*Source
	ratios  map[string]RatioDefinition
}

// NewCatalog builds sources for every definition. Ratio constituents must
// name plain definitions in the same catalog.
func NewCatalog(defs []Definition, ratios []RatioDefinition, client ItemFetcher, loc *time.Location, opts ...SourceOption) (*Catalog, error) {
	c := &Catalog{
		sources: make(map[string]*Source),
		ratios:  make(map[string]RatioDefinition),
	}
	for _, def := range defs {
		if def.Name == "" || def.URL == "" {
			return nil, fmt.Errorf("series definition needs a name and a url: %+v", def)
		}
		if len(def.Columns) == 0 {
			return nil, fmt.Errorf("series %s maps no columns", def.Name)
		}
		if _, dup := c.sources[def.Name]; dup {
			return nil, fmt.Errorf("duplicate series %s", def.Name)
		}
		c.sources[def.Name] = NewSource(def, client, loc, opts...)
	}
	for _, r := range ratios {
		for _, part := range []string{r.Numerator, r.Denominator} {
			src, ok := c.sources[part]
			if !ok {
				return nil, fmt.Errorf("ratio %s references unknown series %s", r.Name, part)
			}
			if len(src.def.Columns) != 1 {
				return nil, fmt.Errorf("ratio %s needs single-column series, %s has %d", r.Name, part, len(src.def.Columns))
			}
		}
		if _, dup := c.sources[r.Name]; dup {
			return nil, fmt.Errorf("ratio %s shadows a series of the same name", r.Name)
		}
		c.ratios[r.Name] = r
	}
	return c, nil
}

// Fetchers returns the fetchers for names, in order
func (c *Catalog) Fetchers(names []string) ([]Fetcher, error) {
	fetchers := make([]Fetcher, 0, len(names))
	for _, name := range names {
		if src, ok := c.sources[name]; ok {
			fetchers = append(fetchers, src)
			continue
		}
		if r, ok := c.ratios[name]; ok {
			fetchers = append(fetchers, NewRatio(r, c.sources[r.Numerator], c.sources[r.Denominator]))
			continue
		}
		return nil, fmt.Errorf("unknown series %s", name)
	}
	return fetchers, nil
}
