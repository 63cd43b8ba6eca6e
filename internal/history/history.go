// Package history turns fetched nutrition records into the display state of
// the history screen: a loading skeleton while a fetch is in flight, then
// the most recent record highlighted above the rest.
//
// Each screen visit starts a new fetch cycle identified by a generation.
// Only the latest cycle may change state, so a slow response from an
// earlier visit can never overwrite a newer one.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/vbonduro/foodguard/internal/domain"
)

// PlaceholderCount is the number of skeleton entries shown while loading.
const PlaceholderCount = 5

// TimeLayout renders e.g. "Wed, 15 November • 05:13 am".
const TimeLayout = "Mon, 2 January • 03:04 pm"

// DefaultZone is the zone timestamps are displayed in.
const DefaultZone = "Asia/Jakarta"

// FetchErrorMessage is the generic notice recorded when a fetch fails.
const FetchErrorMessage = "Failed to load your nutrition history. Please try again."

// Fetcher is satisfied by foodapi.Client.
type Fetcher interface {
	FetchNutritions(ctx context.Context) ([]domain.NutritionRecord, error)
}

// Entry is one display-ready history card.
type Entry struct {
	Record        domain.NutritionRecord
	Time          string
	Carbohydrates float64
	Fats          float64
	Sugar         float64
}

// View is a snapshot of the composer. While Loading, only Placeholders is
// populated.
type View struct {
	Loading      bool
	Generation   uint64
	Placeholders []int
	Highlighted  *Entry
	Remaining    []Entry
	Err          string
}

type Composer struct {
	fetcher Fetcher
	loc     *time.Location

	mu      sync.Mutex
	gen     uint64
	loading bool
	records []domain.NutritionRecord
	errMsg  string
}

// New returns a composer that displays times in loc. Until the first fetch
// completes the composer reports loading.
func New(fetcher Fetcher, loc *time.Location) *Composer {
	return &Composer{fetcher: fetcher, loc: loc, loading: true}
}

// Begin starts a fetch cycle and returns its generation.
func (c *Composer) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.loading = true
	return c.gen
}

// Complete applies the outcome of cycle gen. It reports false and changes
// nothing when a newer cycle has begun. On error the previous records are
// kept and a generic message is recorded.
func (c *Composer) Complete(gen uint64, records []domain.NutritionRecord, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		slog.Debug("discarding stale history result", "generation", gen, "latest", c.gen)
		return false
	}

	c.loading = false
	if err != nil {
		c.errMsg = FetchErrorMessage
		return true
	}
	c.records = records
	c.errMsg = ""
	return true
}

// Load fetches and completes cycle gen, then returns the current view.
func (c *Composer) Load(ctx context.Context, gen uint64) View {
	records, err := c.fetcher.FetchNutritions(ctx)
	if err != nil {
		slog.Error("failed to fetch nutrition history", "generation", gen, "error", err)
	}
	c.Complete(gen, records, err)
	return c.View()
}

// Refresh runs a whole fetch cycle.
func (c *Composer) Refresh(ctx context.Context) View {
	return c.Load(ctx, c.Begin())
}

func (c *Composer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Loading: c.loading, Generation: c.gen, Err: c.errMsg}
	if c.loading {
		v.Placeholders = make([]int, PlaceholderCount)
		for i := range v.Placeholders {
			v.Placeholders[i] = i
		}
		return v
	}

	if len(c.records) == 0 {
		return v
	}
	first := c.entry(c.records[0])
	v.Highlighted = &first
	v.Remaining = make([]Entry, 0, len(c.records)-1)
	for _, r := range c.records[1:] {
		v.Remaining = append(v.Remaining, c.entry(r))
	}
	return v
}

// Lookup returns the record with id from the current list.
func (c *Composer) Lookup(id string) (domain.NutritionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.ID == id {
			return r, true
		}
	}
	return domain.NutritionRecord{}, false
}

// Records returns a copy of the current list.
func (c *Composer) Records() []domain.NutritionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.NutritionRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Composer) Location() *time.Location {
	return c.loc
}

func (c *Composer) entry(r domain.NutritionRecord) Entry {
	formatted, err := FormatTime(r.CreatedAt, c.loc)
	if err != nil {
		slog.Warn("unparseable record timestamp", "id", r.ID, "error", err)
	}
	return Entry{
		Record:        r,
		Time:          formatted,
		Carbohydrates: domain.Amount(r.Carbohydrates),
		Fats:          domain.Amount(r.Fats),
		Sugar:         domain.Amount(r.Sugar),
	}
}

// FormatTime converts an epoch-millisecond string to TimeLayout in loc.
func FormatTime(createdAt string, loc *time.Location) (string, error) {
	t, err := domain.ParseEpochMillis(createdAt)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(TimeLayout), nil
}

// LoadLocation resolves a zone name, falling back to DefaultZone when name
// is empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return loc, nil
}
