// Package pattern derives shift days and statistics from a team's
// repeating rotation. Everything here is pure and safe for concurrent use.
package pattern

import (
	"fmt"
	"sync"

	"shiftcal/internal/model"
)

// Resolution is the shift that applies to a single date.
type Resolution struct {
	Code string
	// CycleDay is zero-based.
	CycleDay int
	// Window is nil on free days.
	Window *model.TimeWindow
}

// ResolveShift maps date to its position in st's rotation anchored at anchor.
// Dates before the anchor wrap around with a non-negative modulo.
func ResolveShift(date model.Date, st model.ShiftTypeDefinition, anchor model.Date) (Resolution, error) {
	if err := CheckDate(date); err != nil {
		return Resolution{}, err
	}
	n := st.CycleLength
	if n <= 0 || len(st.Pattern) != n {
		return Resolution{}, fmt.Errorf("%w: shift type %q has cycle length %d and %d pattern entries",
			ErrInvalidPatternConfig, st.ID, n, len(st.Pattern))
	}

	cycleDay := ((date.DaysSince(anchor) % n) + n) % n
	res := Resolution{
		Code:     st.Pattern[cycleDay],
		CycleDay: cycleDay,
	}
	if w, ok := st.Window(res.Code); ok {
		res.Window = &w
	}
	return res, nil
}

// Resolver abstracts ResolveShift so callers can plug in a cache.
type Resolver interface {
	Resolve(date model.Date, st model.ShiftTypeDefinition, anchor model.Date) (Resolution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(model.Date, model.ShiftTypeDefinition, model.Date) (Resolution, error)

func (f ResolverFunc) Resolve(date model.Date, st model.ShiftTypeDefinition, anchor model.Date) (Resolution, error) {
	return f(date, st, anchor)
}

// Direct resolves every call without caching.
var Direct Resolver = ResolverFunc(ResolveShift)

type cacheKey struct {
	date        model.Date
	shiftTypeID string
	anchor      model.Date
}

// CachedResolver memoizes results by (date, shift type id, anchor date).
// Shift types are assumed immutable per id for the cache's lifetime; errors
// are never cached.
type CachedResolver struct {
	mu      sync.RWMutex
	entries map[cacheKey]Resolution
	max     int
}

// NewCachedResolver returns a cache holding at most max entries. When full,
// the cache is reset rather than evicting individual entries.
func NewCachedResolver(max int) *CachedResolver {
	if max <= 0 {
		max = 4096
	}
	return &CachedResolver{entries: make(map[cacheKey]Resolution), max: max}
}

func (c *CachedResolver) Resolve(date model.Date, st model.ShiftTypeDefinition, anchor model.Date) (Resolution, error) {
	key := cacheKey{date: date, shiftTypeID: st.ID, anchor: anchor}

	c.mu.RLock()
	res, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if res.Window != nil {
			w := *res.Window
			res.Window = &w
		}
		return res, nil
	}

	res, err := ResolveShift(date, st, anchor)
	if err != nil {
		return Resolution{}, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.max {
		c.entries = make(map[cacheKey]Resolution)
	}
	c.entries[key] = res
	c.mu.Unlock()
	return res, nil
}

// Len returns the number of cached entries.
func (c *CachedResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
