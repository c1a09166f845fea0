package skyview

import (
	"slices"
	"sync"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

// Model holds the latest satellite snapshot and the active filter. Snapshot
// and filter replacement are atomic with respect to readers: a reader sees
// either the old or the new state, never a mix.
type Model struct {
	mu         sync.RWMutex
	satellites []gnss.Satellite
	filter     gnss.Filter
}

// NewModel creates an empty Model showing all constellations.
func NewModel() *Model {
	return &Model{filter: gnss.DefaultFilter()}
}

// ReplaceSnapshot discards the stored snapshot and keeps a private copy of records.
func (m *Model) ReplaceSnapshot(records []gnss.Satellite) {
	snapshot := slices.Clone(records)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.satellites = snapshot
}

// SetFilter replaces the active filter. gnss.FilterCurrent keeps the active
// constellation and only replaces the used-in-fix flag.
func (m *Model) SetFilter(filter gnss.Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filter.Constellation == gnss.FilterCurrent || filter.Constellation == "" {
		filter.Constellation = m.filter.Constellation
	}
	m.filter = filter
}

// Filter returns the active filter.
func (m *Model) Filter() gnss.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filter
}

// CurrentConstellationFilter returns the active constellation filter.
func (m *Model) CurrentConstellationFilter() gnss.ConstellationFilter {
	return m.Filter().Constellation
}

// FilteredView returns the satellites passing the active filter, in snapshot
// order. The result is never shared with the Model.
func (m *Model) FilteredView() []gnss.Satellite {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filteredLocked()
}

func (m *Model) filteredLocked() []gnss.Satellite {
	view := make([]gnss.Satellite, 0, len(m.satellites))
	for _, s := range m.satellites {
		if m.filter.Matches(s) {
			view = append(view, s)
		}
	}
	return view
}

// View returns the filtered satellites together with the filter that selected
// them, read under one lock.
func (m *Model) View() ([]gnss.Satellite, gnss.Filter) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filteredLocked(), m.filter
}

// FilteredCount returns the number of satellites passing the active filter.
func (m *Model) FilteredCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	for _, s := range m.satellites {
		if m.filter.Matches(s) {
			n++
		}
	}
	return n
}

// Len returns the size of the full, unfiltered snapshot.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.satellites)
}
