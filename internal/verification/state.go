// Package verification holds the per-page keep/erase decisions a user edits
// between extraction and reconstruction.
package verification

import (
	"fmt"
	"sync"

	"bananaslides/internal/domain"
)

type page struct {
	order    []string
	baseline map[string]domain.ElementStatus
	current  map[string]domain.ElementStatus
}

func (p *page) clone() map[string]domain.ElementStatus {
	m := make(map[string]domain.ElementStatus, len(p.current))
	for id, s := range p.current {
		m[id] = s
	}
	return m
}

// State is one verification session. The baseline snapshot taken at construction
// is never modified; only current dispositions change.
type State struct {
	mu        sync.RWMutex
	pageOrder []string
	pages     map[string]*page
}

// Stats summarizes one page's dispositions.
type Stats struct {
	Total int `json:"total"`
	Erase int `json:"erase"`
	Keep  int `json:"keep"`
}

// Init builds a session from each page's baseline erase recommendation.
func Init(analyses []*domain.LayoutAnalysis) *State {
	s := &State{pages: make(map[string]*page, len(analyses))}
	for _, a := range analyses {
		erase := make(map[string]bool, len(a.BaselineEraseIDs))
		for _, id := range a.BaselineEraseIDs {
			erase[id] = true
		}
		s.add(a, erase)
	}
	return s
}

// InitFrom builds a session whose baseline is an externally supplied erase set per page.
// Pages missing from eraseSets start all-keep. Unknown pages or element ids fail with ErrInvalidElement.
func InitFrom(analyses []*domain.LayoutAnalysis, eraseSets map[string][]string) (*State, error) {
	known := make(map[string]*domain.LayoutAnalysis, len(analyses))
	for _, a := range analyses {
		known[a.PageID] = a
	}
	for pageID := range eraseSets {
		if _, ok := known[pageID]; !ok {
			return nil, fmt.Errorf("%w: unknown page %q", domain.ErrInvalidElement, pageID)
		}
	}

	s := &State{pages: make(map[string]*page, len(analyses))}
	for _, a := range analyses {
		idx := a.Index()
		erase := make(map[string]bool, len(eraseSets[a.PageID]))
		for _, id := range eraseSets[a.PageID] {
			if _, ok := idx[id]; !ok {
				return nil, fmt.Errorf("%w: page %q has no element %q", domain.ErrInvalidElement, a.PageID, id)
			}
			erase[id] = true
		}
		s.add(a, erase)
	}
	return s, nil
}

func (s *State) add(a *domain.LayoutAnalysis, erase map[string]bool) {
	order := a.Order()
	p := &page{
		order:    order,
		baseline: make(map[string]domain.ElementStatus, len(order)),
		current:  make(map[string]domain.ElementStatus, len(order)),
	}
	for _, id := range order {
		st := domain.StatusKeep
		if erase[id] {
			st = domain.StatusErase
		}
		p.baseline[id] = st
		p.current[id] = st
	}
	s.pageOrder = append(s.pageOrder, a.PageID)
	s.pages[a.PageID] = p
}

func (s *State) page(pageID string) (*page, error) {
	p, ok := s.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown page %q", domain.ErrInvalidElement, pageID)
	}
	return p, nil
}

// Toggle flips one element and returns its new status.
func (s *State) Toggle(pageID, elementID string) (domain.ElementStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.page(pageID)
	if err != nil {
		return "", err
	}
	cur, ok := p.current[elementID]
	if !ok {
		return "", fmt.Errorf("%w: page %q has no element %q", domain.ErrInvalidElement, pageID, elementID)
	}
	next := domain.StatusErase
	if cur == domain.StatusErase {
		next = domain.StatusKeep
	}
	p.current[elementID] = next
	return next, nil
}

// BulkSet sets every known element of a page to status.
func (s *State) BulkSet(pageID string, status domain.ElementStatus) error {
	if !domain.ValidElementStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidElement, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.page(pageID)
	if err != nil {
		return err
	}
	for id := range p.current {
		p.current[id] = status
	}
	return nil
}

// Reset restores a page to the snapshot taken when the session was built.
func (s *State) Reset(pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.page(pageID)
	if err != nil {
		return err
	}
	for id, st := range p.baseline {
		p.current[id] = st
	}
	return nil
}

// Materialize returns each page's erase ids in traversal order. Every page is present,
// with an empty slice when nothing is erased.
func (s *State) Materialize() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.pages))
	for pageID, p := range s.pages {
		ids := []string{}
		for _, id := range p.order {
			if p.current[id] == domain.StatusErase {
				ids = append(ids, id)
			}
		}
		out[pageID] = ids
	}
	return out
}

// Map returns a copy of the current dispositions.
func (s *State) Map() map[string]map[string]domain.ElementStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]domain.ElementStatus, len(s.pages))
	for pageID, p := range s.pages {
		out[pageID] = p.clone()
	}
	return out
}

// Stats returns per-page counts of the current dispositions.
func (s *State) Stats() map[string]Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Stats, len(s.pages))
	for pageID, p := range s.pages {
		st := Stats{Total: len(p.current)}
		for _, v := range p.current {
			if v == domain.StatusErase {
				st.Erase++
			}
		}
		st.Keep = st.Total - st.Erase
		out[pageID] = st
	}
	return out
}

// Pages returns the page ids in the order they were added.
func (s *State) Pages() []string {
	return append([]string(nil), s.pageOrder...)
}
