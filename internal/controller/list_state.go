package controller

import (
	"sort"

	"doc-manager-app/internal/models"
)

// ListState is an immutable snapshot of the file list screen
type ListState struct {
	Query   models.ListQuery
	Items   []models.FileRecord
	Total   int
	Loading bool
	Loaded  bool // at least one fetch succeeded
	Err     error

	// Seq is the sequence number of the latest issued fetch
	Seq uint64

	selected map[string]struct{}
}

// Empty reports whether the last successful fetch returned no files
func (s ListState) Empty() bool {
	return s.Loaded && !s.Loading && len(s.Items) == 0
}

// TotalPages is the page count for the current total
func (s ListState) TotalPages() int {
	return s.Query.TotalPages(s.Total)
}

// IsSelected reports whether id is part of the selection
func (s ListState) IsSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selection in ascending order
func (s ListState) SelectedIDs() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SelectedCount is the size of the selection
func (s ListState) SelectedCount() int {
	return len(s.selected)
}

// ListEvent is an input to ReduceList
type ListEvent interface {
	isListEvent()
}

// FetchStarted records a newly issued fetch
type FetchStarted struct {
	Seq   uint64
	Query models.ListQuery
}

// FetchSucceeded carries the response of fetch Seq
type FetchSucceeded struct {
	Seq  uint64
	Page models.FilePage
}

// FetchFailed carries the failure of fetch Seq
type FetchFailed struct {
	Seq uint64
	Err error
}

// SelectionChanged adds or removes ids from the selection
type SelectionChanged struct {
	IDs      []string
	Selected bool
}

// SelectionCleared empties the selection
type SelectionCleared struct{}

func (FetchStarted) isListEvent()     {}
func (FetchSucceeded) isListEvent()   {}
func (FetchFailed) isListEvent()      {}
func (SelectionChanged) isListEvent() {}
func (SelectionCleared) isListEvent() {}

// ReduceList is the pure transition function of the file list. Responses
// whose Seq is not the latest issued one leave the state unchanged.
func ReduceList(s ListState, ev ListEvent) ListState {
	switch e := ev.(type) {
	case FetchStarted:
		s.Seq = e.Seq
		s.Query = e.Query
		s.Loading = true
	case FetchSucceeded:
		if e.Seq != s.Seq {
			return s
		}
		s.Items = e.Page.Items
		if s.Items == nil {
			s.Items = []models.FileRecord{}
		}
		s.Total = e.Page.Total
		s.Loading = false
		s.Loaded = true
		s.Err = nil
	case FetchFailed:
		if e.Seq != s.Seq {
			return s
		}
		s.Loading = false
		s.Err = e.Err
	case SelectionChanged:
		next := make(map[string]struct{}, len(s.selected)+len(e.IDs))
		for id := range s.selected {
			next[id] = struct{}{}
		}
		for _, id := range e.IDs {
			if e.Selected {
				next[id] = struct{}{}
			} else {
				delete(next, id)
			}
		}
		s.selected = next
	case SelectionCleared:
		s.selected = nil
	}
	return s
}
