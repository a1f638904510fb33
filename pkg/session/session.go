// Package session holds per-respondent survey progress: which elements
// have been visited, what values have been recorded for them, and the
// respondent's selected language. State lives in memory for the
// duration of an active survey and is handed to the storage adapter for
// durable persistence only once the respondent submits (§4.3).
package session

import "sync"

// State is one respondent's in-progress survey session. All methods are
// safe for concurrent use. Reads copy out slices and maps so callers
// cannot mutate session-internal state by holding onto a returned value,
// mirroring SurveySession's deepcopy-on-read accessors in the original
// implementation.
type State struct {
	mu sync.RWMutex

	language       string
	enumeratorUUID string
	hasEnumerator  bool

	visits []int // element indices, in visit order; the last entry is the cursor

	values map[string]any

	// repeatValues holds one auxiliary slice per repeat-relative
	// variable name, one entry per completed iteration. Truncating a
	// slice is how leaving a repeat early drops its trailing,
	// never-finished iteration.
	repeatValues map[string][]any

	modified bool
}

// New returns an empty session state.
func New() *State {
	return &State{
		values:       make(map[string]any),
		repeatValues: make(map[string][]any),
	}
}

// Language returns the respondent's selected language, or "" if none has
// been set yet.
func (s *State) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage records the respondent's language choice.
func (s *State) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
	s.modified = true
}

// EnumeratorUUID returns the enumerator conducting this session on the
// respondent's behalf, if one was set.
func (s *State) EnumeratorUUID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enumeratorUUID, s.hasEnumerator
}

// SetEnumeratorUUID records the enumerator conducting this session.
func (s *State) SetEnumeratorUUID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enumeratorUUID = id
	s.hasEnumerator = true
	s.modified = true
}

// AddVisit appends an element index to the visit history, making it the
// new cursor.
func (s *State) AddVisit(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, index)
	s.modified = true
}

// DropLatestVisit removes and returns the most recent visit, used when
// the interpreter walks backward. The second return value is false if
// there was nothing to drop.
func (s *State) DropLatestVisit() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.visits) == 0 {
		return 0, false
	}
	last := s.visits[len(s.visits)-1]
	s.visits = s.visits[:len(s.visits)-1]
	s.modified = true
	return last, true
}

// CountVisits returns how many elements have been visited.
func (s *State) CountVisits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.visits)
}

// CountVisitsOf returns how many times the given element index appears
// in the visit history, mirroring SurveySession.count_visits. A repeat
// node's own index is appended on entry and again each time an
// iteration finishes, so after a repeat is left its count is one more
// than the number of iterations completed.
func (s *State) CountVisitsOf(index int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.visits {
		if v == index {
			n++
		}
	}
	return n
}

// CurrentVisit returns the cursor: the most recently visited element
// index. The second return value is false for a session with no visits
// yet.
func (s *State) CurrentVisit() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.visits) == 0 {
		return 0, false
	}
	return s.visits[len(s.visits)-1], true
}

// AllVisits returns a copy of the full visit history, oldest first.
func (s *State) AllVisits() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(s.visits))
	copy(out, s.visits)
	return out
}

// StoreResponse records a value for a named element. Passing a nil value
// deletes any previously stored response, matching the original's
// store_response(None) convention for clearing an answer.
func (s *State) StoreResponse(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.values, name)
	} else {
		s.values[name] = copyValue(value)
	}
	s.modified = true
}

// RetrieveResponse returns the stored value for a named element, if any.
func (s *State) RetrieveResponse(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// RetrieveAllResponses returns a copy of every stored response, keyed by
// element name.
func (s *State) RetrieveAllResponses() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = copyValue(v)
	}
	return out
}

// AppendRepeatValue records one more completed iteration's value for a
// repeat-relative variable name.
func (s *State) AppendRepeatValue(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeatValues[name] = append(s.repeatValues[name], copyValue(value))
	s.modified = true
}

// TruncateRepeatValues drops every stored iteration beyond n for a
// repeat-relative variable name, used when a repeat is re-entered with
// fewer iterations than it previously had (§4.4, clearing obsolete repeat
// responses).
func (s *State) TruncateRepeatValues(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vals, ok := s.repeatValues[name]
	if !ok || n >= len(vals) {
		return
	}
	if n < 0 {
		n = 0
	}
	s.repeatValues[name] = vals[:n]
	s.modified = true
}

// RepeatValues returns a copy of every completed iteration's value for a
// repeat-relative variable name.
func (s *State) RepeatValues(name string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vals := s.repeatValues[name]
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = copyValue(v)
	}
	return out
}

// Modified reports whether any mutating method has been called since
// the state was created or last marked clean.
func (s *State) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// MarkClean resets the modified flag, typically right after a
// successful persist.
func (s *State) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = false
}

// Clear resets all session state back to empty, as when a respondent
// restarts the survey.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = ""
	s.enumeratorUUID = ""
	s.hasEnumerator = false
	s.visits = nil
	s.values = make(map[string]any)
	s.repeatValues = make(map[string][]any)
	s.modified = true
}

// copyValue deep-copies the value shapes StoreResponse and
// AppendRepeatValue actually see (strings, numbers, bools, and
// []string for select_all_that_apply responses) so that returning a
// stored value never hands out a slice or map the caller could mutate
// in place.
func copyValue(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = copyValue(vv)
		}
		return out
	default:
		return v
	}
}
