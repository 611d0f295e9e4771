// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package session

import "sort"

// Roster is an immutable set of participant identifiers. With and Without
// return new rosters, so a roster handed out in a view never changes.
// It is informational only and carries no authorization meaning.
type Roster struct {
	ids map[string]struct{}
}

// With returns a roster that also contains id.
func (r Roster) With(id string) Roster {
	if id == "" || r.Contains(id) {
		return r
	}
	next := make(map[string]struct{}, len(r.ids)+1)
	for k := range r.ids {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return Roster{ids: next}
}

// Without returns a roster that does not contain id. Unknown ids are ignored.
func (r Roster) Without(id string) Roster {
	if !r.Contains(id) {
		return r
	}
	next := make(map[string]struct{}, len(r.ids))
	for k := range r.ids {
		if k != id {
			next[k] = struct{}{}
		}
	}
	return Roster{ids: next}
}

// Contains reports whether id is present.
func (r Roster) Contains(id string) bool {
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of participants.
func (r Roster) Len() int {
	return len(r.ids)
}

// IDs returns the identifiers in sorted order.
func (r Roster) IDs() []string {
	out := make([]string, 0, len(r.ids))
	for k := range r.ids {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
