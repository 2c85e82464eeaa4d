package position

import "sort"

// Entry is one ranked entity as stored, in the order the store returns it: by rank, then by
// whatever tie-break the store applies to equal ranks.
type Entry struct {
	ID   string
	Rank int
}

// Reassignment moves one entity to the rank it holds after compaction.
type Reassignment struct {
	ID   string `json:"id" yaml:"id"`
	From int    `json:"from" yaml:"from"`
	To   int    `json:"to" yaml:"to"`
}

// Report describes how far a slot is from the gap-free {1..N} shape.
type Report struct {
	Slot       string         `json:"slot" yaml:"slot"`
	Ranked     int            `json:"ranked" yaml:"ranked"`
	Duplicates []int          `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Gaps       []int          `json:"gaps,omitempty" yaml:"gaps,omitempty"`
	Plan       []Reassignment `json:"plan,omitempty" yaml:"plan,omitempty"`
}

// Healthy reports whether the slot already holds exactly {1..N}.
func (r Report) Healthy() bool {
	return len(r.Plan) == 0
}

// Audit checks the entries of one slot and plans the renumbering that restores {1..N} while
// keeping their relative order. Entries with a rank of 0 or less are ignored.
func Audit(slot Slot, entries []Entry) Report {
	ranked := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Rank > 0 {
			ranked = append(ranked, e)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	report := Report{Slot: slot.String(), Ranked: len(ranked)}

	seen := make(map[int]int, len(ranked))
	for _, e := range ranked {
		seen[e.Rank]++
		if seen[e.Rank] == 2 {
			report.Duplicates = append(report.Duplicates, e.Rank)
		}
	}
	for rank := 1; rank <= len(ranked); rank++ {
		if seen[rank] == 0 {
			report.Gaps = append(report.Gaps, rank)
		}
	}

	for i, e := range ranked {
		if want := i + 1; e.Rank != want {
			report.Plan = append(report.Plan, Reassignment{ID: e.ID, From: e.Rank, To: want})
		}
	}
	return report
}
