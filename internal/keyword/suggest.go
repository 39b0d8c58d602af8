package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggester offers "did you mean" corrections for search queries based on the
// terms actually present in the index.
type Suggester struct {
	index       *Index
	maxDistance int

	mu    sync.RWMutex
	terms []string
	set   map[string]struct{}
}

// NewSuggester creates a suggester over the index's title and author terms.
// The dictionary is loaded lazily and refreshed with Refresh after a sync.
func NewSuggester(index *Index) *Suggester {
	return &Suggester{
		index:       index,
		maxDistance: 2,
		set:         make(map[string]struct{}),
	}
}

// Refresh reloads the term dictionary from the index.
func (s *Suggester) Refresh() error {
	terms, err := s.index.Terms()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	s.mu.Lock()
	s.terms = terms
	s.set = set
	s.mu.Unlock()
	return nil
}

// Suggest returns a corrected query, or "" when every term is already known
// or no close replacement exists.
func (s *Suggester) Suggest(query string) string {
	s.mu.RLock()
	loaded := len(s.terms) > 0
	s.mu.RUnlock()
	if !loaded {
		if err := s.Refresh(); err != nil {
			return ""
		}
	}

	words := strings.Fields(strings.ToLower(query))
	corrected := make([]string, len(words))
	changed := false
	for i, w := range words {
		s.mu.RLock()
		_, known := s.set[w]
		s.mu.RUnlock()
		if known {
			corrected[i] = w
			continue
		}
		if best := s.closest(w); best != "" {
			corrected[i] = best
			changed = true
		} else {
			corrected[i] = w
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(corrected, " ")
}

// closest returns the nearest dictionary term within maxDistance, preferring
// smaller edit distance, then shorter terms.
func (s *Suggester) closest(word string) string {
	s.mu.RLock()
	terms := s.terms
	s.mu.RUnlock()

	type candidate struct {
		term     string
		distance int
	}
	var candidates []candidate
	for _, t := range terms {
		tl := strings.ToLower(t)
		diff := len(tl) - len(word)
		if diff < -s.maxDistance || diff > s.maxDistance {
			continue
		}
		if d := editDistance(word, tl); d <= s.maxDistance {
			candidates = append(candidates, candidate{term: tl, distance: d})
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return len(candidates[i].term) < len(candidates[j].term)
	})
	return candidates[0].term
}

// editDistance is the Damerau-Levenshtein distance: insertions, deletions,
// substitutions, and transpositions of adjacent runes each count as one edit.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
