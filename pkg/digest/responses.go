package digest

import (
	"slices"
	"sync"
)

type chunkText struct {
	index int
	text  string
}

// Responses collects summaries per team. Teams keep the order of their first completed batch.
// Safe for concurrent use.
type Responses struct {
	mu             sync.Mutex
	order          []string
	texts          map[string][]chunkText
	keepChunkOrder bool
}

// NewResponses makes an empty collection. With keepChunkOrder each team's texts are returned
// in chunk order instead of completion order.
func NewResponses(keepChunkOrder bool) *Responses {
	return &Responses{texts: map[string][]chunkText{}, keepChunkOrder: keepChunkOrder}
}

// Append adds the text of chunk index for team
func (r *Responses) Append(team string, index int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.texts[team]; !ok {
		r.order = append(r.order, team)
	}
	r.texts[team] = append(r.texts[team], chunkText{index: index, text: text})
}

// Teams returns team names with at least one text
func (r *Responses) Teams() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Texts returns the texts collected for team
func (r *Responses) Texts(team string) []string {
	r.mu.Lock()
	chunks := slices.Clone(r.texts[team])
	r.mu.Unlock()

	if r.keepChunkOrder {
		slices.SortStableFunc(chunks, func(a, b chunkText) int { return a.index - b.index })
	}
	res := make([]string, 0, len(chunks))
	for _, c := range chunks {
		res = append(res, c.text)
	}
	return res
}

// Len is the total number of texts
func (r *Responses) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.texts {
		n += len(t)
	}
	return n
}
