package digest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "\n=== Feed Updates by Team ===\n\n", Render(NewResponses(false)))
	})

	t.Run("teams in insertion order", func(t *testing.T) {
		r := NewResponses(false)
		r.Append("Platform", 1, "second batch")
		r.Append("Web", 0, "web news")
		r.Append("Platform", 0, "first batch")

		expected := "\n=== Feed Updates by Team ===\n\n" +
			"Team: Platform\n" +
			"==============\n" +
			"second batch\n\nfirst batch\n\n" +
			"Team: Web\n" +
			"=========\n" +
			"web news\n\n"
		assert.Equal(t, expected, Render(r))
		assert.Equal(t, Render(r), Render(r), "rendering is deterministic")
	})

	t.Run("underline counts runes", func(t *testing.T) {
		r := NewResponses(false)
		r.Append("Équipe", 0, "x")
		assert.Contains(t, Render(r), "Team: Équipe\n============\n")
	})
}

func TestResponses(t *testing.T) {
	t.Run("chunk order opt-in", func(t *testing.T) {
		r := NewResponses(true)
		r.Append("T", 2, "c")
		r.Append("T", 0, "a")
		r.Append("T", 1, "b")
		assert.Equal(t, []string{"a", "b", "c"}, r.Texts("T"))
		assert.Equal(t, 3, r.Len())
	})

	t.Run("unknown team", func(t *testing.T) {
		r := NewResponses(false)
		assert.Empty(t, r.Texts("missing"))
		assert.Empty(t, r.Teams())
	})

	t.Run("concurrent appends", func(t *testing.T) {
		r := NewResponses(false)
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				team := "even"
				if i%2 == 1 {
					team = "odd"
				}
				r.Append(team, i, "t")
			}()
		}
		wg.Wait()
		require.ElementsMatch(t, []string{"even", "odd"}, r.Teams())
		assert.Len(t, r.Texts("even"), 25)
		assert.Len(t, r.Texts("odd"), 25)
	})
}
