package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/teamdigest/pkg/feed"
	"github.com/umputun/teamdigest/pkg/llm"
)

// summarizerFunc adapts a function to Summarizer
type summarizerFunc func(ctx context.Context, template string, payload llm.Payload) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, template string, payload llm.Payload) (string, error) {
	return f(ctx, template, payload)
}

func makeFeeds(prefix string, n int) []feed.Result {
	res := make([]feed.Result, 0, n)
	for i := range n {
		res = append(res, feed.Result{FeedURL: fmt.Sprintf("https://%s.example.com/%d", prefix, i), Entries: []feed.Entry{}})
	}
	return res
}

// payloadTeam returns the single team of payload
func payloadTeam(t *testing.T, payload llm.Payload) (string, []feed.Result) {
	require.Len(t, payload, 1)
	for team, feeds := range payload {
		return team, feeds
	}
	return "", nil
}

func TestChunk(t *testing.T) {
	feeds := makeFeeds("a", 7)

	chunks := Chunk(feeds, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, feeds[0:3], chunks[0])
	assert.Equal(t, feeds[6], chunks[2][0])

	assert.Len(t, Chunk(feeds, 7), 1)
	assert.Len(t, Chunk(feeds, 100), 1)
	assert.Len(t, Chunk(feeds, 0), 7, "size below 1 treated as 1")
	assert.Empty(t, Chunk(nil, 3))
}

func TestScheduler_Tasks(t *testing.T) {
	byTeam := feed.ByTeam{
		{Team: "TeamA", Feeds: makeFeeds("a", 7)},
		{Team: "TeamB", Feeds: makeFeeds("b", 2)},
		{Team: "Empty", Feeds: nil},
	}

	t.Run("all teams", func(t *testing.T) {
		tasks := NewScheduler(nil, Config{BatchSize: 3}).Tasks(byTeam)
		require.Len(t, tasks, 4)
		assert.Equal(t, "TeamA", tasks[0].Team)
		assert.Equal(t, []int{0, 1, 2}, []int{tasks[0].Index, tasks[1].Index, tasks[2].Index})
		assert.Equal(t, []int{3, 3, 1}, []int{len(tasks[0].Feeds), len(tasks[1].Feeds), len(tasks[2].Feeds)})
		assert.Equal(t, "TeamB", tasks[3].Team)
		assert.Len(t, tasks[3].Feeds, 2)
	})

	t.Run("filtered", func(t *testing.T) {
		tasks := NewScheduler(nil, Config{BatchSize: 3, TeamFilter: "TeamB"}).Tasks(byTeam)
		require.Len(t, tasks, 1)
		assert.Equal(t, "TeamB", tasks[0].Team)
	})
}

func TestScheduler_Dispatch(t *testing.T) {
	byTeam := feed.ByTeam{
		{Team: "TeamA", Feeds: makeFeeds("a", 7)},
		{Team: "TeamB", Feeds: makeFeeds("b", 4)},
	}

	t.Run("payload scoped to one team and chunk", func(t *testing.T) {
		var mu sync.Mutex
		seen := map[string][]int{}
		s := NewScheduler(summarizerFunc(func(_ context.Context, template string, payload llm.Payload) (string, error) {
			assert.Equal(t, "tmpl {data}", template)
			team, feeds := payloadTeam(t, payload)
			mu.Lock()
			seen[team] = append(seen[team], len(feeds))
			mu.Unlock()
			return "summary of " + feeds[0].FeedURL, nil
		}), Config{BatchSize: 3, MaxWorkers: 4})

		resp := s.Dispatch(context.Background(), byTeam, "tmpl {data}")
		assert.ElementsMatch(t, []int{3, 3, 1}, seen["TeamA"])
		assert.ElementsMatch(t, []int{3, 1}, seen["TeamB"])
		assert.ElementsMatch(t, []string{"TeamA", "TeamB"}, resp.Teams())
		assert.Len(t, resp.Texts("TeamA"), 3)
		assert.Len(t, resp.Texts("TeamB"), 2)
	})

	t.Run("team filter", func(t *testing.T) {
		s := NewScheduler(summarizerFunc(func(_ context.Context, _ string, payload llm.Payload) (string, error) {
			team, _ := payloadTeam(t, payload)
			assert.Equal(t, "TeamA", team)
			return "ok", nil
		}), Config{BatchSize: 3, TeamFilter: "TeamA"})

		resp := s.Dispatch(context.Background(), byTeam, "{data}")
		assert.Equal(t, []string{"TeamA"}, resp.Teams())
	})

	t.Run("unknown team filter", func(t *testing.T) {
		var calls int32
		s := NewScheduler(summarizerFunc(func(context.Context, string, llm.Payload) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "ok", nil
		}), Config{TeamFilter: "Nobody"})

		resp := s.Dispatch(context.Background(), byTeam, "{data}")
		assert.Empty(t, resp.Teams())
		assert.Zero(t, atomic.LoadInt32(&calls))
	})

	t.Run("failed team absent from report", func(t *testing.T) {
		s := NewScheduler(summarizerFunc(func(_ context.Context, _ string, payload llm.Payload) (string, error) {
			team, _ := payloadTeam(t, payload)
			if team == "TeamB" {
				return "", &llm.SummarizationError{Attempts: 1, Err: errors.New("invalid api key")}
			}
			return "A news", nil
		}), Config{BatchSize: 10})

		resp := s.Dispatch(context.Background(), byTeam, "{data}")
		assert.Equal(t, []string{"TeamA"}, resp.Teams())

		report := Render(resp)
		assert.NotContains(t, report, "TeamB")
		assert.Contains(t, report, "Team: TeamA\n"+strings.Repeat("=", len("TeamA")+6)+"\nA news\n\n")
	})

	t.Run("partial failure keeps sibling chunks", func(t *testing.T) {
		s := NewScheduler(summarizerFunc(func(_ context.Context, _ string, payload llm.Payload) (string, error) {
			_, feeds := payloadTeam(t, payload)
			if feeds[0].FeedURL == "https://a.example.com/3" {
				return "", errors.New("boom")
			}
			return feeds[0].FeedURL, nil
		}), Config{BatchSize: 3, TeamFilter: "TeamA"})

		resp := s.Dispatch(context.Background(), byTeam, "{data}")
		assert.ElementsMatch(t, []string{"https://a.example.com/0", "https://a.example.com/6"}, resp.Texts("TeamA"))
	})

	t.Run("no tasks", func(t *testing.T) {
		s := NewScheduler(summarizerFunc(func(context.Context, string, llm.Payload) (string, error) {
			t.Fatal("must not be called")
			return "", nil
		}), Config{})
		resp := s.Dispatch(context.Background(), feed.ByTeam{{Team: "Empty"}}, "{data}")
		assert.Empty(t, resp.Teams())
	})
}

func TestScheduler_DispatchConcurrencyBound(t *testing.T) {
	var inFlight, peak int32
	s := NewScheduler(summarizerFunc(func(context.Context, string, llm.Payload) (string, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	}), Config{BatchSize: 1, MaxWorkers: 3})

	resp := s.Dispatch(context.Background(), feed.ByTeam{{Team: "T", Feeds: makeFeeds("t", 12)}}, "{data}")
	assert.Equal(t, 12, resp.Len())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1), "tasks run in parallel")
}

func TestScheduler_DispatchCompletionOrder(t *testing.T) {
	// the first chunk finishes last
	newScheduler := func(keepOrder bool) *Scheduler {
		return NewScheduler(summarizerFunc(func(_ context.Context, _ string, payload llm.Payload) (string, error) {
			_, feeds := payloadTeam(t, payload)
			if feeds[0].FeedURL == "https://t.example.com/0" {
				time.Sleep(100 * time.Millisecond)
			}
			return feeds[0].FeedURL, nil
		}), Config{BatchSize: 1, MaxWorkers: 2, KeepChunkOrder: keepOrder})
	}
	byTeam := feed.ByTeam{{Team: "T", Feeds: makeFeeds("t", 2)}}

	resp := newScheduler(false).Dispatch(context.Background(), byTeam, "{data}")
	assert.Equal(t, []string{"https://t.example.com/1", "https://t.example.com/0"}, resp.Texts("T"))

	resp = newScheduler(true).Dispatch(context.Background(), byTeam, "{data}")
	assert.Equal(t, []string{"https://t.example.com/0", "https://t.example.com/1"}, resp.Texts("T"))
}
