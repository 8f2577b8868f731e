// Package digest splits team feeds into batches, summarizes them concurrently and assembles the report
package digest

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/teamdigest/pkg/feed"
	"github.com/umputun/teamdigest/pkg/llm"
)

// Summarizer turns one rendered batch into text
type Summarizer interface {
	Summarize(ctx context.Context, template string, payload llm.Payload) (string, error)
}

// Task is a single summarization request: one chunk of one team's feeds
type Task struct {
	Team  string
	Index int // position of the chunk within the team
	Feeds []feed.Result
}

// Config holds scheduler configuration
type Config struct {
	BatchSize      int
	MaxWorkers     int
	TeamFilter     string // empty means all teams
	KeepChunkOrder bool
}

// Scheduler runs summarization tasks on a bounded pool of workers
type Scheduler struct {
	summarizer     Summarizer
	batchSize      int
	maxWorkers     int
	teamFilter     string
	keepChunkOrder bool
}

// NewScheduler creates a scheduler, zero values get defaults
func NewScheduler(summarizer Summarizer, cfg Config) *Scheduler {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 3
	}
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 8
	}
	return &Scheduler{
		summarizer:     summarizer,
		batchSize:      cfg.BatchSize,
		maxWorkers:     cfg.MaxWorkers,
		teamFilter:     cfg.TeamFilter,
		keepChunkOrder: cfg.KeepChunkOrder,
	}
}

// Chunk splits feeds into contiguous batches of up to size elements, the last one may be smaller
func Chunk(feeds []feed.Result, size int) [][]feed.Result {
	if size < 1 {
		size = 1
	}
	res := make([][]feed.Result, 0, (len(feeds)+size-1)/size)
	for i := 0; i < len(feeds); i += size {
		res = append(res, feeds[i:min(i+size, len(feeds))])
	}
	return res
}

// Tasks builds the task list for byTeam, honoring the team filter
func (s *Scheduler) Tasks(byTeam feed.ByTeam) []Task {
	var tasks []Task
	for _, tf := range byTeam {
		if s.teamFilter != "" && tf.Team != s.teamFilter {
			continue
		}
		for i, chunk := range Chunk(tf.Feeds, s.batchSize) {
			tasks = append(tasks, Task{Team: tf.Team, Index: i, Feeds: chunk})
		}
	}
	return tasks
}

// Dispatch summarizes all tasks concurrently and collects the texts as they complete.
// Failed tasks are logged and left out of the result.
func (s *Scheduler) Dispatch(ctx context.Context, byTeam feed.ByTeam, template string) *Responses {
	resp := NewResponses(s.keepChunkOrder)

	if _, ok := byTeam.Team(s.teamFilter); s.teamFilter != "" && !ok {
		lgr.Printf("[WARN] team %q not found in feeds data", s.teamFilter)
		return resp
	}

	tasks := s.Tasks(byTeam)
	if len(tasks) == 0 {
		lgr.Printf("[INFO] nothing to summarize")
		return resp
	}

	workers := min(s.maxWorkers, max(1, len(tasks)))
	lgr.Printf("[INFO] summarizing %d batches with %d workers", len(tasks), workers)
	st := time.Now()

	var g errgroup.Group
	g.SetLimit(workers)
	for _, task := range tasks {
		g.Go(func() error {
			text, err := s.summarizer.Summarize(ctx, template, llm.Payload{task.Team: task.Feeds})
			if err != nil {
				lgr.Printf("[ERROR] failed to summarize batch %d of team %s: %v", task.Index+1, task.Team, err)
				return nil
			}
			resp.Append(task.Team, task.Index, text)
			lgr.Printf("[DEBUG] batch %d of team %s summarized", task.Index+1, task.Team)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors

	lgr.Printf("[INFO] summarized %d of %d batches in %v", resp.Len(), len(tasks), time.Since(st).Round(time.Millisecond))
	return resp
}
