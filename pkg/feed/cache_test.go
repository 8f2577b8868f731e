package feed

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds_data.json")
	feeds := ByTeam{
		{Team: "Zeta", Feeds: []Result{{FeedURL: "https://z.example.com/rss", Entries: []Entry{{
			Title: "release 1.2", Link: "https://z.example.com/1", Published: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Summary: "notes",
		}}}}},
		{Team: "Alpha", Feeds: []Result{{FeedURL: "https://a.example.com/rss", Entries: []Entry{}}}},
	}

	c := NewCache(path)
	require.NoError(t, c.Save(feeds))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"feed_url": "https://z.example.com/rss"`)
	assert.Contains(t, string(data), `"published": "2024-05-01T10:00:00Z"`)
	assert.Contains(t, string(data), `"entries": []`)
	assert.Less(t, strings.Index(string(data), `"Zeta"`), strings.Index(string(data), `"Alpha"`), "team order preserved")

	loaded, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, feeds, loaded)

	// no temp files left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCache_LoadMiss(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing file"},
		{name: "empty file", content: ptr("")},
		{name: "empty object", content: ptr("{}")},
		{name: "null", content: ptr("null")},
		{name: "corrupt", content: ptr(`{"TeamA": [{"feed_url": `)},
		{name: "wrong shape", content: ptr(`["TeamA"]`)},
		{name: "bad date", content: ptr(`{"TeamA": [{"feed_url": "u", "entries": [{"published": "yesterday"}]}]}`)},
		{name: "naive iso date", content: ptr(`{"TeamA": [{"feed_url": "u", "entries": [{"published": "2024-05-01T10:00:00"}]}]}`)},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "cache"+string(rune('a'+i))+".json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o600))
			}
			res, err := NewCache(path).Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCacheMiss))
			assert.Nil(t, res)
		})
	}
}

func TestByTeam_JSON(t *testing.T) {
	data := []byte(`{"B": [{"feed_url": "u1", "entries": []}], "A": [], "C": [{"feed_url": "u2", "entries": [{"title": "t", "link": "l", "published": "2024-01-02T03:04:05Z", "summary": "s"}]}]}`)

	var b ByTeam
	require.NoError(t, json.Unmarshal(data, &b))
	require.Len(t, b, 3)
	assert.Equal(t, "B", b[0].Team)
	assert.Equal(t, "A", b[1].Team)
	assert.Equal(t, "C", b[2].Team)
	assert.Equal(t, 1, b.EntriesCount())

	feeds, ok := b.Team("C")
	require.True(t, ok)
	assert.Equal(t, "t", feeds[0].Entries[0].Title)
	_, ok = b.Team("D")
	assert.False(t, ok)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(out))
	assert.Less(t, strings.Index(string(out), `"B"`), strings.Index(string(out), `"A"`))

	empty, err := json.Marshal(ByTeam{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func ptr(s string) *string { return &s }

