package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a single feed entry published inside the lookback window
type Entry struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
	Summary   string    `json:"summary"`
}

// Result holds filtered entries of one feed URL. Entries is empty, not nil, when the feed failed.
type Result struct {
	FeedURL string  `json:"feed_url"`
	Entries []Entry `json:"entries"`
}

// TeamFeeds holds results of all feeds of one team, in the order of the team's URLs
type TeamFeeds struct {
	Team  string
	Feeds []Result
}

// ByTeam is the ordered team to feed results mapping. It is encoded as a JSON object keyed
// by team name, keys written and read back in order.
type ByTeam []TeamFeeds

// Team returns feed results of the named team
func (b ByTeam) Team(name string) ([]Result, bool) {
	for _, tf := range b {
		if tf.Team == name {
			return tf.Feeds, true
		}
	}
	return nil, false
}

// EntriesCount returns the number of entries across all teams and feeds
func (b ByTeam) EntriesCount() int {
	count := 0
	for _, tf := range b {
		for _, r := range tf.Feeds {
			count += len(r.Entries)
		}
	}
	return count
}

// MarshalJSON encodes teams as an object, preserving team order
func (b ByTeam) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tf := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tf.Team)
		if err != nil {
			return nil, fmt.Errorf("marshal team name: %w", err)
		}
		feeds := tf.Feeds
		if feeds == nil {
			feeds = []Result{}
		}
		val, err := json.Marshal(feeds)
		if err != nil {
			return nil, fmt.Errorf("marshal feeds of %s: %w", tf.Team, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a team keyed object, keeping the order of keys
func (b *ByTeam) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read opening token: %w", err)
	}
	if tok == nil { // null
		*b = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	res := ByTeam{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read team name: %w", err)
		}
		team, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", keyTok)
		}
		var feeds []Result
		if err := dec.Decode(&feeds); err != nil {
			return fmt.Errorf("decode feeds of %s: %w", team, err)
		}
		res = append(res, TeamFeeds{Team: team, Feeds: feeds})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read closing token: %w", err)
	}
	*b = res
	return nil
}
