package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Team is a named group of subscribed feed URLs
type Team struct {
	Name string
	URLs []string
}

// Teams is an ordered list of teams, in the order they appear in the teams file
type Teams []Team

// Names returns team names in order
func (t Teams) Names() []string {
	res := make([]string, 0, len(t))
	for _, team := range t {
		res = append(res, team.Name)
	}
	return res
}

// LoadTeams reads the team to feed URLs mapping. The file is either a flat object {team: [url, ...]}
// or a wrapped one {"teams": {team: [url, ...]}}. Team and URL order follow the file.
func LoadTeams(path string) (Teams, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from config
	if err != nil {
		return nil, fmt.Errorf("read teams file: %w", err)
	}

	teams, err := ParseTeams(data)
	if err != nil {
		return nil, fmt.Errorf("parse teams file %s: %w", path, err)
	}
	return teams, nil
}

// ParseTeams parses team mapping from JSON or YAML data. Documents starting with '{' or '['
// are decoded as JSON, anything else as YAML.
func ParseTeams(data []byte) (Teams, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return parseJSONTeams(trimmed)
	}
	return parseYAMLTeams(data)
}

// teamsBuilder collects teams in order and rejects empty and duplicate names
type teamsBuilder struct {
	teams Teams
	seen  map[string]bool
}

func (b *teamsBuilder) add(name string, urls []string) error {
	if name == "" {
		return fmt.Errorf("empty team name")
	}
	if b.seen == nil {
		b.seen = map[string]bool{}
	}
	if b.seen[name] {
		return fmt.Errorf("duplicate team %q", name)
	}
	b.seen[name] = true
	b.teams = append(b.teams, Team{Name: name, URLs: urls})
	return nil
}

func (b *teamsBuilder) result() (Teams, error) {
	if len(b.teams) == 0 {
		return nil, fmt.Errorf("empty teams mapping")
	}
	return b.teams, nil
}

// jsonPair is a key with its undecoded value, in document order
type jsonPair struct {
	key string
	val json.RawMessage
}

func parseJSONTeams(data []byte) (Teams, error) {
	pairs, err := jsonObject(data)
	if err != nil {
		return nil, err
	}

	// unwrap {"teams": {...}}, sibling keys are ignored
	for _, p := range pairs {
		if p.key == "teams" && jsonKind(p.val) == "object" {
			if pairs, err = jsonObject(p.val); err != nil {
				return nil, err
			}
			break
		}
	}

	var b teamsBuilder
	for _, p := range pairs {
		if kind := jsonKind(p.val); kind != "list" {
			return nil, fmt.Errorf("team %q: expected list of urls, got %s", p.key, kind)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(p.val, &items); err != nil {
			return nil, fmt.Errorf("decode: team %q: %w", p.key, err)
		}
		urls := make([]string, 0, len(items))
		for i, item := range items {
			var u string
			if err := json.Unmarshal(item, &u); err != nil || u == "" {
				return nil, fmt.Errorf("team %q: invalid url at position %d", p.key, i+1)
			}
			urls = append(urls, u)
		}
		if err := b.add(p.key, urls); err != nil {
			return nil, err
		}
	}
	return b.result()
}

// jsonObject decodes a JSON object into its key/value pairs, keeping the order of keys
func jsonObject(data []byte) ([]jsonPair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object at top level, got %s", jsonKind(data))
	}

	var res []jsonPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decode: unexpected key %v", keyTok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("decode: value of %q: %w", key, err)
		}
		res = append(res, jsonPair{key: key, val: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode: unexpected data after top level object")
	}
	return res, nil
}

// jsonKind names the kind of a raw JSON value by its first byte
func jsonKind(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "list"
	case 'n':
		return "null"
	default:
		return "scalar"
	}
}

func parseYAMLTeams(data []byte) (Teams, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty teams mapping")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected object at top level, got %s", kindName(root.Kind))
	}

	// unwrap teams: {...}, sibling keys are ignored
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "teams" && root.Content[i+1].Kind == yaml.MappingNode {
			root = root.Content[i+1]
			break
		}
	}

	var b teamsBuilder
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		name := key.Value
		if val.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("team %q: expected list of urls, got %s", name, kindName(val.Kind))
		}
		urls := make([]string, 0, len(val.Content))
		for _, u := range val.Content {
			if u.Kind != yaml.ScalarNode || u.Value == "" {
				return nil, fmt.Errorf("team %q: invalid url at line %d", name, u.Line)
			}
			urls = append(urls, u.Value)
		}
		if err := b.add(name, urls); err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
	}
	return b.result()
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "object"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
