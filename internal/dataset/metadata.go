package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MetadataPath is where recordings keep their JSON metadata blob.
const MetadataPath = "metadata"

// Metadata is the decoded metadata blob: a mapping from actor name to a
// record holding at least an integer "id". Entries that are not objects, or
// have no integer id, are kept raw but are not actors.
type Metadata struct {
	raw    map[string]json.RawMessage
	actors map[string]int64
}

type actorRecord struct {
	ID *json.Number `json:"id"`
}

// ParseMetadata decodes the metadata text. Malformed JSON is returned as a
// wrapped decode error.
func ParseMetadata(text string) (Metadata, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}

	md := Metadata{raw: raw, actors: make(map[string]int64)}
	for name, msg := range raw {
		var rec actorRecord
		d := json.NewDecoder(strings.NewReader(string(msg)))
		d.UseNumber()
		if err := d.Decode(&rec); err != nil || rec.ID == nil {
			continue
		}
		id, err := rec.ID.Int64()
		if err != nil {
			continue
		}
		md.actors[name] = id
	}
	return md, nil
}

// ActorID returns the identifier recorded for the named actor.
func (m Metadata) ActorID(name string) (int64, error) {
	id, ok := m.actors[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrActorNotInMetadata, name)
	}
	return id, nil
}

// Names returns the actor names, sorted.
func (m Metadata) Names() []string {
	names := make([]string, 0, len(m.actors))
	for name := range m.actors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len is the number of actor records.
func (m Metadata) Len() int {
	return len(m.actors)
}

// Raw returns the undecoded entry for key, actor or not.
func (m Metadata) Raw(key string) (json.RawMessage, bool) {
	msg, ok := m.raw[key]
	return msg, ok
}
