package primitives

import (
	"encoding/json"
	"sync"
)

// Bag is a key-value payload for sagas that do not declare a typed payload
// struct. Use *Bag as the payload type so every handler sees the same
// values.
//
// Bag serializes as a plain JSON/YAML object.
type Bag struct {
	data sync.Map
}

// NewBag creates an empty Bag.
func NewBag() *Bag {
	return &Bag{}
}

// Get retrieves a value by key.
func (b *Bag) Get(key string) (any, bool) {
	return b.data.Load(key)
}

// Set stores a value by key.
func (b *Bag) Set(key string, val any) {
	b.data.Store(key, val)
}

// Delete removes a key-value pair.
func (b *Bag) Delete(key string) {
	b.data.Delete(key)
}

// Snapshot returns a copy of the bag contents.
func (b *Bag) Snapshot() map[string]any {
	snap := map[string]any{}
	b.data.Range(func(k, v any) bool {
		snap[k.(string)] = v
		return true
	})
	return snap
}

// Restore replaces the bag contents with snap.
func (b *Bag) Restore(snap map[string]any) {
	b.data.Range(func(k, v any) bool {
		b.data.Delete(k)
		return true
	})
	for k, v := range snap {
		b.data.Store(k, v)
	}
}

func (b *Bag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Snapshot())
}

func (b *Bag) UnmarshalJSON(data []byte) error {
	var snap map[string]any
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	b.Restore(snap)
	return nil
}

func (b *Bag) MarshalYAML() (any, error) {
	return b.Snapshot(), nil
}

func (b *Bag) UnmarshalYAML(unmarshal func(any) error) error {
	var snap map[string]any
	if err := unmarshal(&snap); err != nil {
		return err
	}
	b.Restore(snap)
	return nil
}
