package sagax

import "github.com/comalice/sagax/internal/primitives"

// Bag is a concurrency-safe key/value payload for sagas that do not define
// their own payload type. It serializes to JSON and YAML as a plain map.
type Bag = primitives.Bag

// NewBag creates an empty Bag.
func NewBag() *Bag {
	return primitives.NewBag()
}
