package logic

import (
	"math/rand"
	"sync"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Catalog is the fixed set of melodies played on a light trigger.
var Catalog = []Sequence{
	{Name: "fanfare", Steps: []Step{
		{392, ms(200)}, {392, ms(200)}, {349, ms(200)}, {523, ms(340)},
	}},
	{Name: "climb", Steps: []Step{
		{523, ms(180)}, {659, ms(180)}, {784, ms(220)}, {659, ms(180)}, {523, ms(260)},
	}},
	{Name: "swing", Steps: []Step{
		{494, ms(220)}, {587, ms(220)}, {659, ms(320)}, {494, ms(300)},
	}},
	{Name: "arpeggio", Steps: []Step{
		{523, ms(180)}, {659, ms(180)}, {784, ms(300)},
	}},
}

// Picker selects sequences uniformly at random from a catalog.
// Safe for concurrent use.
type Picker struct {
	catalog []Sequence

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker creates a Picker over catalog drawing from rng.
// Pass a seeded rng for deterministic selection.
func NewPicker(catalog []Sequence, rng *rand.Rand) *Picker {
	return &Picker{catalog: catalog, rng: rng}
}

// Pick returns the next random sequence. It returns an empty sequence when
// the catalog is empty.
func (p *Picker) Pick() Sequence {
	if len(p.catalog) == 0 {
		return Sequence{}
	}
	p.mu.Lock()
	i := p.rng.Intn(len(p.catalog))
	p.mu.Unlock()
	return p.catalog[i]
}

// Float64 returns a value in [0,1) from the same source, used for the
// random indicator brightness.
func (p *Picker) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}
