package emoji

import (
	"math/rand"
	"sync"

	"github.com/andresmejia3/emotag/internal/types"
)

// set holds the three display candidates per label, indexed by types.Label.
var set = [types.NumLabels][3]string{
	types.Angry:    {"😠", "😡", "🤬"},
	types.Disgust:  {"🤢", "🤮", "😷"},
	types.Fear:     {"😨", "😱", "😰"},
	types.Happy:    {"😊", "😁", "😃"},
	types.Sad:      {"😢", "😭", "☹️"},
	types.Surprise: {"😲", "😯", "🤯"},
	types.Neutral:  {"😐", "😑", "🤨"},
}

// Glyphs returns the candidate set registered for label.
func Glyphs(label types.Label) [3]string {
	if !label.Valid() {
		return [3]string{}
	}
	return set[label]
}

// Mapper picks a display glyph for a label using its own random source.
type Mapper struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMapper returns a Mapper drawing from rng. A nil rng panics on first Pick.
func NewMapper(rng *rand.Rand) *Mapper {
	return &Mapper{rng: rng}
}

// NewSeededMapper is shorthand for NewMapper(rand.New(rand.NewSource(seed))).
func NewSeededMapper(seed int64) *Mapper {
	return NewMapper(rand.New(rand.NewSource(seed)))
}

// Pick returns one of the three glyphs of label, chosen uniformly at random on every call.
// Invalid labels yield "".
func (m *Mapper) Pick(label types.Label) string {
	if !label.Valid() {
		return ""
	}
	m.mu.Lock()
	i := m.rng.Intn(len(set[label]))
	m.mu.Unlock()
	return set[label][i]
}
