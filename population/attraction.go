package population

import "math/rand"

// Attraction sampling ranges. Same-species affinity is slightly stronger;
// cross-species weights may be negative (repulsion).
var (
	SelfAttraction  = Range{1.0, 1.2}
	CrossAttraction = Range{-0.4, 0.8}
)

// AttractionTable is a square row-major matrix of cross-species weights.
// Row i holds the weights species i applies when sensing each species j.
type AttractionTable struct {
	N      int       `yaml:"n" json:"n"`
	Values []float32 `yaml:"values" json:"values"`
}

// NewAttractionTable samples an n×n table: diagonal in [1.0, 1.2),
// off-diagonal in [-0.4, 0.8).
func NewAttractionTable(rng *rand.Rand, n int) AttractionTable {
	t := AttractionTable{N: n, Values: make([]float32, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r := CrossAttraction
			if i == j {
				r = SelfAttraction
			}
			v := r.sample(rng)
			// Float32 rounding can land exactly on the open upper bound.
			if v >= r.Max {
				v = r.Min
			}
			t.Values[i*n+j] = v
		}
	}
	return t
}

// Side returns the matrix dimension.
func (t AttractionTable) Side() int { return t.N }

// Len returns the number of entries (Side²).
func (t AttractionTable) Len() int { return len(t.Values) }

// At returns the weight of species j as sensed by species i.
func (t AttractionTable) At(i, j int) float32 {
	return t.Values[i*t.N+j]
}

// Set assigns the weight of species j as sensed by species i.
func (t AttractionTable) Set(i, j int, v float32) {
	t.Values[i*t.N+j] = v
}

// Clone returns a deep copy.
func (t AttractionTable) Clone() AttractionTable {
	return AttractionTable{N: t.N, Values: append([]float32(nil), t.Values...)}
}
