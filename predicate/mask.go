package predicate

import "github.com/phylogo/phyfit/alphabet"

// Mask is an M x M boolean matrix over an alphabet; entry (i, j)
// marks the ordered motif pair (motif_i, motif_j).
type Mask struct {
	n int
	v []bool
}

// NewMask creates an all-false n x n mask.
func NewMask(n int) *Mask {
	return &Mask{n: n, v: make([]bool, n*n)}
}

// Size returns the matrix dimension.
func (m *Mask) Size() int { return m.n }

// At returns the entry at (i, j).
func (m *Mask) At(i, j int) bool { return m.v[i*m.n+j] }

// Set sets the entry at (i, j).
func (m *Mask) Set(i, j int, b bool) { m.v[i*m.n+j] = b }

// AllFalse tests if no entry is set.
func (m *Mask) AllFalse() bool {
	for _, b := range m.v {
		if b {
			return false
		}
	}
	return true
}

// Equal tests entry-wise equality.
func (m *Mask) Equal(o *Mask) bool {
	if m.n != o.n {
		return false
	}
	for i, b := range m.v {
		if b != o.v[i] {
			return false
		}
	}
	return true
}

// Symmetric tests if the mask equals its transpose.
func (m *Mask) Symmetric() bool {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.At(i, j) != m.At(j, i) {
				return false
			}
		}
	}
	return true
}

// Indices returns the flat (row-major) indices of all true entries.
func (m *Mask) Indices() []int {
	var idx []int
	for i, b := range m.v {
		if b {
			idx = append(idx, i)
		}
	}
	return idx
}

// Floats returns the mask as a flat 0/1 row-major vector.
func (m *Mask) Floats() []float64 {
	f := make([]float64, len(m.v))
	for i, b := range m.v {
		if b {
			f[i] = 1
		}
	}
	return f
}

// Count returns the number of true entries.
func (m *Mask) Count() (n int) {
	for _, b := range m.v {
		if b {
			n++
		}
	}
	return
}

// ToMatrix evaluates a pair test for every ordered motif pair of the
// alphabet. If restrict is non-nil, pairs outside it default to false
// without evaluating the test.
func ToMatrix(test PairTest, a *alphabet.Alphabet, restrict *Mask) *Mask {
	n := a.Len()
	m := NewMask(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if restrict != nil && !restrict.At(i, j) {
				continue
			}
			m.Set(i, j, test(a.Motif(i), a.Motif(j)))
		}
	}
	return m
}
