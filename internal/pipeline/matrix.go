package pipeline

import "fmt"

// CritiqueMatrix holds critique[critic][subject] for one task. The diagonal
// is never populated.
type CritiqueMatrix struct {
	n     int
	cells [][]string
	set   [][]bool
}

func NewCritiqueMatrix(n int) *CritiqueMatrix {
	m := &CritiqueMatrix{
		n:     n,
		cells: make([][]string, n),
		set:   make([][]bool, n),
	}
	for i := range m.cells {
		m.cells[i] = make([]string, n)
		m.set[i] = make([]bool, n)
	}
	return m
}

func (m *CritiqueMatrix) Set(critic, subject int, text string) {
	if critic == subject {
		panic(fmt.Sprintf("critique matrix: agent %d cannot critique itself", critic))
	}
	m.cells[critic][subject] = text
	m.set[critic][subject] = true
}

func (m *CritiqueMatrix) Get(critic, subject int) (string, bool) {
	if critic < 0 || subject < 0 || critic >= m.n || subject >= m.n {
		return "", false
	}
	return m.cells[critic][subject], m.set[critic][subject]
}

// Len counts populated cells.
func (m *CritiqueMatrix) Len() int {
	count := 0
	for i := range m.set {
		for j := range m.set[i] {
			if m.set[i][j] {
				count++
			}
		}
	}
	return count
}

// Received returns the critiques other agents wrote about subject, in
// ascending critic order.
func (m *CritiqueMatrix) Received(subject int) []string {
	out := make([]string, 0, m.n-1)
	for critic := 0; critic < m.n; critic++ {
		if critic == subject {
			continue
		}
		if text, ok := m.Get(critic, subject); ok {
			out = append(out, text)
		}
	}
	return out
}
