package domain

import "fmt"

// WindowLength is the number of days in one model input sequence.
const WindowLength = 15

// Window is a zero-filled (Slots, Length, Dim) float32 tensor stored row-major.
// Only the final slot carries feature data.
type Window struct {
	Slots  int
	Length int
	Dim    int
	Data   []float32
}

// At returns the value at (slot, step, feature).
func (w Window) At(slot, step, feature int) float32 {
	return w.Data[w.offset(slot, step, feature)]
}

// Slot returns the Length*Dim values of one slot. The slice aliases Data.
func (w Window) Slot(i int) []float32 {
	n := w.Length * w.Dim
	return w.Data[i*n : (i+1)*n]
}

// Step returns the Dim values of one time step within a slot.
func (w Window) Step(slot, step int) []float32 {
	start := w.offset(slot, step, 0)
	return w.Data[start : start+w.Dim]
}

func (w Window) offset(slot, step, feature int) int {
	return (slot*w.Length+step)*w.Dim + feature
}

// BuildWindow allocates a (rows-length, length, D) buffer and copies the last
// length rows of m into the final slot. Earlier slots stay zero. At least
// length+1 rows are required.
func BuildWindow(m FeatureMatrix, length int) (Window, error) {
	rows, dim := m.Dims()
	if length <= 0 {
		return Window{}, fmt.Errorf("%w: window length %d", ErrShapeMismatch, length)
	}
	slots := rows - length
	if slots <= 0 {
		return Window{}, fmt.Errorf("%w: %d rows cannot fill a window of %d with at least one slot",
			ErrShapeMismatch, rows, length)
	}

	w := Window{
		Slots:  slots,
		Length: length,
		Dim:    dim,
		Data:   make([]float32, slots*length*dim),
	}
	last := slots - 1
	for step := 0; step < length; step++ {
		row := rows - length + step
		dst := w.Step(last, step)
		for j := 0; j < dim; j++ {
			dst[j] = float32(m.Data.At(row, j))
		}
	}
	return w, nil
}
