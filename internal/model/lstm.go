// Package model runs the pretrained LSTM that maps a 15-day feature window to
// the next day's mean temperature. Weights are read from the PyTorch state
// dict the network was saved as; only inference is supported.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Defaults matching the trained network.
const (
	DefaultHiddenSize = 500
	DefaultLayers     = 2
)

// Options configure Load.
type Options struct {
	HiddenSize int
	Layers     int
	Device     Device
}

// layer holds one LSTM layer's weights in PyTorch layout: rows are the
// input, forget, cell and output gates stacked, each HiddenSize tall.
type layer struct {
	wih  *mat.Dense
	whh  *mat.Dense
	bias *mat.VecDense // b_ih + b_hh
}

// LSTM is a stacked LSTM followed by a linear projection of the final time
// step's top-layer hidden state to one value.
type LSTM struct {
	layers []layer
	fcW    *mat.VecDense
	fcB    float64
	input  int
	hidden int
	device Device
}

// errMissingTensor reports a state-dict entry the weight file lacks.
var errMissingTensor = errors.New("missing tensor")

// Load reads the torch.save state dict at path and builds the network. A
// missing or corrupt file, or weights that do not match opts, return
// domain.ErrModelLoad.
func Load(path string, opts Options) (*LSTM, error) {
	tensors, err := ReadStateDict(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelLoad, path, err)
	}
	return FromTensors(tensors, opts)
}

// FromTensors builds the network from state-dict tensors named
// rnn.weight_ih_l{k}, rnn.weight_hh_l{k}, rnn.bias_ih_l{k}, rnn.bias_hh_l{k},
// fc.weight and fc.bias. The input size is taken from rnn.weight_ih_l0.
func FromTensors(tensors map[string]Tensor, opts Options) (*LSTM, error) {
	if opts.HiddenSize <= 0 {
		opts.HiddenSize = DefaultHiddenSize
	}
	if opts.Layers <= 0 {
		opts.Layers = DefaultLayers
	}
	if opts.Device == "" {
		opts.Device = CPU
	}
	h := opts.HiddenSize

	m := &LSTM{hidden: h, device: opts.Device}
	in := 0
	for k := 0; k < opts.Layers; k++ {
		wih, err := matrix(tensors, fmt.Sprintf("rnn.weight_ih_l%d", k), 4*h, -1)
		if err != nil {
			return nil, err
		}
		_, cols := wih.Dims()
		if k == 0 {
			in = cols
		} else if cols != h {
			return nil, fmt.Errorf("%w: rnn.weight_ih_l%d has %d inputs, want %d", domain.ErrModelLoad, k, cols, h)
		}
		whh, err := matrix(tensors, fmt.Sprintf("rnn.weight_hh_l%d", k), 4*h, h)
		if err != nil {
			return nil, err
		}
		bih, err := vector(tensors, fmt.Sprintf("rnn.bias_ih_l%d", k), 4*h)
		if err != nil {
			return nil, err
		}
		bhh, err := vector(tensors, fmt.Sprintf("rnn.bias_hh_l%d", k), 4*h)
		if err != nil {
			return nil, err
		}
		bias := mat.NewVecDense(4*h, nil)
		bias.AddVec(bih, bhh)
		m.layers = append(m.layers, layer{wih: wih, whh: whh, bias: bias})
	}
	if _, ok := tensors[fmt.Sprintf("rnn.weight_ih_l%d", opts.Layers)]; ok {
		return nil, fmt.Errorf("%w: weight file has more than %d layers", domain.ErrModelLoad, opts.Layers)
	}

	fcW, err := matrix(tensors, "fc.weight", 1, h)
	if err != nil {
		return nil, err
	}
	fcB, err := vector(tensors, "fc.bias", 1)
	if err != nil {
		return nil, err
	}
	m.fcW = mat.VecDenseCopyOf(fcW.RowView(0))
	m.fcB = fcB.AtVec(0)
	m.input = in
	return m, nil
}

// InputSize is the feature dimension D the weights were trained with.
func (m *LSTM) InputSize() int { return m.input }

// HiddenSize is the width of every recurrent layer.
func (m *LSTM) HiddenSize() int { return m.hidden }

// Layers is the number of stacked recurrent layers.
func (m *LSTM) Layers() int { return len(m.layers) }

// Device is the backend running inference.
func (m *LSTM) Device() Device { return m.device }

// Predict returns one output per window slot, at float32 precision. Hidden
// and cell state start at zero for every slot. Slots with identical contents
// are evaluated once, so the zero padding costs a single forward pass.
func (m *LSTM) Predict(w domain.Window) ([]float64, error) {
	if w.Dim != m.input {
		return nil, fmt.Errorf("%w: window has %d features, model expects %d", domain.ErrShapeMismatch, w.Dim, m.input)
	}
	if w.Slots <= 0 || w.Length <= 0 {
		return nil, fmt.Errorf("%w: empty window", domain.ErrShapeMismatch)
	}

	out := make([]float64, w.Slots)
	var (
		zeroOut  float64
		haveZero bool
	)
	for s := 0; s < w.Slots; s++ {
		seq := w.Slot(s)
		if isZero(seq) {
			if !haveZero {
				zeroOut = m.forward(w, s)
				haveZero = true
			}
			out[s] = zeroOut
			continue
		}
		out[s] = m.forward(w, s)
	}
	return out, nil
}

// forward runs one slot through every layer and the projection.
func (m *LSTM) forward(w domain.Window, slot int) float64 {
	hs := make([]*mat.VecDense, len(m.layers))
	cs := make([]*mat.VecDense, len(m.layers))
	for l := range m.layers {
		hs[l] = mat.NewVecDense(m.hidden, nil)
		cs[l] = mat.NewVecDense(m.hidden, nil)
	}
	gates := mat.NewVecDense(4*m.hidden, nil)
	rec := mat.NewVecDense(4*m.hidden, nil)
	x := mat.NewVecDense(w.Dim, nil)

	for t := 0; t < w.Length; t++ {
		for j, v := range w.Step(slot, t) {
			x.SetVec(j, float64(v))
		}
		var input mat.Vector = x
		for l, ly := range m.layers {
			gates.MulVec(ly.wih, input)
			rec.MulVec(ly.whh, hs[l])
			gates.AddVec(gates, rec)
			gates.AddVec(gates, ly.bias)
			cell(gates.RawVector().Data, hs[l].RawVector().Data, cs[l].RawVector().Data, m.hidden)
			input = hs[l]
		}
	}

	y := m.fcB + mat.Dot(m.fcW, hs[len(hs)-1])
	return float64(float32(y))
}

// cell applies the gate nonlinearities and updates h and c in place.
func cell(g, h, c []float64, n int) {
	for k := 0; k < n; k++ {
		i := sigmoid(g[k])
		f := sigmoid(g[n+k])
		gg := math.Tanh(g[2*n+k])
		o := sigmoid(g[3*n+k])
		c[k] = f*c[k] + i*gg
		h[k] = o * math.Tanh(c[k])
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// matrix fetches a 2-D tensor with the given row count and, when cols >= 0,
// column count.
func matrix(tensors map[string]Tensor, name string, rows, cols int) (*mat.Dense, error) {
	t, ok := tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w %s", domain.ErrModelLoad, errMissingTensor, name)
	}
	if len(t.Shape) != 2 || t.Shape[0] != rows || (cols >= 0 && t.Shape[1] != cols) || t.Shape[1] == 0 {
		want := fmt.Sprintf("[%d %d]", rows, cols)
		if cols < 0 {
			want = fmt.Sprintf("[%d *]", rows)
		}
		return nil, fmt.Errorf("%w: %s has shape %v, want %s", domain.ErrModelLoad, name, t.Shape, want)
	}
	return mat.NewDense(t.Shape[0], t.Shape[1], t.Data), nil
}

func vector(tensors map[string]Tensor, name string, n int) (*mat.VecDense, error) {
	t, ok := tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w %s", domain.ErrModelLoad, errMissingTensor, name)
	}
	if len(t.Shape) != 1 || t.Shape[0] != n {
		return nil, fmt.Errorf("%w: %s has shape %v, want [%d]", domain.ErrModelLoad, name, t.Shape, n)
	}
	return mat.NewVecDense(n, t.Data), nil
}

// IsMissingTensor reports whether err was caused by an absent state-dict entry.
func IsMissingTensor(err error) bool {
	return errors.Is(err, errMissingTensor)
}
