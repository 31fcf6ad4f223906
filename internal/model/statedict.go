package model

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"

	pickle "github.com/kisielk/og-rek"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// archivePrefix is the directory torch.save writes every record under.
const archivePrefix = "archive/"

// Tensor is a dense row-major tensor decoded to float64.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Len returns the number of elements the shape describes.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ReadStateDict loads a PyTorch state dict saved with torch.save, in either
// the zip or the legacy layout. Float, double, half and bfloat16 tensors are
// supported; strided views are materialized in row-major order.
func ReadStateDict(path string) (map[string]Tensor, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, err
	}
	return stateDict(obj)
}

// stateDict converts an unpickled OrderedDict or dict of tensors.
func stateDict(obj any) (map[string]Tensor, error) {
	tensors := map[string]Tensor{}
	add := func(key, value any) error {
		name, ok := key.(string)
		if !ok {
			return fmt.Errorf("state dict key %v is not a string", key)
		}
		pt, ok := value.(*pytorch.Tensor)
		if !ok {
			return fmt.Errorf("state dict entry %s is %T, not a tensor", name, value)
		}
		t, err := fromTorch(pt)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		tensors[name] = t
		return nil
	}

	switch dict := obj.(type) {
	case *types.OrderedDict:
		for e := dict.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	case *types.Dict:
		for _, entry := range *dict {
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("file holds %T, want a state dict", obj)
	}
	return tensors, nil
}

// fromTorch copies a tensor out of its storage, honouring offset and stride.
func fromTorch(pt *pytorch.Tensor) (Tensor, error) {
	var (
		at func(int) float64
		n  int
	)
	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		at, n = func(i int) float64 { return float64(s.Data[i]) }, len(s.Data)
	case *pytorch.DoubleStorage:
		at, n = func(i int) float64 { return s.Data[i] }, len(s.Data)
	case *pytorch.HalfStorage:
		at, n = func(i int) float64 { return float64(s.Data[i]) }, len(s.Data)
	case *pytorch.BFloat16Storage:
		at, n = func(i int) float64 { return float64(s.Data[i]) }, len(s.Data)
	default:
		return Tensor{}, fmt.Errorf("unsupported storage %T", pt.Source)
	}
	if len(pt.Stride) != len(pt.Size) {
		return Tensor{}, fmt.Errorf("size %v and stride %v differ in rank", pt.Size, pt.Stride)
	}

	t := Tensor{Shape: append([]int(nil), pt.Size...)}
	t.Data = make([]float64, t.Len())
	idx := make([]int, len(t.Shape))
	for i := range t.Data {
		off := pt.StorageOffset
		for d, k := range idx {
			off += k * pt.Stride[d]
		}
		if off < 0 || off >= n {
			return Tensor{}, fmt.Errorf("element %d at storage offset %d outside %d values", i, off, n)
		}
		t.Data[i] = at(off)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < t.Shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return t, nil
}

// WriteStateDict writes tensors as a float32 torch.save zip archive that
// ReadStateDict, and torch.load, can read back. Each tensor gets its own
// contiguous storage.
func WriteStateDict(w io.Writer, tensors map[string]Tensor) error {
	names := make([]string, 0, len(tensors))
	for name, t := range tensors {
		if t.Len() != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v needs %d values, have %d", name, t.Shape, t.Len(), len(t.Data))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	dict := pickle.NewDictWithSizeHint(len(names))
	for i, name := range names {
		dict.Set(name, rebuildCall(strconv.Itoa(i), tensors[name]))
	}

	zw := zip.NewWriter(w)
	f, err := zw.CreateHeader(&zip.FileHeader{Name: archivePrefix + "data.pkl", Method: zip.Store})
	if err != nil {
		return err
	}
	enc := pickle.NewEncoderWithConfig(f, &pickle.EncoderConfig{Protocol: 2, StrictUnicode: true})
	if err := enc.Encode(dict); err != nil {
		return fmt.Errorf("pickle state dict: %w", err)
	}

	for i, name := range names {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: archivePrefix + "data/" + strconv.Itoa(i), Method: zip.Store})
		if err != nil {
			return err
		}
		values := make([]float32, len(tensors[name].Data))
		for j, v := range tensors[name].Data {
			values[j] = float32(v)
		}
		if err := binary.Write(f, binary.LittleEndian, values); err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
	}

	for _, rec := range []struct{ name, body string }{
		{"byteorder", "little"},
		{"version", "3\n"},
	} {
		f, err := zw.Create(archivePrefix + rec.name)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(f, rec.body); err != nil {
			return err
		}
	}
	return zw.Close()
}

// rebuildCall is the pickled form torch.save uses for a tensor: a call to
// torch._utils._rebuild_tensor_v2 over a persistent storage reference.
func rebuildCall(key string, t Tensor) pickle.Call {
	size := make(pickle.Tuple, len(t.Shape))
	stride := make(pickle.Tuple, len(t.Shape))
	step := 1
	for d := len(t.Shape) - 1; d >= 0; d-- {
		size[d] = t.Shape[d]
		stride[d] = step
		step *= t.Shape[d]
	}
	storage := pickle.Ref{Pid: pickle.Tuple{
		"storage",
		pickle.Class{Module: "torch", Name: "FloatStorage"},
		key,
		"cpu",
		len(t.Data),
	}}
	return pickle.Call{
		Callable: pickle.Class{Module: "torch._utils", Name: "_rebuild_tensor_v2"},
		Args:     pickle.Tuple{storage, 0, size, stride, false, pickle.NewDict()},
	}
}
