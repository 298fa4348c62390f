package infer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Model document defaults, matching the training pipeline's preprocessing.
var (
	defaultMean = []float64{0.485, 0.456, 0.406}
	defaultStd  = []float64{0.229, 0.224, 0.225}
)

const (
	defaultInputSize = 224
	defaultChannels  = 3
)

// document is the on-disk model format: a self-describing JSON blob holding
// the label map, preprocessing constants and dense layer weights.
type document struct {
	Schema    int               `json:"schema"`
	InputSize int               `json:"input_size"`
	Channels  int               `json:"channels"`
	Mean      []float64         `json:"mean"`
	Std       []float64         `json:"std"`
	Labels    map[string]string `json:"labels"`
	Layers    []layerSpec       `json:"layers"`
}

type layerSpec struct {
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Weights    []float64 `json:"weights"` // row-major, Out x In
	Bias       []float64 `json:"bias"`
	Activation string    `json:"activation"` // "relu" or "" (linear)
}

type layer struct {
	w    *mat.Dense
	b    *mat.VecDense
	relu bool
}

// Model is a fully loaded scorer: label map, preprocessing constants and
// the dense network. Immutable after ParseModel, safe for unbounded
// concurrent Score calls.
type Model struct {
	InputSize int
	Channels  int
	Mean      []float64
	Std       []float64
	Labels    []string // index order
	layers    []layer
}

// NumClasses returns the size of the output distribution.
func (m *Model) NumClasses() int { return len(m.Labels) }

// Score runs the forward pass over a preprocessed input vector and returns
// raw scores, one per class, in label index order.
func (m *Model) Score(x []float64) []float64 {
	v := mat.NewVecDense(len(x), x)
	for _, l := range m.layers {
		out := mat.NewVecDense(l.b.Len(), nil)
		out.MulVec(l.w, v)
		out.AddVec(out, l.b)
		if l.relu {
			raw := out.RawVector().Data
			for i, val := range raw {
				if val < 0 {
					raw[i] = 0
				}
			}
		}
		v = out
	}
	scores := make([]float64, v.Len())
	copy(scores, v.RawVector().Data)
	return scores
}

// ParseModel decodes and validates a model document.
func ParseModel(r io.Reader) (*Model, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode model document: %w", err)
	}

	if doc.InputSize == 0 {
		doc.InputSize = defaultInputSize
	}
	if doc.Channels == 0 {
		doc.Channels = defaultChannels
	}
	if doc.InputSize < 1 || doc.Channels < 1 || doc.Channels > 4 {
		return nil, fmt.Errorf("unsupported input shape %dx%dx%d", doc.Channels, doc.InputSize, doc.InputSize)
	}
	if len(doc.Mean) == 0 || len(doc.Std) == 0 {
		// Built-in constants cover RGB only; wider docs must ship their own.
		if doc.Channels > len(defaultMean) {
			return nil, fmt.Errorf("mean and std are required for %d channels", doc.Channels)
		}
		if len(doc.Mean) == 0 {
			doc.Mean = defaultMean[:doc.Channels]
		}
		if len(doc.Std) == 0 {
			doc.Std = defaultStd[:doc.Channels]
		}
	}
	if len(doc.Mean) != doc.Channels || len(doc.Std) != doc.Channels {
		return nil, fmt.Errorf("normalization constants must match %d channels", doc.Channels)
	}
	for _, s := range doc.Std {
		if s == 0 {
			return nil, fmt.Errorf("std must be non-zero")
		}
	}

	labels, err := orderedLabels(doc.Labels)
	if err != nil {
		return nil, err
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("model document has no layers")
	}

	inputDim := doc.InputSize * doc.InputSize * doc.Channels
	m := &Model{
		InputSize: doc.InputSize,
		Channels:  doc.Channels,
		Mean:      doc.Mean,
		Std:       doc.Std,
		Labels:    labels,
	}

	expectIn := inputDim
	for i, spec := range doc.Layers {
		if spec.In != expectIn {
			return nil, fmt.Errorf("layer %d: input dim %d, want %d", i, spec.In, expectIn)
		}
		if spec.Out < 1 {
			return nil, fmt.Errorf("layer %d: output dim must be positive", i)
		}
		if len(spec.Weights) != spec.In*spec.Out {
			return nil, fmt.Errorf("layer %d: %d weights, want %d", i, len(spec.Weights), spec.In*spec.Out)
		}
		if len(spec.Bias) != spec.Out {
			return nil, fmt.Errorf("layer %d: %d biases, want %d", i, len(spec.Bias), spec.Out)
		}
		switch spec.Activation {
		case "", "none", "relu":
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, spec.Activation)
		}
		m.layers = append(m.layers, layer{
			w:    mat.NewDense(spec.Out, spec.In, spec.Weights),
			b:    mat.NewVecDense(spec.Out, spec.Bias),
			relu: spec.Activation == "relu",
		})
		expectIn = spec.Out
	}
	if expectIn != len(labels) {
		return nil, fmt.Errorf("final layer emits %d scores for %d labels", expectIn, len(labels))
	}
	return m, nil
}

// orderedLabels turns the {"0": "...", "1": "..."} map into a dense slice,
// requiring contiguous indices from zero.
func orderedLabels(raw map[string]string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("model document has no labels")
	}
	out := make([]string, len(raw))
	for key, label := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(raw) {
			return nil, fmt.Errorf("label index %q out of range", key)
		}
		if out[idx] != "" {
			return nil, fmt.Errorf("duplicate label index %d", idx)
		}
		out[idx] = label
	}
	for i, label := range out {
		if label == "" {
			return nil, fmt.Errorf("missing label for index %d", i)
		}
	}
	return out, nil
}
