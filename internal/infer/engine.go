package infer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lekha.org/internal/blob"
	"lekha.org/internal/obs"
	"lekha.org/internal/registry"
)

var (
	// ErrNoActiveModel means no artifact is currently activated.
	ErrNoActiveModel = errors.New("infer: no active model")
	// ErrArtifactUnavailable means the active artifact's weights are
	// missing or unreadable.
	ErrArtifactUnavailable = errors.New("infer: artifact unavailable")
	// ErrDecode means the uploaded payload is not a decodable image.
	ErrDecode = errors.New("infer: undecodable image")
)

// topK is the maximum length of the ranked prediction list.
const topK = 3

// Prediction is one entry of the ranked output distribution.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is a completed classification.
type Result struct {
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	Top        []Prediction `json:"top3"`
	LatencyMS  int64        `json:"latency_ms"`
	ArtifactID string       `json:"-"`
}

type cachedModel struct {
	artifactID string
	model      *Model
}

// Engine serves classifications against whatever artifact the registry
// marks active. Weights load lazily on first use and reload only when the
// active artifact changes; concurrent first calls share a single load.
type Engine struct {
	registry *registry.Service
	group    singleflight.Group

	mu     sync.RWMutex
	cached *cachedModel
}

// NewEngine builds an engine over the registry service.
func NewEngine(reg *registry.Service) *Engine {
	return &Engine{registry: reg}
}

// Classify runs the active model over an uploaded image. Reported latency
// covers preprocessing and scoring, not a cold model load.
func (e *Engine) Classify(ctx context.Context, upload io.Reader) (Result, error) {
	active, err := e.registry.GetActive(ctx)
	if err != nil {
		if errors.Is(err, registry.ErrNoActive) {
			obs.ObserveInference("no_active_model", 0)
			return Result{}, ErrNoActiveModel
		}
		return Result{}, err
	}

	model, err := e.model(ctx, active)
	if err != nil {
		obs.ObserveInference("load_failed", 0)
		return Result{}, err
	}

	start := time.Now()
	input, err := Preprocess(upload, model)
	if err != nil {
		obs.ObserveInference("decode_failed", time.Since(start))
		return Result{}, err
	}

	probs := softmax(model.Score(input))
	ranked := rank(probs, model.Labels)
	elapsed := time.Since(start)
	obs.ObserveInference("ok", elapsed)

	return Result{
		Label:      ranked[0].Label,
		Confidence: ranked[0].Confidence,
		Top:        ranked,
		LatencyMS:  elapsed.Milliseconds(),
		ArtifactID: active.ID,
	}, nil
}

// model returns the loaded scorer for the active artifact, loading it at
// most once per activation.
func (e *Engine) model(ctx context.Context, active *registry.Artifact) (*Model, error) {
	e.mu.RLock()
	c := e.cached
	e.mu.RUnlock()
	if c != nil && c.artifactID == active.ID {
		return c.model, nil
	}

	v, err, _ := e.group.Do(active.ID, func() (any, error) {
		e.mu.RLock()
		c := e.cached
		e.mu.RUnlock()
		if c != nil && c.artifactID == active.ID {
			return c.model, nil
		}

		rc, err := e.registry.OpenWeights(ctx, active)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrArtifactUnavailable, active.ID)
			}
			return nil, err
		}
		defer rc.Close()

		m, err := ParseModel(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
		}

		e.mu.Lock()
		e.cached = &cachedModel{artifactID: active.ID, model: m}
		e.mu.Unlock()
		obs.ModelLoaded(active.ID)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// softmax converts raw scores to a probability distribution, shifted by
// the max score for numerical stability.
func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// rank returns the top min(3, classes) predictions, highest confidence
// first. Ties keep label index order.
func rank(probs []float64, labels []string) []Prediction {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	k := topK
	if len(idx) < k {
		k = len(idx)
	}
	out := make([]Prediction, 0, k)
	for _, i := range idx[:k] {
		out = append(out, Prediction{Label: labels[i], Confidence: probs[i]})
	}
	return out
}
