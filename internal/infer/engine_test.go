package infer_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"lekha.org/internal/blob"
	"lekha.org/internal/infer"
	"lekha.org/internal/registry"
)

// countingBlobs wraps a blob store and counts weight reads, so tests can
// assert how many times the engine actually loaded a model.
type countingBlobs struct {
	blob.Store

	mu    sync.Mutex
	opens int
}

func (c *countingBlobs) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	c.mu.Lock()
	c.opens++
	c.mu.Unlock()
	return c.Store.Open(ctx, ref)
}

func (c *countingBlobs) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func newTestEngine(t *testing.T) (*infer.Engine, *registry.Service, *countingBlobs) {
	t.Helper()
	fs, err := blob.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob.NewFS: %v", err)
	}
	blobs := &countingBlobs{Store: fs}
	svc := registry.NewService(registry.NewInMemory(), blobs)
	return infer.NewEngine(svc), svc, blobs
}

// modelDoc builds a document whose output is fully determined by the bias
// vector, so rankings are stable regardless of the input image.
func modelDoc(labels []string, bias []float64) string {
	const size, channels = 2, 3
	in := size * size * channels
	out := len(labels)

	var b strings.Builder
	b.WriteString(`{"input_size": 2, "channels": 3, "mean": [0, 0, 0], "std": [1, 1, 1], "labels": {`)
	for i, l := range labels {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`"` + strconv.Itoa(i) + `": "` + l + `"`)
	}
	b.WriteString(`}, "layers": [{"in": ` + strconv.Itoa(in) + `, "out": ` + strconv.Itoa(out) + `, "weights": [`)
	for i := 0; i < in*out; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("0")
	}
	b.WriteString(`], "bias": [`)
	for i, v := range bias {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteString(`]}]}`)
	return b.String()
}

func pngUpload(t *testing.T) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return &buf
}

func deployModel(t *testing.T, svc *registry.Service, name, doc string) *registry.Artifact {
	t.Helper()
	ctx := context.Background()
	a, err := svc.Create(ctx, registry.CreateSpec{Name: name, Architecture: "mlp"}, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	if _, err := svc.SetActive(ctx, a.ID); err != nil {
		t.Fatalf("SetActive(%s): %v", name, err)
	}
	return a
}

func TestClassifyNoActiveModel(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.Classify(context.Background(), pngUpload(t)); !errors.Is(err, infer.ErrNoActiveModel) {
		t.Fatalf("expected ErrNoActiveModel, got %v", err)
	}
}

func TestClassifyResult(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	a := deployModel(t, svc, "m", modelDoc([]string{"cat", "dog", "bird", "fish"}, []float64{3, 2, 1, 0}))

	res, err := engine.Classify(context.Background(), pngUpload(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Label != "cat" {
		t.Fatalf("expected cat, got %q", res.Label)
	}
	if res.ArtifactID != a.ID {
		t.Fatalf("expected artifact %s, got %s", a.ID, res.ArtifactID)
	}
	if len(res.Top) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(res.Top))
	}
	for i := 1; i < len(res.Top); i++ {
		if res.Top[i].Confidence > res.Top[i-1].Confidence {
			t.Fatalf("predictions not sorted: %+v", res.Top)
		}
	}
	if res.Top[0].Confidence != res.Confidence {
		t.Fatalf("top prediction diverges from result: %+v", res)
	}
	if res.LatencyMS < 0 {
		t.Fatalf("negative latency: %d", res.LatencyMS)
	}
}

func TestClassifyConcurrentFirstCallsLoadOnce(t *testing.T) {
	engine, svc, blobs := newTestEngine(t)
	deployModel(t, svc, "m", modelDoc([]string{"cat", "dog"}, []float64{1, 0}))

	const workers = 12
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Classify(context.Background(), pngUpload(t)); err != nil {
				t.Errorf("Classify: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := blobs.openCount(); got != 1 {
		t.Fatalf("expected exactly one model load, got %d", got)
	}

	// Warm cache: further calls never touch the blob store.
	if _, err := engine.Classify(context.Background(), pngUpload(t)); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got := blobs.openCount(); got != 1 {
		t.Fatalf("cache miss on warm engine: %d loads", got)
	}
}

func TestClassifyReloadsOnActivationSwitch(t *testing.T) {
	engine, svc, blobs := newTestEngine(t)
	ctx := context.Background()

	deployModel(t, svc, "a", modelDoc([]string{"cat", "dog"}, []float64{1, 0}))
	if res, err := engine.Classify(ctx, pngUpload(t)); err != nil || res.Label != "cat" {
		t.Fatalf("expected cat from model a, got %v (%v)", res, err)
	}

	deployModel(t, svc, "b", modelDoc([]string{"only"}, []float64{0}))
	res, err := engine.Classify(ctx, pngUpload(t))
	if err != nil {
		t.Fatalf("Classify after switch: %v", err)
	}
	if res.Label != "only" || len(res.Top) != 1 {
		t.Fatalf("expected single-class result from model b, got %+v", res)
	}
	if got := blobs.openCount(); got != 2 {
		t.Fatalf("expected one load per activation, got %d", got)
	}
}

func TestClassifyMissingWeights(t *testing.T) {
	engine, svc, blobs := newTestEngine(t)
	a := deployModel(t, svc, "m", modelDoc([]string{"cat"}, []float64{0}))

	if err := blobs.Delete(context.Background(), a.BlobRef); err != nil {
		t.Fatalf("Delete blob: %v", err)
	}
	if _, err := engine.Classify(context.Background(), pngUpload(t)); !errors.Is(err, infer.ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}
}

func TestClassifyCorruptDocument(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	deployModel(t, svc, "m", "not a model document")

	if _, err := engine.Classify(context.Background(), pngUpload(t)); !errors.Is(err, infer.ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}
}

func TestClassifyUndecodableUpload(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	deployModel(t, svc, "m", modelDoc([]string{"cat"}, []float64{0}))

	if _, err := engine.Classify(context.Background(), strings.NewReader("plain text")); !errors.Is(err, infer.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
