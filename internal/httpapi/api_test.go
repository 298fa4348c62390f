package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"lekha.org/internal/auth"
	"lekha.org/internal/blob"
	"lekha.org/internal/infer"
	"lekha.org/internal/registry"
)

type testEnv struct {
	api     *API
	handler http.Handler
	users   *auth.Service
	reg     *registry.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	blobs, err := blob.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("blob.NewFS: %v", err)
	}
	users := auth.NewService(auth.NewInMemoryUsers())
	tokens, err := auth.NewTokens("test-secret")
	if err != nil {
		t.Fatalf("auth.NewTokens: %v", err)
	}
	reg := registry.NewService(registry.NewInMemory(), blobs)
	engine := infer.NewEngine(reg)

	api := New(users, tokens, reg, engine, ReadyProbe{}, Options{Version: "test"})
	return &testEnv{api: api, handler: api.Handler(), users: users, reg: reg}
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req, cookies)
}

// session registers (or logs in) a principal and returns its cookies.
func (e *testEnv) registerSession(t *testing.T, username, email, password string) []*http.Cookie {
	t.Helper()
	rr := e.postJSON(t, "/api/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

// adminSession bootstraps a staff account and logs it in on the admin
// surface.
func (e *testEnv) adminSession(t *testing.T) []*http.Cookie {
	t.Helper()
	if err := e.users.EnsureAdmin(context.Background(), "root", "root@lekha.org", "root-pass"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	rr := e.postJSON(t, "/api/admin/auth/login", map[string]string{
		"username": "root", "password": "root-pass",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login: status %d: %s", rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

// multipartUpload builds a model-upload request body.
func multipartUpload(t *testing.T, fields map[string]string, fileField, fileName string, file []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	fw, err := mw.CreateFormFile(fileField, fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(file); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// testModelDoc is a bias-only scorer: rankings depend only on the bias
// vector, so any decodable image classifies deterministically.
func testModelDoc(t *testing.T, labels []string, bias []float64) []byte {
	t.Helper()
	const size, channels = 2, 3
	in := size * size * channels

	var b strings.Builder
	b.WriteString(`{"input_size": 2, "channels": 3, "mean": [0, 0, 0], "std": [1, 1, 1], "labels": {`)
	for i, l := range labels {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`"` + strconv.Itoa(i) + `": "` + l + `"`)
	}
	b.WriteString(`}, "layers": [{"in": ` + strconv.Itoa(in) + `, "out": ` + strconv.Itoa(len(labels)) + `, "weights": [`)
	for i := 0; i < in*len(labels); i++ {
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
	return []byte(b.String())
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}
