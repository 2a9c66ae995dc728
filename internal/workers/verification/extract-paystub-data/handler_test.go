// internal/workers/verification/extract-paystub-data/handler_test.go
package extractpaystubdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "paystub-verify/internal/common/errors"
	"paystub-verify/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeModel struct {
	response string
	err      error
	calls    int
	mimeType string
}

func (f *fakeModel) ExtractDocument(_ context.Context, mimeType string, _ []byte) (string, error) {
	f.calls++
	f.mimeType = mimeType
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func setupHandler(t *testing.T, model ModelClient) (*Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &Config{
		CacheTTL:        time.Hour,
		DownloadTimeout: 5 * time.Second,
	}
	return NewHandler(cfg, client, model, logger.NewTestLogger(t)), mr
}

func documentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake image bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ==========================
// Extraction Flow
// ==========================

func TestExecute_ExtractsAndCaches(t *testing.T) {
	srv := documentServer(t)
	model := &fakeModel{response: "```json\n{\"employee_name\": \"Maria Garcia\", \"annual_salary\": 60500}\n```"}
	h, mr := setupHandler(t, model)

	out, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-1",
		StorageURL: srv.URL + "/paystub.png",
	})
	require.NoError(t, err)

	assert.False(t, out.FromCache)
	assert.Equal(t, "Maria Garcia", out.Raw["employee_name"])
	assert.Equal(t, float64(60500), out.Raw["annual_salary"])
	assert.Equal(t, "image/png", model.mimeType)

	cached, err := mr.Get("extraction:document:doc-1")
	require.NoError(t, err)
	var cachedMap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cached), &cachedMap))
	assert.Equal(t, "Maria Garcia", cachedMap["employee_name"])
}

func TestExecute_CacheHitSkipsModel(t *testing.T) {
	model := &fakeModel{response: "{}"}
	h, mr := setupHandler(t, model)

	seed, _ := json.Marshal(map[string]interface{}{"employee_name": "Cached Name"})
	mr.Set("extraction:document:doc-2", string(seed))

	out, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-2",
		StorageURL: "http://unreachable.invalid/paystub.jpg",
	})
	require.NoError(t, err)

	assert.True(t, out.FromCache)
	assert.Equal(t, "Cached Name", out.Raw["employee_name"])
	assert.Zero(t, model.calls)
}

func TestExecute_CorruptCacheEntryIgnored(t *testing.T) {
	srv := documentServer(t)
	model := &fakeModel{response: `{"employee_name": "Fresh"}`}
	h, mr := setupHandler(t, model)

	mr.Set("extraction:document:doc-3", "not json at all")

	out, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-3",
		StorageURL: srv.URL + "/doc.pdf",
	})
	require.NoError(t, err)

	assert.False(t, out.FromCache)
	assert.Equal(t, "Fresh", out.Raw["employee_name"])
	assert.Equal(t, 1, model.calls)
}

// ==========================
// Response Parsing
// ==========================

func TestExecute_ParsesVariousResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"json fence", "```json\n{\"employee_name\": \"A\"}\n```"},
		{"bare fence", "```\n{\"employee_name\": \"A\"}\n```"},
		{"no fence", `Here is the result: {"employee_name": "A"} hope it helps`},
		{"python literals repaired", "{'employee_name': 'A', 'ssn': None}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := documentServer(t)
			h, _ := setupHandler(t, &fakeModel{response: tt.response})

			out, err := h.Execute(context.Background(), &Input{
				DocumentID: "doc-p",
				StorageURL: srv.URL + "/p.jpg",
			})
			require.NoError(t, err)
			assert.Equal(t, "A", out.Raw["employee_name"])
		})
	}
}

func TestExecute_UnparseableResponseFallsBackToNulls(t *testing.T) {
	srv := documentServer(t)
	h, mr := setupHandler(t, &fakeModel{response: "I could not read this document, sorry."})

	out, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-4",
		StorageURL: srv.URL + "/p.jpg",
	})
	require.NoError(t, err, "parse failure must degrade, not error")

	assert.Contains(t, out.Raw, "employee_name")
	assert.Nil(t, out.Raw["employee_name"])
	assert.Nil(t, out.Raw["annual_salary"])

	// Degraded results must not poison the cache.
	assert.False(t, mr.Exists("extraction:document:doc-4"))
}

func TestExecute_NonObjectResponseFallsBackToNulls(t *testing.T) {
	srv := documentServer(t)
	h, _ := setupHandler(t, &fakeModel{response: `["a", "list"]`})

	out, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-5",
		StorageURL: srv.URL + "/p.jpg",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Raw["employee_name"])
}

// ==========================
// Failure Modes
// ==========================

func TestExecute_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h, _ := setupHandler(t, &fakeModel{})

	_, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-6",
		StorageURL: srv.URL + "/missing.pdf",
	})
	require.Error(t, err)

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeDocumentDownloadFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestExecute_ModelFailure(t *testing.T) {
	srv := documentServer(t)
	h, _ := setupHandler(t, &fakeModel{err: fmt.Errorf("model overloaded")})

	_, err := h.Execute(context.Background(), &Input{
		DocumentID: "doc-7",
		StorageURL: srv.URL + "/p.jpg",
	})
	require.Error(t, err)

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeExtractionFailed, stdErr.Code)
}

// ==========================
// MIME Inference
// ==========================

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://storage.example.com/docs/stub.pdf", "application/pdf"},
		{"https://storage.example.com/docs/stub.PNG", "image/png"},
		{"https://storage.example.com/docs/stub.jpg", "image/jpeg"},
		{"https://storage.example.com/docs/stub.jpeg", "image/jpeg"},
		{"https://storage.example.com/docs/stub.tiff", "image/jpeg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mimeTypeFor(tt.url), tt.url)
	}
}
