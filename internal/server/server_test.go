package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/config"
	"pdfqa/internal/adapter/chunker"
	"pdfqa/internal/adapter/embedding"
	"pdfqa/internal/adapter/memstore"
	"pdfqa/internal/domain"
	"pdfqa/internal/logging"
	"pdfqa/internal/port"
	"pdfqa/internal/usecase"
)

type stubExtractor struct{ pages []string }

func (s stubExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	return s.pages, nil
}

type stubLLM struct{ output string }

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return s.output, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

var pages = []string{
	"Refund policy. Customers may request a full refund within thirty days of purchase by contacting support.",
	"Shipping times. Orders ship within two business days and arrive in five to seven days by ground freight.",
	"tiny",
}

type testServer struct {
	handler http.Handler
	llm     *stubLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithPages(t, pages)
}

func newTestServerWithPages(t *testing.T, pages []string) *testServer {
	t.Helper()
	log := logging.Discard()

	chunks := memstore.NewMemoryStore()
	indexes := memstore.NewIndexStore()
	provider := embedding.NewProvider(func(context.Context) (port.Embedder, error) {
		return embedding.NewHashEmbedder(128), nil
	}, 5*time.Second, log)

	wc, err := chunker.NewWindowChunker(1200, 200)
	require.NoError(t, err)

	llm := &stubLLM{}
	deps := Deps{
		Ingest:   usecase.NewIngestUseCase(chunks, stubExtractor{pages: pages}, wc, t.TempDir(), 0, log),
		Index:    usecase.NewIndexUseCase(chunks, indexes, provider, 30, 64, log),
		Retrieve: usecase.NewRetrieveUseCase(chunks, indexes, provider, nil, log),
		Answer:   usecase.NewAnswerUseCase(llm, time.Second, log),
	}

	cfg := config.DefaultConfig().Server
	cfg.MaxUploadBytes = 1024
	return &testServer{handler: New(deps, cfg, 5, log).Handler(), llm: llm}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func (ts *testServer) postJSON(t *testing.T, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req)
}

func uploadRequest(t *testing.T, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (ts *testServer) uploadAndIndex(t *testing.T) string {
	t.Helper()
	rec, body := ts.do(t, uploadRequest(t, "policy.pdf", "application/pdf", "%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code, body)
	docID := body["doc_id"].(string)

	rec, body = ts.postJSON(t, "/index/"+docID, "")
	require.Equal(t, http.StatusOK, rec.Code, body)
	return docID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestUploadIndexSearch(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, uploadRequest(t, "policy.pdf", "application/pdf", "%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code)
	docID := body["doc_id"].(string)
	assert.Equal(t, float64(3), body["pages"])
	assert.Equal(t, float64(3), body["total_chunks"])

	rec, body = ts.postJSON(t, "/index/"+docID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total_chunks_loaded"])
	assert.Equal(t, float64(2), body["total_chunks_indexed"])
	assert.Equal(t, float64(128), body["embedding_dim"])

	rec, body = ts.postJSON(t, "/search", `{"doc_id":"`+docID+`","query":"refund within thirty days"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["k"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	top := results[0].(map[string]any)
	assert.Equal(t, domain.ChunkUID(docID, 0), top["chunk_uid"])
	assert.Equal(t, float64(1), top["page_number"])
	assert.NotContains(t, top, "error")
}

func TestUploadErrors(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, uploadRequest(t, "notes.txt", "text/plain", "hello"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "error", body["status"])

	rec, _ = ts.do(t, uploadRequest(t, "", "application/pdf", "%PDF"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.postJSON(t, "/upload", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, uploadRequest(t, "big.pdf", "application/pdf", strings.Repeat("x", 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIndexErrors(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.postJSON(t, "/index/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexImageOnlyDocument(t *testing.T) {
	ts := newTestServerWithPages(t, []string{"", ""})

	rec, body := ts.do(t, uploadRequest(t, "scan.pdf", "application/pdf", "%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.EqualValues(t, 0, body["total_chunks"])

	rec, body = ts.postJSON(t, "/index/"+body["doc_id"].(string), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "error", body["status"])
}

func TestSearchErrors(t *testing.T) {
	ts := newTestServer(t)
	docID := ts.uploadAndIndex(t)

	rec, _ := ts.postJSON(t, "/search", `{"doc_id":"`+docID+`","query":"refund","k":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.postJSON(t, "/search", `{"doc_id":"`+docID+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.postJSON(t, "/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.postJSON(t, "/search", `{"doc_id":"missing","query":"refund"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnswerEndpoint(t *testing.T) {
	ts := newTestServer(t)
	results := `[{"score":0.9,"chunk_uid":"d1_0","chunk_id":0,"page_number":1,"text":"Refunds within 30 days."},` +
		`{"score":0.5,"chunk_uid":"d1_1","chunk_id":1,"page_number":2,"text":"Ships in 2 days."}]`

	ts.llm.output = `{"answer":"30 days [d1_0]","citations":[{"chunk_id":"d1_0","page":1,"snippet":"Refunds within 30 days."}]}`
	rec, body := ts.postJSON(t, "/answer", `{"question":"refund window?","results":`+results+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "30 days [d1_0]", body["answer"])
	assert.Len(t, body["citations"], 1)

	ts.llm.output = `{"answer":"x","citations":[{"chunk_id":"d1_2","page":3,"snippet":"s"}]}`
	rec, body = ts.postJSON(t, "/answer", `{"question":"refund window?","results":`+results+`}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "d1_2")

	rec, body = ts.postJSON(t, "/answer", `{"question":"refund window?","results":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.FallbackAnswer, body["answer"])
	assert.Equal(t, []any{}, body["citations"])

	rec, _ = ts.postJSON(t, "/answer", `{"question":"","results":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskEndpoint(t *testing.T) {
	ts := newTestServer(t)
	docID := ts.uploadAndIndex(t)
	uid := domain.ChunkUID(docID, 0)

	ts.llm.output = "```json\n" + `{"answer":"Within thirty days [` + uid + `].","citations":[{"chunk_id":"` + uid + `","page":1,"snippet":"full refund"}]}` + "\n```"
	rec, body := ts.postJSON(t, "/ask", `{"doc_id":"`+docID+`","question":"How long do I have to ask for a refund?","k":2}`)
	require.Equal(t, http.StatusOK, rec.Code, body)

	search := body["search"].(map[string]any)
	assert.Equal(t, float64(2), search["k"])
	answer := body["answer"].(map[string]any)
	assert.Equal(t, "Within thirty days ["+uid+"].", answer["answer"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrMissingFilename, http.StatusBadRequest},
		{domain.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{domain.ErrInvalidK, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNoContent, http.StatusUnprocessableEntity},
		{domain.NewGuardrailError(domain.KindParse, "x", ""), http.StatusBadGateway},
		{domain.ErrIndexMismatch, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
