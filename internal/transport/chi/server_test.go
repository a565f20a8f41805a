package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyless-dev/copyless/internal/corpus"
	"github.com/copyless-dev/copyless/internal/domain"
	"github.com/copyless-dev/copyless/internal/index/lexical"
	"github.com/copyless-dev/copyless/internal/index/semantic"
	checkuc "github.com/copyless-dev/copyless/internal/usecase/check"
	healthuc "github.com/copyless-dev/copyless/internal/usecase/health"
)

const testCorpus = `The quick brown fox jumps over the lazy dog near the river bank.

A committee of researchers published a detailed study on marine biology last year.`

// stubEmbedder returns deterministic vectors so the semantic index is
// usable without a provider.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	// Cheap deterministic projection into 4 dimensions.
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r%13) / 13
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: 1}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte(testCorpus), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	store, err := corpus.Load(path, corpus.Paragraph)
	if err != nil {
		t.Fatalf("load corpus: %v", err)
	}

	lexIdx := lexical.New(lexical.Config{
		Permutations: 64,
		Threshold:    0.5,
		ShingleSize:  3,
		TopK:         5,
	}, store.Documents())

	semIdx, err := semantic.Build(context.Background(), semantic.Config{
		TopK:  5,
		Curve: semantic.Inverse,
	}, store.Documents(), stubEmbedder{})
	if err != nil {
		t.Fatalf("build semantic index: %v", err)
	}

	checkSvc := checkuc.New(store, lexIdx, semIdx, checkuc.Policy{
		WeightLexical:  0.6,
		WeightSemantic: 0.4,
		Aggregate:      checkuc.AggregateMax,
	}, 10)
	healthSvc := healthuc.New(checkSvc, nil, nil)

	r := chi.NewRouter()
	NewServer(checkSvc, healthSvc, zap.NewNop()).Register(r)
	return r
}

func TestCheckEndpoint_VerbatimMatch(t *testing.T) {
	router := newTestRouter(t)

	body := `{"text_to_check": "The quick brown fox jumps over the lazy dog near the river bank."}`
	req := httptest.NewRequest("POST", "/api/v1/check", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp checkResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.LexicalBreakdown < 95 {
		t.Errorf("lexical_breakdown = %v, expected >= 95 for verbatim input", resp.LexicalBreakdown)
	}
	if resp.OverallSimilarity <= 0 || resp.OverallSimilarity > 100 {
		t.Errorf("overall_similarity = %v, expected (0, 100]", resp.OverallSimilarity)
	}
	if len(resp.Matches) == 0 {
		t.Fatal("expected matches for verbatim input")
	}
	for _, m := range resp.Matches {
		if m.MatchType != "lexical" && m.MatchType != "semantic" {
			t.Errorf("unexpected match_type %q", m.MatchType)
		}
		if m.SimilarityScore < 0 || m.SimilarityScore > 100 {
			t.Errorf("similarity_score = %v out of range", m.SimilarityScore)
		}
	}
	if resp.ProcessingTimeS < 0 {
		t.Errorf("processing_time_s = %v, expected >= 0", resp.ProcessingTimeS)
	}
	if resp.Message == "" {
		t.Error("expected a non-empty message")
	}
}

func TestCheckEndpoint_ShortInput_400(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/check", strings.NewReader(`{"text_to_check": "short"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeInvalidInput {
		t.Errorf("code = %s, want %s", errResp.Code, codeInvalidInput)
	}
}

func TestCheckEndpoint_MalformedBody_400(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/check", strings.NewReader(`{not json`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeBadRequest {
		t.Errorf("code = %s, want %s", errResp.Code, codeBadRequest)
	}
}

func TestCheckEndpoint_Degraded_503(t *testing.T) {
	checkSvc := checkuc.NewUnavailable(os.ErrNotExist)
	healthSvc := healthuc.New(checkSvc, nil, nil)

	r := chi.NewRouter()
	NewServer(checkSvc, healthSvc, zap.NewNop()).Register(r)

	body := `{"text_to_check": "A perfectly reasonable input sentence for checking."}`
	req := httptest.NewRequest("POST", "/api/v1/check", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeCorpusUnavailable {
		t.Errorf("code = %s, want %s", errResp.Code, codeCorpusUnavailable)
	}

	// Health must report the corpus as failing.
	req = httptest.NewRequest("GET", "/health", http.NoBody)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var health healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("health status = %q, want degraded", health.Status)
	}
	if health.Checks["corpus"] != "error" {
		t.Errorf("corpus check = %q, want error", health.Checks["corpus"])
	}
}

func TestHealthEndpoint_OK(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var health healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Checks["corpus"] != "ok" {
		t.Errorf("corpus check = %q, want ok", health.Checks["corpus"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected Prometheus exposition output")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	long := strings.Repeat("a", matchedTextLimit+50)
	got := truncate(long, matchedTextLimit)
	if len([]rune(got)) != matchedTextLimit+3 {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), matchedTextLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis suffix")
	}
}
