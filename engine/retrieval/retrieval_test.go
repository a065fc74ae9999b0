package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intent"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
)

// --- mocks ---

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	return m.vec, m.err
}

type searchCall struct {
	collection string
	topK       int
	threshold  float32
}

type mockSearcher struct {
	// byCollection routes results per collection name.
	byCollection map[string][]semantic.SearchResult
	err          error
	calls        []searchCall
}

func (m *mockSearcher) Search(_ context.Context, collection string, _ []float32, topK int, threshold float32) ([]semantic.SearchResult, error) {
	m.calls = append(m.calls, searchCall{collection, topK, threshold})
	if m.err != nil {
		return nil, m.err
	}
	return m.byCollection[collection], nil
}

func newRetriever(e *mockEmbedder, s *mockSearcher) *Retriever {
	return New(e, s, slog.Default())
}

// --- tests ---

func TestRetrieve_Success(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1, 0.2}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		"jewelrybox_products": {
			{ID: "1", Score: 0.9, Content: "solitaire guide", URL: "https://x/solitaire"},
			{ID: "2", Score: 0.7, Content: "metal guide"},
		},
	}}
	r := newRetriever(e, s)

	hits := r.Retrieve(context.Background(), "diamonds", "jewelrybox_products", 3, 0.5)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Content != "solitaire guide" || hits[0].Score != 0.9 {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].URL != "https://x/solitaire" {
		t.Errorf("URL not carried through: %+v", hits[0])
	}
}

func TestRetrieve_Idempotent(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1, 0.2}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		"c": {
			{ID: "1", Score: 0.9, Content: "first"},
			{ID: "2", Score: 0.7, Content: "second"},
		},
	}}
	r := newRetriever(e, s)

	a := r.Retrieve(context.Background(), "q", "c", 3, 0.5)
	b := r.Retrieve(context.Background(), "q", "c", 3, 0.5)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("result %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRetrieve_EmbedFailureSoftFails(t *testing.T) {
	e := &mockEmbedder{err: errors.New("provider down")}
	s := &mockSearcher{}
	r := newRetriever(e, s)

	if hits := r.Retrieve(context.Background(), "q", "c", 3, 0.5); hits != nil {
		t.Errorf("got %v, want nil on embed failure", hits)
	}
	if len(s.calls) != 0 {
		t.Error("search must not run when embedding fails")
	}
}

func TestRetrieve_SearchFailureSoftFails(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{err: errors.New("collection missing")}
	r := newRetriever(e, s)

	if hits := r.Retrieve(context.Background(), "q", "c", 3, 0.5); hits != nil {
		t.Errorf("got %v, want nil on search failure", hits)
	}
}

func TestRetrieve_ZeroK(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{}
	r := newRetriever(e, s)

	if hits := r.Retrieve(context.Background(), "q", "c", 0, 0.5); hits != nil {
		t.Errorf("got %v, want nil for k=0", hits)
	}
	if e.calls != 0 {
		t.Error("no embedding call expected for k=0")
	}
}

func TestSmartRetrieve_HighConfidenceSkipsFallback(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		"jewelrybox_products": {{ID: "1", Score: 0.95, Content: "diamond guide"}},
	}}
	r := newRetriever(e, s)

	hits := r.SmartRetrieve(context.Background(), "diamond rings", 4, 0.75)
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if len(s.calls) != 1 {
		t.Fatalf("got %d search calls, want 1 (no fallback)", len(s.calls))
	}
	if s.calls[0].collection != "jewelrybox_products" {
		t.Errorf("searched %q, want products collection", s.calls[0].collection)
	}
}

func TestSmartRetrieve_WeakPrimaryTriggersFallback(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		"jewelrybox_products":    {{ID: "1", Score: 0.76, Content: "weak primary"}},
		intent.DefaultCollection: {{ID: "2", Score: 0.82, Content: "broader hit"}},
	}}
	r := newRetriever(e, s)

	hits := r.SmartRetrieve(context.Background(), "diamond rings", 4, 0.75)
	if len(s.calls) != 2 {
		t.Fatalf("got %d search calls, want 2", len(s.calls))
	}
	fb := s.calls[1]
	if fb.collection != intent.DefaultCollection {
		t.Errorf("fallback searched %q, want default collection", fb.collection)
	}
	if fb.topK != 2 {
		t.Errorf("fallback topK = %d, want k/2 = 2", fb.topK)
	}
	if fb.threshold != 0.6 {
		t.Errorf("fallback threshold = %v, want 0.6", fb.threshold)
	}
	// Merged results come back in descending score order.
	if len(hits) != 2 || hits[0].Content != "broader hit" {
		t.Errorf("unexpected merged hits: %+v", hits)
	}
}

func TestSmartRetrieve_EmptyPrimaryTriggersFallback(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		intent.DefaultCollection: {{ID: "2", Score: 0.7, Content: "only broad"}},
	}}
	r := newRetriever(e, s)

	hits := r.SmartRetrieve(context.Background(), "diamond rings", 4, 0.75)
	if len(s.calls) != 2 {
		t.Fatalf("got %d search calls, want 2", len(s.calls))
	}
	if len(hits) != 1 || hits[0].Content != "only broad" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestSmartRetrieve_NoFallbackForSmallK(t *testing.T) {
	// k/2 is zero for k=1, so even a weak primary issues no second search.
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{}}
	r := newRetriever(e, s)

	r.SmartRetrieve(context.Background(), "diamond rings", 1, 0.75)
	if len(s.calls) != 1 {
		t.Errorf("got %d search calls, want 1 for k=1", len(s.calls))
	}
}

func TestSmartRetrieve_DedupesAcrossPasses(t *testing.T) {
	// The default collection holds every passage, so the fallback pass can
	// return the same content the primary already found.
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		"jewelrybox_products": {{ID: "1", Score: 0.7, Content: "shared passage"}},
		intent.DefaultCollection: {
			{ID: "9", Score: 0.65, Content: "shared passage"},
			{ID: "10", Score: 0.62, Content: "unique passage"},
		},
	}}
	r := newRetriever(e, s)

	hits := r.SmartRetrieve(context.Background(), "diamond rings", 4, 0.6)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 after dedupe: %+v", len(hits), hits)
	}
	if hits[0].Content != "shared passage" || hits[0].Score != 0.7 {
		t.Errorf("dedupe should keep best-scored copy: %+v", hits[0])
	}
}

func TestSmartRetrieve_TruncatesToK(t *testing.T) {
	e := &mockEmbedder{vec: []float32{0.1}}
	s := &mockSearcher{byCollection: map[string][]semantic.SearchResult{
		"jewelrybox_products": {
			{ID: "1", Score: 0.79, Content: "a"},
			{ID: "2", Score: 0.78, Content: "b"},
		},
		intent.DefaultCollection: {
			{ID: "3", Score: 0.77, Content: "c"},
			{ID: "4", Score: 0.76, Content: "d"},
		},
	}}
	r := newRetriever(e, s)

	hits := r.SmartRetrieve(context.Background(), "diamond rings", 3, 0.6)
	if len(hits) != 3 {
		t.Errorf("got %d hits, want k=3", len(hits))
	}
}

func TestSmartRetrieve_AllFailuresYieldEmpty(t *testing.T) {
	e := &mockEmbedder{err: errors.New("down")}
	s := &mockSearcher{}
	r := newRetriever(e, s)

	if hits := r.SmartRetrieve(context.Background(), "diamond rings", 4, 0.75); len(hits) != 0 {
		t.Errorf("got %v, want empty", hits)
	}
}

func TestNeedsFallback(t *testing.T) {
	hitsWithScores := func(scores ...float32) []domain.SearchHit {
		out := make([]domain.SearchHit, len(scores))
		for i, s := range scores {
			out[i] = domain.SearchHit{Score: s}
		}
		return out
	}

	if !needsFallback(nil) {
		t.Error("empty hits need fallback")
	}
	if !needsFallback(hitsWithScores(0.5, 0.79)) {
		t.Error("all-weak hits should need fallback")
	}
	if needsFallback(hitsWithScores(0.5, 0.8)) {
		t.Error("a hit at the high-confidence bound should not need fallback")
	}
}
