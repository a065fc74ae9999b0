package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intent"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
)

// --- mocks ---

type mockEmbedBatcher struct {
	dims  int
	err   error
	calls int
}

func (m *mockEmbedBatcher) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, m.dims)
	}
	return out, nil
}

type mockVectorWriter struct {
	recreated []string
	upserts   map[string][]semantic.VectorRecord
	err       error
}

func newMockWriter() *mockVectorWriter {
	return &mockVectorWriter{upserts: make(map[string][]semantic.VectorRecord)}
}

func (m *mockVectorWriter) RecreateCollection(_ context.Context, collection string, _ int) error {
	if m.err != nil {
		return m.err
	}
	m.recreated = append(m.recreated, collection)
	return nil
}

func (m *mockVectorWriter) Upsert(_ context.Context, collection string, records []semantic.VectorRecord) error {
	if m.err != nil {
		return m.err
	}
	m.upserts[collection] = append(m.upserts[collection], records...)
	return nil
}

// --- tests ---

func TestLoadPassages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.ndjson")
	content := `{"content": "Gold facts.", "metadata": {"domain": "education"}}

{"content": "Repair pricing.", "metadata": {"domain": "services", "url": "https://x/repair"}}
{"content": ""}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	passages, err := LoadPassages(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("got %d passages, want 2 (blank and empty-content lines skipped)", len(passages))
	}
	if passages[1].Metadata["url"] != "https://x/repair" {
		t.Errorf("metadata lost: %+v", passages[1])
	}
}

func TestLoadPassages_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.ndjson")
	if err := os.WriteFile(path, []byte("{broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPassages(path); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestLoadPassages_MissingFile(t *testing.T) {
	if _, err := LoadPassages(filepath.Join(t.TempDir(), "nope.ndjson")); err == nil {
		t.Error("expected error")
	}
}

func TestBuildIndexes(t *testing.T) {
	embed := &mockEmbedBatcher{dims: 4}
	writer := newMockWriter()
	b := NewBuilder(embed, writer, nil, 4, slog.Default())

	passages := []domain.Passage{
		{Content: "Diamond basics.", Metadata: map[string]string{"domain": "education"}},
		{Content: "Ring resizing.", Metadata: map[string]string{"domain": "services"}},
		{Content: "Untagged passage."},
	}
	if err := b.BuildIndexes(context.Background(), passages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every passage lands in the default collection.
	if got := len(writer.upserts[intent.DefaultCollection]); got != 3 {
		t.Errorf("default collection has %d records, want 3", got)
	}
	// Tagged passages also land in their domain collection.
	if got := len(writer.upserts["jewelrybox_education"]); got != 1 {
		t.Errorf("education collection has %d records, want 1", got)
	}
	if got := len(writer.upserts["jewelrybox_services"]); got != 1 {
		t.Errorf("services collection has %d records, want 1", got)
	}
	// Empty collections are skipped, not recreated.
	for _, c := range writer.recreated {
		if c == "jewelrybox_products" || c == "jewelrybox_commercial" {
			t.Errorf("empty collection %q should be skipped", c)
		}
	}
}

func TestBuildIndexes_PayloadFields(t *testing.T) {
	embed := &mockEmbedBatcher{dims: 4}
	writer := newMockWriter()
	b := NewBuilder(embed, writer, nil, 4, slog.Default())

	passages := []domain.Passage{
		{Content: "Sapphire care.", Metadata: map[string]string{
			"domain": "education",
			"url":    "https://x/sapphires",
		}},
	}
	if err := b.BuildIndexes(context.Background(), passages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := writer.upserts["jewelrybox_education"]
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	r := recs[0]
	if r.ID == "" {
		t.Error("record needs an ID")
	}
	if r.Payload["content"] != "Sapphire care." {
		t.Errorf("content payload = %v", r.Payload["content"])
	}
	if r.Payload["url"] != "https://x/sapphires" {
		t.Errorf("url payload = %v", r.Payload["url"])
	}
	if r.Payload["domain"] != "education" {
		t.Errorf("domain payload = %v", r.Payload["domain"])
	}
}

func TestBuildIndexes_EmbedFailure(t *testing.T) {
	embed := &mockEmbedBatcher{err: errors.New("quota exceeded")}
	writer := newMockWriter()
	b := NewBuilder(embed, writer, nil, 4, slog.Default())

	passages := []domain.Passage{{Content: "Diamond basics."}}
	if err := b.BuildIndexes(context.Background(), passages); err == nil {
		t.Error("expected error when embedding fails")
	}
	if embed.calls < 2 {
		t.Errorf("embedding should be retried, got %d calls", embed.calls)
	}
}

func TestBuildIndexes_NoPassages(t *testing.T) {
	writer := newMockWriter()
	b := NewBuilder(&mockEmbedBatcher{dims: 4}, writer, nil, 4, slog.Default())

	if err := b.BuildIndexes(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.recreated) != 0 {
		t.Errorf("nothing should be recreated, got %v", writer.recreated)
	}
}
