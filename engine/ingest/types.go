package ingest

import "github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text     string
	Index    int
	Domain   string
	URL      string
	Metadata map[string]string
}

// ProgressEvent reports per-collection build progress over NATS.
type ProgressEvent struct {
	Collection string `json:"collection"`
	Passages   int    `json:"passages"`
	Chunks     int    `json:"chunks"`
	Stored     int    `json:"stored"`
}

// chunksFromPassage splits one passage into embeddable chunks, carrying its
// domain and source URL metadata through to the vector payload.
func chunksFromPassage(p domain.Passage, chunkSize, overlap int) []Chunk {
	sentences := splitSentences(p.Content)
	pieces := chunkSentences(sentences, chunkSize, overlap)
	if len(pieces) == 0 {
		pieces = []string{p.Content}
	}

	out := make([]Chunk, len(pieces))
	for i, text := range pieces {
		out[i] = Chunk{
			Text:     text,
			Index:    i,
			Domain:   p.Metadata["domain"],
			URL:      p.Metadata["url"],
			Metadata: p.Metadata,
		}
	}
	return out
}
