package ingest

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/tgo/mindvault/internal/model"
)

// Processor turns one claimed document into its ordered chunk set. Any error
// (including a cancelled or expired context) fails the document; the
// coordinator records the outcome.
type Processor interface {
	Process(ctx context.Context, doc *model.Document) ([]model.Chunk, error)
}

// FileResolver maps a document's file reference to the stored file.
type FileResolver interface {
	FindByReference(ctx context.Context, reference string) (*model.UploadedFile, error)
}

// Embedder computes embeddings for chunk contents.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error)
}

// TextProcessor extracts UTF-8 text from the stored file, splits it with the
// document's chunk parameters and embeds each segment.
type TextProcessor struct {
	files    FileResolver
	embedder Embedder
}

func NewTextProcessor(files FileResolver, embedder Embedder) *TextProcessor {
	return &TextProcessor{files: files, embedder: embedder}
}

func (p *TextProcessor) Process(ctx context.Context, doc *model.Document) ([]model.Chunk, error) {
	file, err := p.files.FindByReference(ctx, doc.FileReference)
	if err != nil {
		return nil, fmt.Errorf("file reference %q not resolvable: %w", doc.FileReference, err)
	}

	raw, err := os.ReadFile(file.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.StoragePath, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("unsupported encoding")
	}

	segments := SplitText(string(raw), doc.ChunkSize, doc.ChunkOverlap)
	if len(segments) == 0 {
		return nil, nil
	}

	embeddings, err := p.embedder.GenerateEmbeddings(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(segments) {
		return nil, fmt.Errorf("embedding count mismatch: %d segments, %d vectors", len(segments), len(embeddings))
	}

	chunks := make([]model.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = model.Chunk{
			DocumentID: doc.ID,
			OrderIndex: i,
			Content:    seg,
			TokenCount: EstimateTokens(seg),
			VectorRef:  uuid.New().String(),
			Embedding:  embeddings[i],
		}
	}
	return chunks, nil
}
