package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
)

type ChunkStore interface {
	ListByDocumentID(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]model.Chunk, int64, error)
	SearchByLibrary(ctx context.Context, libraryID uuid.UUID, embedding interface{}, topK int) ([]repository.ChunkMatch, error)
}

type ChunkDocumentStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
}

// QueryEmbedder embeds recall-test queries.
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error)
}

type ChunkService struct {
	chunks    ChunkStore
	documents ChunkDocumentStore
	libraries LibraryGetter
	perms     PermissionChecker
	embedder  QueryEmbedder
}

func NewChunkService(chunks ChunkStore, documents ChunkDocumentStore, libraries LibraryGetter, perms PermissionChecker, embedder QueryEmbedder) *ChunkService {
	return &ChunkService{chunks: chunks, documents: documents, libraries: libraries, perms: perms, embedder: embedder}
}

// ListByDocument returns a document's chunks ordered by order_index.
func (s *ChunkService) ListByDocument(ctx context.Context, actor model.Identity, documentID uuid.UUID, limit, offset int) ([]model.Chunk, int64, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperr.NotFound("document")
		}
		return nil, 0, err
	}
	if err := s.perms.Require(ctx, actor, doc.LibraryID, model.PrivilegeRead); err != nil {
		return nil, 0, err
	}
	return s.chunks.ListByDocumentID(ctx, documentID, limit, offset)
}

type SearchInput struct {
	Query     string   `json:"query" binding:"required"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

type SearchResult struct {
	Chunk      model.Chunk `json:"chunk"`
	Similarity float64     `json:"similarity"`
}

// Search runs a recall test over a library's chunks: cosine similarity with
// the library's threshold and max_chunks as defaults.
func (s *ChunkService) Search(ctx context.Context, actor model.Identity, libraryID uuid.UUID, input SearchInput) ([]SearchResult, error) {
	if err := s.perms.Require(ctx, actor, libraryID, model.PrivilegeRead); err != nil {
		return nil, err
	}
	lib, err := s.libraries.FindByID(ctx, libraryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("library")
		}
		return nil, err
	}
	if input.Query == "" {
		return nil, apperr.Validationf("query must not be empty")
	}

	topK := input.TopK
	if topK <= 0 {
		topK = lib.MaxChunks
	}
	threshold := lib.SimilarityThreshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	matches, err := s.chunks.SearchByLibrary(ctx, libraryID, embedding, topK)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		similarity := 1 - m.Distance
		if threshold > 0 && similarity < threshold {
			continue
		}
		results = append(results, SearchResult{Chunk: m.Chunk, Similarity: similarity})
	}
	return results, nil
}
