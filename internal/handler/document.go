package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
	"github.com/tgo/mindvault/internal/service"
)

type DocumentHandler struct {
	svc    *service.DocumentService
	chunks *service.ChunkService
}

func NewDocumentHandler(svc *service.DocumentService, chunks *service.ChunkService) *DocumentHandler {
	return &DocumentHandler{svc: svc, chunks: chunks}
}

// Submit records a pending document and returns immediately; poll the
// document for the processing outcome.
func (h *DocumentHandler) Submit(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	var input service.SubmitDocumentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.svc.Submit(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	libraryID, err := uuid.Parse(c.Query("library_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid library_id"})
		return
	}
	page, pageSize, offset := pageParams(c)

	filter := repository.DocumentFilter{
		State:    model.DocumentState(c.Query("state")),
		FileName: c.Query("file_name"),
	}

	docs, total, err := h.svc.List(c.Request.Context(), actor, libraryID, filter, pageSize, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, docs, total, page, pageSize)
}

type deleteDocumentsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	var req deleteDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListChunks returns the chunk set of a completed document, ordered.
func (h *DocumentHandler) ListChunks(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	page, pageSize, offset := pageParams(c)

	chunks, total, err := h.chunks.ListByDocument(c.Request.Context(), actor, id, pageSize, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, chunks, total, page, pageSize)
}
