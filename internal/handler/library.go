package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
	"github.com/tgo/mindvault/internal/service"
)

type LibraryHandler struct {
	svc    *service.LibraryService
	chunks *service.ChunkService
}

func NewLibraryHandler(svc *service.LibraryService, chunks *service.ChunkService) *LibraryHandler {
	return &LibraryHandler{svc: svc, chunks: chunks}
}

func (h *LibraryHandler) Create(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	var input service.CreateLibraryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lib, err := h.svc.Create(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lib)
}

func (h *LibraryHandler) Get(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	includeStats := c.Query("include_stats") == "true"
	lib, err := h.svc.Get(c.Request.Context(), actor, id, includeStats)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lib)
}

func (h *LibraryHandler) Update(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var input service.UpdateLibraryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lib, err := h.svc.Update(c.Request.Context(), actor, id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lib)
}

func (h *LibraryHandler) List(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	page, pageSize, offset := pageParams(c)

	filter := repository.LibraryFilter{
		Name:           c.Query("name"),
		Status:         model.LibraryStatus(c.Query("status")),
		DepartmentCode: c.Query("department_code"),
	}

	libs, total, err := h.svc.List(c.Request.Context(), actor, filter, pageSize, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, libs, total, page, pageSize)
}

func (h *LibraryHandler) Enable(c *gin.Context) {
	h.setStatus(c, model.LibraryStatusActive)
}

func (h *LibraryHandler) Disable(c *gin.Context) {
	h.setStatus(c, model.LibraryStatusDisabled)
}

func (h *LibraryHandler) setStatus(c *gin.Context, status model.LibraryStatus) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.svc.SetStatus(c.Request.Context(), actor, id, status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *LibraryHandler) Delete(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Search runs a recall test over the library's chunks.
func (h *LibraryHandler) Search(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var input service.SearchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.chunks.Search(c.Request.Context(), actor, id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}
