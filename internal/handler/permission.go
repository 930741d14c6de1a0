package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/repository"
	"github.com/tgo/mindvault/internal/service"
)

type PermissionHandler struct {
	svc *service.PermissionService
}

func NewPermissionHandler(svc *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

// managing grants requires manage on the target library
func (h *PermissionHandler) requireManage(c *gin.Context, libraryID uuid.UUID) bool {
	actor, ok := identity(c)
	if !ok {
		return false
	}
	if err := h.svc.Require(c.Request.Context(), actor, libraryID, model.PrivilegeManage); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

type createGrantRequest struct {
	TargetType    model.TargetType    `json:"target_type" binding:"required"`
	TargetID      string              `json:"target_id" binding:"required"`
	LibraryID     uuid.UUID           `json:"library_id" binding:"required"`
	PrivilegeType model.PrivilegeType `json:"privilege_type" binding:"required"`
	Description   string              `json:"description"`
}

func (h *PermissionHandler) Create(c *gin.Context) {
	var req createGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireManage(c, req.LibraryID) {
		return
	}

	grant := &model.PermissionGrant{
		TargetType:    req.TargetType,
		TargetID:      req.TargetID,
		LibraryID:     req.LibraryID,
		PrivilegeType: req.PrivilegeType,
		Description:   req.Description,
	}
	created, err := h.svc.CreateGrant(c.Request.Context(), grant)
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"created": false})
		return
	}
	c.JSON(http.StatusCreated, grant)
}

type batchAssociateRequest struct {
	TargetType    model.TargetType    `json:"target_type" binding:"required"`
	TargetIDs     []string            `json:"target_ids" binding:"required"`
	LibraryID     uuid.UUID           `json:"library_id" binding:"required"`
	PrivilegeType model.PrivilegeType `json:"privilege_type" binding:"required"`
}

// BatchAssociate upserts one grant per target, atomically.
func (h *PermissionHandler) BatchAssociate(c *gin.Context) {
	var req batchAssociateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireManage(c, req.LibraryID) {
		return
	}

	err := h.svc.BatchAssociate(c.Request.Context(), req.TargetType, req.TargetIDs, req.LibraryID, req.PrivilegeType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"associated": len(req.TargetIDs)})
}

func (h *PermissionHandler) List(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	page, pageSize, offset := pageParams(c)

	filter := repository.GrantFilter{
		TargetType: model.TargetType(c.Query("target_type")),
		TargetID:   c.Query("target_id"),
		Status:     model.GrantStatus(c.Query("status")),
	}
	if raw := c.Query("library_id"); raw != "" {
		libID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid library_id"})
			return
		}
		filter.LibraryID = libID
	}

	grants, total, err := h.svc.ListGrants(c.Request.Context(), actor, filter, pageSize, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, grants, total, page, pageSize)
}

type grantIDsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

func (h *PermissionHandler) Delete(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	var req grantIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireManageAll(c, req.IDs) {
		return
	}
	if err := h.svc.DeleteGrants(c.Request.Context(), req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type grantStatusRequest struct {
	IDs    []uuid.UUID       `json:"ids" binding:"required"`
	Status model.GrantStatus `json:"status" binding:"required"`
}

// SetStatus toggles grants between active and disabled in bulk.
func (h *PermissionHandler) SetStatus(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	var req grantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireManageAll(c, req.IDs) {
		return
	}
	if err := h.svc.SetGrantStatus(c.Request.Context(), req.IDs, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// requireManageAll checks manage on every library the listed grants touch.
func (h *PermissionHandler) requireManageAll(c *gin.Context, ids []uuid.UUID) bool {
	actor, ok := identity(c)
	if !ok {
		return false
	}
	grants, err := h.svc.ListGrantsByIDs(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return false
	}
	seen := make(map[uuid.UUID]bool)
	for _, g := range grants {
		if seen[g.LibraryID] {
			continue
		}
		seen[g.LibraryID] = true
		if err := h.svc.Require(c.Request.Context(), actor, g.LibraryID, model.PrivilegeManage); err != nil {
			respondError(c, err)
			return false
		}
	}
	return true
}
