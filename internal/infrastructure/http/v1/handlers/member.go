package handlers

import (
	"github.com/gin-gonic/gin"

	"txscope/internal/core/apperror"
	"txscope/internal/domain/member"
	"txscope/internal/infrastructure/http/v1/dto"
)

// MemberHandler handles member endpoints.
type MemberHandler struct {
	*BaseHandler
	svc *member.Service
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(base *BaseHandler, svc *member.Service) *MemberHandler {
	return &MemberHandler{BaseHandler: base, svc: svc}
}

// Join registers a member.
// POST /v1/members
func (h *MemberHandler) Join(c *gin.Context) {
	var req dto.JoinRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Mode {
	case dto.JoinModeSeparate:
		err = h.svc.JoinV1(ctx, req.Username)
	case dto.JoinModeRecover:
		err = h.svc.JoinV2(ctx, req.Username)
	default:
		err = h.svc.Join(ctx, req.Username)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.svc.FindMember(ctx, req.Username)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m.ID.String())
}

// Get returns a member by username.
// GET /v1/members/:username
func (h *MemberHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.Param("username")

	m, err := h.svc.FindMember(ctx, username)
	if err != nil {
		h.Error(c, err)
		return
	}

	_, err = h.svc.FindLog(ctx, username)
	if err != nil && !apperror.IsNotFound(err) {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMember(m, err == nil))
}
