package handler

import (
	"economy-core/internal/adapter/http/dto"
	"economy-core/internal/core/ports"
	"economy-core/pkg/apperror"
	"economy-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// ModuleHandler handles module registration and login.
type ModuleHandler struct {
	authSvc ports.ModuleAuthService
}

// NewModuleHandler creates a new ModuleHandler.
func NewModuleHandler(authSvc ports.ModuleAuthService) *ModuleHandler {
	return &ModuleHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/modules/register.
func (h *ModuleHandler) Register(c *gin.Context) {
	var req dto.RegisterModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	module, err := h.authSvc.Register(c.Request.Context(), ports.RegisterModuleRequest{
		ID:     req.ID,
		Name:   req.Name,
		Secret: req.Secret,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisterModuleResponse{
		ModuleID: module.ID,
		Name:     module.Name,
		Status:   string(module.Status),
	})
}

// Login handles POST /api/v1/modules/login.
func (h *ModuleHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.ID, req.Secret)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}
