package handler

import (
	"net/http"
	"strconv"

	"economy-core/internal/adapter/http/dto"
	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/pkg/apperror"
	"economy-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// LedgerHandler exposes the audit log.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Log handles POST /api/v1/ledger/log. The entry is attributed to the
// authenticated module regardless of what the body claims.
func (h *LedgerHandler) Log(c *gin.Context) {
	moduleID, ok := requireModule(c)
	if !ok {
		return
	}

	var req dto.LedgerLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	logReq := ports.LogRequest{
		ModuleID:  moduleID,
		Op:        req.Op,
		Amount:    req.Amount,
		Reason:    req.Reason,
		OK:        req.OK,
		Code:      domain.Code(req.Code),
		IdemScope: req.IdemScope,
		IdemKey:   req.IdemKey,
		Extra:     req.Extra,
	}
	if req.From != nil {
		id, err := uuid.Parse(*req.From)
		if err != nil {
			response.Error(c, apperror.Validation("from is not a valid uuid"))
			return
		}
		logReq.From = &id
	}
	if req.To != nil {
		id, err := uuid.Parse(*req.To)
		if err != nil {
			response.Error(c, apperror.Validation("to is not a valid uuid"))
			return
		}
		logReq.To = &id
	}

	if err := h.ledgerSvc.Log(c.Request.Context(), logReq); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

// List handles GET /api/v1/ledger. Filters: module_id, player (uuid, matches
// either side), op, since_seq; paginated by page/page_size.
func (h *LedgerHandler) List(c *gin.Context) {
	params := ports.LedgerListParams{
		ModuleID: c.Query("module_id"),
		Op:       c.Query("op"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", defaultPageSize),
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		params.PageSize = defaultPageSize
	}

	if raw := c.Query("since_seq"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, apperror.Validation("since_seq must be an integer"))
			return
		}
		params.SinceSeq = seq
	}

	if raw := c.Query("player"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("player must be a uuid"))
			return
		}
		params.Player = &id
	}

	entries, total, err := h.ledgerSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.OK(c, dto.LedgerListResponse{
		Entries:  entries,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
