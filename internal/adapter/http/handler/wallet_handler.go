package handler

import (
	"errors"
	"net/http"

	"economy-core/internal/adapter/http/dto"
	"economy-core/internal/adapter/http/middleware"
	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/pkg/apperror"
	"economy-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler exposes the wallet engine to authenticated modules.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	moduleID, ok := requireModule(c)
	if !ok {
		return
	}

	var req dto.MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res := h.walletSvc.Deposit(c.Request.Context(), ports.MutationRequest{
		ModuleID:       moduleID,
		Player:         req.Player,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	writeResult(c, res)
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	moduleID, ok := requireModule(c)
	if !ok {
		return
	}

	var req dto.MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res := h.walletSvc.Withdraw(c.Request.Context(), ports.MutationRequest{
		ModuleID:       moduleID,
		Player:         req.Player,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	writeResult(c, res)
}

// Transfer handles POST /api/v1/wallet/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	moduleID, ok := requireModule(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res := h.walletSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		ModuleID:       moduleID,
		From:           req.From,
		To:             req.To,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	writeResult(c, res)
}

// GetBalance handles GET /api/v1/players/:player/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	player := c.Param("player")

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), player)
	if err != nil {
		// A database failure is not a missing player.
		code := domain.CodeConnectionLost
		if errors.Is(err, domain.ErrUnknownPlayer) {
			code = domain.CodeUnknownPlayer
		}
		response.Error(c, apperror.FromCode(string(code), err.Error()))
		return
	}

	response.OK(c, dto.BalanceResponse{Player: player, Balance: balance})
}

// Seen handles POST /api/v1/players/seen.
func (h *WalletHandler) Seen(c *gin.Context) {
	var req dto.SeenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	id, err := uuid.Parse(req.UUID)
	if err != nil {
		response.Error(c, apperror.Validation("uuid is not valid"))
		return
	}

	if err := h.walletSvc.Seen(c.Request.Context(), id, req.Name); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	c.Status(http.StatusNoContent)
}

// writeResult maps a wallet result onto the wire. The HTTP status derives
// from the canonical code; the body always carries the full result so
// callers can branch on the code without parsing statuses.
func writeResult(c *gin.Context, res domain.Result) {
	status := http.StatusOK
	if !res.OK {
		status = apperror.FromCode(string(res.Code), res.Message).HTTPStatus
	}
	response.Status(c, status, dto.MutationResponse{
		OK:         res.OK,
		Code:       string(res.Code),
		Message:    res.Message,
		Replayed:   res.Replayed,
		NewBalance: res.NewBalance,
	})
}

// requireModule pulls the authenticated module id set by the auth middleware.
func requireModule(c *gin.Context) (string, bool) {
	moduleID, ok := c.Get(middleware.CtxModuleID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return "", false
	}
	return moduleID.(string), true
}
