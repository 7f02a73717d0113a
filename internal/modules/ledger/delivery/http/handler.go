package http

import (
	"net/http"

	ledgerDto "anoa.com/memberclub/internal/modules/ledger/dto"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	"anoa.com/memberclub/pkg/response"
	"anoa.com/memberclub/pkg/validator"
	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	service ledgerService.LedgerService
}

func NewLedgerHandler(service ledgerService.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	balance, err := h.service.GetBalanceAndRank(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

func (h *LedgerHandler) GetLedger(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query ledgerDto.LedgerQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	entries, err := h.service.GetRecentEntries(c.Request.Context(), userID, query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *LedgerHandler) GetLeaderboard(c *gin.Context) {
	var query ledgerDto.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	leaderboard, err := h.service.GetLeaderboard(c.Request.Context(), query.Limit, query.Timeframe)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": leaderboard})
}
