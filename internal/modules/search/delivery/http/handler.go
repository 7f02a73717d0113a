package handler

import (
	"net/http"

	searchService "anoa.com/memberclub/internal/modules/search/service"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/response"
	"anoa.com/memberclub/pkg/validator"
	"github.com/gin-gonic/gin"
)

type SearchQuery struct {
	Q     string `form:"q" binding:"required,min=2,max=100"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type SearchHandler struct {
	index searchService.MemberIndex
}

func NewSearchHandler(index searchService.MemberIndex) *SearchHandler {
	return &SearchHandler{index: index}
}

func (h *SearchHandler) SearchMembers(c *gin.Context) {
	var query SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	hits, err := h.index.Search(c.Request.Context(), query.Q, query.Limit)
	if err != nil {
		logger.Default().WithError(err).Warn("member search failed")
		response.ResponseError(c, apperror.Unavailable("search members", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": hits})
}
