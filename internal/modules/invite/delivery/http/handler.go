package handler

import (
	"net/http"
	"strconv"

	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteService "anoa.com/memberclub/internal/modules/invite/service"
	"anoa.com/memberclub/pkg/response"
	"anoa.com/memberclub/pkg/validator"
	"github.com/gin-gonic/gin"
)

type InviteHandler struct {
	inviteService inviteService.InviteService
}

func NewInviteHandler(inviteService inviteService.InviteService) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
	}
}

// ValidateInvite is public so the join page can show the tier before sign-in.
func (h *InviteHandler) ValidateInvite(c *gin.Context) {
	res, err := h.inviteService.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *InviteHandler) IssueInvite(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input inviteDto.IssueInviteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.inviteService.Issue(c.Request.Context(), userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *InviteHandler) ListMyInvites(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.inviteService.List(c.Request.Context(), &userID, page, limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
