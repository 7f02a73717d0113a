package handler

import (
	"context"
	"net/http"
	"strconv"

	adminDto "anoa.com/memberclub/internal/modules/admin/dto"
	adminService "anoa.com/memberclub/internal/modules/admin/service"
	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteService "anoa.com/memberclub/internal/modules/invite/service"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
	membershipService "anoa.com/memberclub/internal/modules/membership/service"
	questDto "anoa.com/memberclub/internal/modules/quest/dto"
	questService "anoa.com/memberclub/internal/modules/quest/service"
	"anoa.com/memberclub/pkg/response"
	"anoa.com/memberclub/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the admin console. Every route sits behind RequireAdmin.
type AdminHandler struct {
	adminService   adminService.AdminService
	profileService membershipService.ProfileService
	inviteService  inviteService.InviteService
	questService   questService.QuestService
}

func NewAdminHandler(
	adminService adminService.AdminService,
	profileService membershipService.ProfileService,
	inviteService inviteService.InviteService,
	questService questService.QuestService,
) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		profileService: profileService,
		inviteService:  inviteService,
		questService:   questService,
	}
}

func (h *AdminHandler) ListMembers(c *gin.Context) {
	var query membershipDto.MemberListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.profileService.ListMembers(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) AwardPoints(c *gin.Context) {
	adminID, memberID, ok := h.actors(c)
	if !ok {
		return
	}

	var input adminDto.AwardPointsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.AwardPoints(c.Request.Context(), adminID, memberID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *AdminHandler) AdjustPoints(c *gin.Context) {
	adminID, memberID, ok := h.actors(c)
	if !ok {
		return
	}

	var input adminDto.AdjustPointsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.AdjustPoints(c.Request.Context(), adminID, memberID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *AdminHandler) SetBalance(c *gin.Context) {
	adminID, memberID, ok := h.actors(c)
	if !ok {
		return
	}

	var input adminDto.SetBalanceRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.SetBalance(c.Request.Context(), adminID, memberID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *AdminHandler) SetRank(c *gin.Context) {
	adminID, memberID, ok := h.actors(c)
	if !ok {
		return
	}

	var input adminDto.SetRankRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.SetRank(c.Request.Context(), adminID, memberID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *AdminHandler) SetSubscription(c *gin.Context) {
	_, memberID, ok := h.actors(c)
	if !ok {
		return
	}

	var input membershipDto.SetSubscriptionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.profileService.SetSubscriptionState(c.Request.Context(), memberID, input.State)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *AdminHandler) IssueInvite(c *gin.Context) {
	adminID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input inviteDto.IssueInviteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.inviteService.Issue(c.Request.Context(), adminID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *AdminHandler) ListInvites(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.inviteService.List(c.Request.Context(), nil, page, limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) ListQuests(c *gin.Context) {
	res, err := h.questService.ListDefinitions(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *AdminHandler) CreateQuest(c *gin.Context) {
	var input questDto.CreateQuestRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.questService.CreateDefinition(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *AdminHandler) SetQuestActive(c *gin.Context) {
	questID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest id"})
		return
	}

	var input questDto.SetActiveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	if err := h.questService.SetActive(c.Request.Context(), questID, *input.Active); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "quest updated"})
}

func (h *AdminHandler) ListCompletions(c *gin.Context) {
	var query questDto.CompletionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.questService.ListCompletions(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) ApproveCompletion(c *gin.Context) {
	h.review(c, h.questService.Approve)
}

func (h *AdminHandler) RejectCompletion(c *gin.Context) {
	h.review(c, h.questService.Reject)
}

type reviewFunc func(ctx context.Context, completionID, reviewerID uuid.UUID) (*questDto.CompletionResponse, error)

func (h *AdminHandler) review(c *gin.Context, decide reviewFunc) {
	reviewerID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	completionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid completion id"})
		return
	}

	res, err := decide(c.Request.Context(), completionID, reviewerID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

// actors returns the acting admin and the member named in the path. On failure the
// response is already written.
func (h *AdminHandler) actors(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	adminID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}

	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return uuid.Nil, uuid.Nil, false
	}
	return adminID, memberID, true
}
