package handler

import (
	"net/http"

	questDto "anoa.com/memberclub/internal/modules/quest/dto"
	questService "anoa.com/memberclub/internal/modules/quest/service"
	"anoa.com/memberclub/pkg/response"
	"anoa.com/memberclub/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type QuestHandler struct {
	questService questService.QuestService
}

func NewQuestHandler(questService questService.QuestService) *QuestHandler {
	return &QuestHandler{
		questService: questService,
	}
}

func (h *QuestHandler) ListQuests(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	quests, err := h.questService.ListForMember(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quests})
}

func (h *QuestHandler) SubmitQuest(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	questID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest id"})
		return
	}

	var input questDto.SubmitRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	completion, err := h.questService.Submit(c.Request.Context(), userID, questID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": completion})
}
