package service

import (
	"net/http"

	"anoa.com/memberclub/pkg/apperror"
)

var (
	ErrQuestNotFound      = apperror.New(http.StatusNotFound, "quest not found", apperror.ErrNotFound)
	ErrCompletionNotFound = apperror.New(http.StatusNotFound, "quest completion not found", apperror.ErrNotFound)
	ErrQuestInactive      = apperror.New(http.StatusBadRequest, "quest is not active", apperror.ErrInvalidInput)
	ErrNotSubmittable     = apperror.New(http.StatusBadRequest, "this quest is completed automatically", apperror.ErrInvalidInput)
	ErrAlreadyCompleted   = apperror.New(http.StatusConflict, "quest already completed", apperror.ErrConflict)
	ErrAlreadyPending     = apperror.New(http.StatusConflict, "a submission for this quest is already waiting for review", apperror.ErrConflict)
	ErrAlreadyReviewed    = apperror.New(http.StatusConflict, "quest completion was already reviewed", apperror.ErrConflict)
	ErrSlugTaken          = apperror.New(http.StatusConflict, "quest slug already exists", apperror.ErrConflict)
	ErrEvaluationKey      = apperror.New(http.StatusBadRequest, "automatic quests need an evaluation key, manual quests must not have one", apperror.ErrInvalidInput)
)
