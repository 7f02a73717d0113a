package service

import (
	"net/http"

	"anoa.com/memberclub/pkg/apperror"
)

var (
	ErrInvalidCode     = apperror.New(http.StatusBadRequest, "invite code is invalid", apperror.ErrInvalidInput)
	ErrAlreadyConsumed = apperror.New(http.StatusConflict, "invite code has already been used", apperror.ErrConflict)
	ErrExhausted       = apperror.New(http.StatusConflict, "invite code has reached its usage limit", apperror.ErrConflict)
	ErrOwnInvite       = apperror.New(http.StatusBadRequest, "you cannot redeem your own invite code", apperror.ErrInvalidInput)
	ErrTooManyAttempts = apperror.New(http.StatusTooManyRequests, "too many failed invite attempts, please try again later", apperror.ErrRateLimitExceeded)
	ErrNotEligible     = apperror.New(http.StatusForbidden, "only active members can issue invites", apperror.ErrForbidden)
	ErrIssuePolicy     = apperror.New(http.StatusForbidden, "members can only issue single-use invites for the standard tier", apperror.ErrForbidden)
	ErrCapRequired     = apperror.New(http.StatusBadRequest, "reusable invites need a use cap", apperror.ErrInvalidInput)
)
