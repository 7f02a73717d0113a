package service

import (
	"net/http"

	"anoa.com/memberclub/pkg/apperror"
)

var (
	ErrMemberNotFound = apperror.New(http.StatusNotFound, "member not found", apperror.ErrNotFound)
	ErrInviteRequired = apperror.New(http.StatusForbidden, "an invite code is required to join", apperror.ErrForbidden)
	ErrAlreadyMember  = apperror.New(http.StatusConflict, "active members cannot redeem another invite", apperror.ErrConflict)
	ErrEmailTaken     = apperror.New(http.StatusConflict, "email is already registered to another member", apperror.ErrConflict)
	ErrMissingEmail   = apperror.New(http.StatusBadRequest, "verified email is required", apperror.ErrInvalidInput)
)
