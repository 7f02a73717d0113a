package handler

import (
	"errors"
	"io"
	"net/http"

	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
	membershipService "anoa.com/memberclub/internal/modules/membership/service"
	"anoa.com/memberclub/pkg/response"
	"anoa.com/memberclub/pkg/validator"
	"github.com/gin-gonic/gin"
)

type MembershipHandler struct {
	resolver       membershipService.Resolver
	profileService membershipService.ProfileService
}

func NewMembershipHandler(resolver membershipService.Resolver, profileService membershipService.ProfileService) *MembershipHandler {
	return &MembershipHandler{
		resolver:       resolver,
		profileService: profileService,
	}
}

// Verify is called after the identity provider confirmed the member. The body is
// optional.
func (h *MembershipHandler) Verify(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input membershipDto.VerifyRequest
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	in := membershipService.VerifyInput{
		UserID: userID,
		Email:  response.GetEmail(c),
	}
	if input.InviteCode != nil {
		in.InviteCode = *input.InviteCode
	}
	if input.PaymentReference != nil {
		in.PaymentReference = *input.PaymentReference
	}

	res, err := h.resolver.Resolve(c.Request.Context(), in)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

// RedeemInvite runs the full resolver so the invitee gets their profile, rewards and
// the inviter their bonus in one step.
func (h *MembershipHandler) RedeemInvite(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input inviteDto.RedeemInviteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), membershipService.VerifyInput{
		UserID:     userID,
		Email:      response.GetEmail(c),
		InviteCode: input.Code,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *MembershipHandler) GetMe(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (h *MembershipHandler) UpdateProfile(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input membershipDto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.profileService.UpdateProfile(c.Request.Context(), userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
