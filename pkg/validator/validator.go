package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

func FormatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			message := getFieldErrorMessage(fieldError)
			messages = append(messages, message)
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "ne":
		return fmt.Sprintf("%s must not be %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Code":             "Invite code",
		"InviteCode":       "Invite code",
		"PaymentReference": "Payment reference",
		"DisplayName":      "Display name",
		"HomeCountry":      "Home country",
		"HomeCity":         "Home city",
		"AvatarURL":        "Avatar URL",
		"Latitude":         "Latitude",
		"Longitude":        "Longitude",
		"Points":           "Points",
		"Balance":          "Balance",
		"Memo":             "Memo",
		"Rank":             "Rank",
		"State":            "Subscription state",
		"Tier":             "Membership tier",
		"Mode":             "Invite mode",
		"Cap":              "Use cap",
		"ExpiresInDays":    "Expiry",
		"Slug":             "Slug",
		"Title":            "Title",
		"PointsReward":     "Points reward",
		"EvaluationMode":   "Evaluation mode",
		"EvaluationKey":    "Evaluation key",
		"Active":           "Active",
		"Evidence":         "Evidence",
		"Status":           "Status",
		"Q":                "Search query",
		"Limit":            "Limit",
		"Timeframe":        "Timeframe",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
