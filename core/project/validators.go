package project

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/pcphq/pcp/core"
)

var (
	memberRoleTag  = "memberrole"
	memberRoleText = "invalid member role"

	projectStatusTag  = "projectstatus"
	projectStatusText = "invalid project status"
)

// InitValidators registers the project package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(memberRoleTag, memberRoleValidation)
	core.RegisterCustomTranslation(validate, translator, memberRoleTag, memberRoleText)

	_ = validate.RegisterValidation(projectStatusTag, projectStatusValidation)
	core.RegisterCustomTranslation(validate, translator, projectStatusTag, projectStatusText)
}

// memberRoleValidation checks that the provided role is in AllRoles.
func memberRoleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// projectStatusValidation checks that the provided status is in AllStatuses.
func projectStatusValidation(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	for _, s := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}
