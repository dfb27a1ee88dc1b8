// Package validation checks request payloads against struct tags.
//
// It wraps gopkg.in/go-playground/validator.v9, reports field names by
// their JSON tag, and adds a "slug" rule (lowercase letters, digits, and
// hyphens). Failures are returned as a *Error carrying one FieldError per
// rejected field, which handlers render as the "details" of a 400 response.
//
//	type CreateOrgRequest struct {
//		Name string `json:"name" validate:"required,min=2" msg_min:"Organization name must be at least 2 characters"`
//	}
//
//	if err := validation.New().Struct(req); err != nil {
//		verr, _ := validation.AsError(err)
//		...
//	}
package validation
