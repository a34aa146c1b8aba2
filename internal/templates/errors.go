package templates

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTemplate indicates the template name is not registered.
	ErrUnknownTemplate = errors.New("unknown template")

	// ErrMissingRequiredField indicates required template data is absent.
	ErrMissingRequiredField = errors.New("missing required template field")

	// ErrTemplateRender indicates the subject or body failed to render.
	ErrTemplateRender = errors.New("failed to render template")

	// ErrInvalidRegistry indicates a malformed registry file.
	ErrInvalidRegistry = errors.New("invalid template registry")
)

// MissingFieldsError lists every required field absent from the data.
type MissingFieldsError struct {
	Template string
	Fields   []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMissingRequiredField, e.Template, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingRequiredField
}
