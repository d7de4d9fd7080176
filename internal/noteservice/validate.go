package noteservice

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/models"
)

var (
	noWhitespace = regexp.MustCompile(`^\S+$`)

	singleLine = validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.ContainsAny(s, "\r\n") {
			return errors.New("must be a single line")
		}
		return nil
	})

	knownType = validation.By(func(value any) error {
		t, _ := value.(models.NoteType)
		if t != "" && !t.Valid() {
			return fmt.Errorf("must be one of %v", models.NoteTypes)
		}
		return nil
	})
)

// invalid wraps an ozzo validation error so callers can match
// apperr.ErrInvalidInput.
func invalid(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("noteservice: %s: %v: %w", op, err, apperr.ErrInvalidInput)
}

// Validate checks the create parameters.
func (p CreateParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, singleLine),
		validation.Field(&p.Type, knownType),
	)
}

type observeParams struct {
	ID     string
	Text   string
	Method string
}

func (p observeParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Text, validation.Required),
		validation.Field(&p.Method, singleLine, validation.By(func(value any) error {
			if strings.ContainsAny(value.(string), "[]") {
				return errors.New("must not contain brackets")
			}
			return nil
		})),
	)
}

type relateParams struct {
	From string
	To   string
	Type string
}

func (p relateParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.From, validation.Required),
		validation.Field(&p.To, validation.Required),
		validation.Field(&p.Type, validation.Required, validation.Match(noWhitespace)),
	)
}
