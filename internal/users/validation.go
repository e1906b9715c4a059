package users

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// ErrValidation is wrapped by every *ValidationError.
var ErrValidation = errors.New("validation failed")

var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Input is the writable part of a user.
type Input struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Address   string `json:"address"`
}

// ValidationError lists the rejected fields with a short reason each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return jsonName(f.Tag.Get("json"))
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return v
}

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// maxSanitizePasses bounds stripText for inputs that keep decoding into new
// markup, such as multiply entity-encoded tags.
const maxSanitizePasses = 8

// stripText removes markup from s and returns plain text. Entity-encoded
// tags decode into tags on the next pass and are stripped too; the loop
// stops once a pass changes nothing, so the result holds no tag that
// sanitizing would remove.
func stripText(p *bluemonday.Policy, s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(p.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	return p.Sanitize(s)
}

// clean trims every field and strips markup from free-text ones.
func clean(p *bluemonday.Policy, in Input) Input {
	text := func(s string) string {
		return strings.TrimSpace(stripText(p, s))
	}
	return Input{
		FirstName: text(in.FirstName),
		LastName:  text(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		DOB:       strings.TrimSpace(in.DOB),
		Address:   text(in.Address),
	}
}

func validate(v *validator.Validate, in Input) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = reason(fe.Tag())
	}
	return out
}

func reason(tag string) string {
	switch tag {
	case "required":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be 2 to 15 digits with an optional leading +"
	case "datetime":
		return "must be a real date in yyyy-MM-dd format"
	default:
		return "is invalid (" + tag + ")"
	}
}
