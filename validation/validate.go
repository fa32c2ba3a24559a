package validation

import (
	"regexp"
	"strings"

	"github.com/airis-sh/airis/models"
	"github.com/go-playground/validator"
)

const (
	NAME_REQUIRED           = "Name is required"
	PHONE_OR_EMAIL_REQUIRED = "At least phone or email is required"
	INVALID_PHONE           = "Invalid phone number format"
	INVALID_EMAIL           = "Invalid email format"
)

var (
	// Whitespace includes the unicode spaces phones paste in, e.g. U+00A0
	phonePattern = regexp.MustCompile(`^[0-9\s\v\p{Z}\x{FEFF}\-+()]+$`)
	emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

	// Messages are reported in this order, whatever order the validator found them in
	ruleMessages = []struct {
		tag     string
		message string
	}{
		{"notblank", NAME_REQUIRED},
		{"phone_or_email", PHONE_OR_EMAIL_REQUIRED},
		{"phonechars", INVALID_PHONE},
		{"looseemail", INVALID_EMAIL},
	}

	validate = newValidator()
)

// Result of validating one contact. Valid is true iff Errors is empty.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateContact checks the shape of a contact. Every rule is evaluated,
// violations are collected rather than returned on the first one.
func ValidateContact(contact models.Contact) Result {
	failed := map[string]bool{}

	err := validate.Struct(contact)
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrs {
			failed[fieldErr.Tag()] = true
		}
	}

	errs := []string{}
	for _, rule := range ruleMessages {
		if failed[rule.tag] {
			errs = append(errs, rule.message)
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// IsValidPhone reports whether phone only has digits, whitespace (unicode spaces included), '-', '+', '(' or ')'.
// Length and country code are not checked.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// IsValidEmail reports whether email looks like local@domain.tld
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// RegisterValidators adds the contact rules to 'v', so callers validating
// request bodies that embed contacts get the same behaviour.
func RegisterValidators(v *validator.Validate) error {
	err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		return err
	}

	// Empty values are fine here, presence is a struct level rule
	err = v.RegisterValidation("phonechars", func(fl validator.FieldLevel) bool {
		phone := fl.Field().String()
		return phone == "" || IsValidPhone(phone)
	})
	if err != nil {
		return err
	}

	err = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		email := fl.Field().String()
		return email == "" || IsValidEmail(email)
	})
	if err != nil {
		return err
	}

	v.RegisterStructValidation(contactStructLevelValidation, models.Contact{})

	return nil
}

func contactStructLevelValidation(sl validator.StructLevel) {
	contact := sl.Current().Interface().(models.Contact)

	if contact.Phone == "" && contact.Email == "" {
		sl.ReportError(contact.Phone, "Phone", "phone", "phone_or_email", "")
	}
}

func newValidator() *validator.Validate {
	v := validator.New()

	err := RegisterValidators(v)
	if err != nil {
		panic(err)
	}

	return v
}
