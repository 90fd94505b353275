package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ValidationError - ошибка ввода до обращения к API.
// Key - ключ локализации текста ошибки.
type ValidationError struct {
	Field string
	Key   string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Key
}

// Validator проверяет формы и запросы по тегам validate
type Validator struct {
	v *validator.Validate
}

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// New создаёт валидатор с тегами date, clock и phone
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := time.Parse("2006-01-02", value)
		return err == nil
	})

	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := time.Parse("15:04", value)
		return err == nil
	})

	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return phoneRegex.MatchString(value)
	})

	return &Validator{v: v}
}

// Struct проверяет структуру и возвращает первую ошибку как ValidationError
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return ValidationError{Field: ve[0].Field(), Key: "validation_" + ve[0].Field()}
	}
	return err
}

// Var проверяет одиночное значение, field задаёт ключ ошибки
func (v *Validator) Var(field string, value interface{}, tag string) error {
	if err := v.v.Var(value, tag); err != nil {
		return ValidationError{Field: field, Key: "validation_" + field}
	}
	return nil
}

// NormalizeName убирает лишние пробелы и делает первую букву заглавной
func NormalizeName(name string) string {
	runes := []rune(strings.Join(strings.Fields(name), " "))
	if len(runes) > 0 && unicode.IsLetter(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

// NormalizePhone оставляет в номере только цифры и ведущий +
func NormalizePhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '+' {
			return r
		}
		return -1
	}, strings.TrimSpace(phone))
	if strings.HasPrefix(cleaned, "+") {
		return "+" + strings.ReplaceAll(cleaned[1:], "+", "")
	}
	return strings.ReplaceAll(cleaned, "+", "")
}
