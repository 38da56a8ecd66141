package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/patch"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	messageValidationFailed = "Validation failed"

	ruleMoveName   = "required,max=200"
	ruleVideoURL   = "omitempty,max=500,url,videourl"
	ruleDifficulty = "omitempty,oneof=beginner intermediate advanced"
)

var (
	videoHosts = map[string]struct{}{
		"youtube.com": {},
		"youtu.be":    {},
		"vimeo.com":   {},
	}

	registerValidatorsOnce sync.Once

	fieldLabels = map[string]string{
		"email":            "Email",
		"password":         "Password",
		"username":         "Username",
		"name":             "Name",
		"description":      "Description",
		"video_url":        "Video URL",
		"difficulty_level": "Difficulty level",
		"duration_minutes": "Duration",
		"move_id":          "Move ID",
		"order":            "Order",
	}
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validatorEngine returns gin's binding validator with the project rules registered.
func validatorEngine() *validator.Validate {
	engine, _ := binding.Validator.Engine().(*validator.Validate)
	registerValidatorsOnce.Do(func() {
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = engine.RegisterValidation("videourl", func(fl validator.FieldLevel) bool {
			return isVideoURL(fl.Field().String())
		})
	})
	return engine
}

// isVideoURL accepts http(s) links whose host is a known video site, optionally prefixed with www.
func isVideoURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	_, known := videoHosts[host]
	return known
}

// bindJSON decodes and validates the request body, answering 400 itself on failure.
func bindJSON(c *gin.Context, target interface{}) bool {
	validatorEngine()
	if err := c.ShouldBindJSON(target); err != nil {
		respondValidation(c, detailsForBindError(err))
		return false
	}
	return true
}

func respondValidation(c *gin.Context, details []fieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   messageValidationFailed,
		"details": details,
	})
}

func detailsForBindError(err error) []fieldError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]fieldError, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			details = append(details, fieldError{
				Field:   fieldErr.Field(),
				Message: describeRule(fieldErr.Field(), fieldErr.Tag(), fieldErr.Param(), fieldErr.Kind()),
			})
		}
		return details
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		return []fieldError{{Field: field, Message: fmt.Sprintf("%s must be a %s", labelFor(field), typeName(typeErr.Type))}}
	}

	return []fieldError{{Field: "body", Message: "Request body must be valid JSON"}}
}

// patchValidator collects failures for the fields present in a partial update.
type patchValidator struct {
	engine  *validator.Validate
	details []fieldError
}

func newPatchValidator() *patchValidator {
	return &patchValidator{engine: validatorEngine()}
}

func (p *patchValidator) check(field string, value patch.Field[string], rules string) {
	raw, ok := value.Get()
	if !ok {
		return
	}
	err := p.engine.Var(raw, rules)
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return
	}
	for _, fieldErr := range validationErrs {
		p.details = append(p.details, fieldError{
			Field:   field,
			Message: describeRule(field, fieldErr.Tag(), fieldErr.Param(), fieldErr.Kind()),
		})
	}
}

// checkMinimum rejects a present, non-null number below minimum. Null stays allowed.
func (p *patchValidator) checkMinimum(field string, value patch.Field[*int], minimum int) {
	number := value.Value()
	if number == nil || *number >= minimum {
		return
	}
	p.details = append(p.details, fieldError{
		Field:   field,
		Message: describeRule(field, "min", strconv.Itoa(minimum), reflect.Int),
	})
}

func (p *patchValidator) ok(c *gin.Context) bool {
	if len(p.details) == 0 {
		return true
	}
	respondValidation(c, p.details)
	return false
}

func describeRule(field, tag, param string, kind reflect.Kind) string {
	label := labelFor(field)
	switch tag {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if kind == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", label, param)
		}
		return label + " must be a positive number"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", label, param)
	case "url", "videourl":
		return label + " must be from YouTube or Vimeo"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(strings.Fields(param), ", "))
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

func labelFor(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	if field == "" {
		return "Value"
	}
	return field
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	default:
		return t.Kind().String()
	}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	raw := c.Param(param)
	value, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || value == 0 {
		respondValidation(c, []fieldError{{Field: param, Message: param + " must be a positive integer"}})
		return 0, false
	}
	return uint(value), true
}
