package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgErrors "galera-cd/pkg/errors"
)

var (
	identPattern      = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	bufferSizePattern = regexp.MustCompile(`^\d+[MG]$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator 返回注册了自定义规则的校验器
//
//	ident:     ^[a-zA-Z0-9_]+$
//	bufsize:   ^\d+[MG]$
//	nosemi:    不包含分号
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
			return identPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("bufsize", func(fl validator.FieldLevel) bool {
			return bufferSizePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("nosemi", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s != "" && !strings.Contains(s, ";")
		})
		validate = v
	})
	return validate
}

// ValidateStruct 校验请求结构体, 失败时返回 CodeValidationError
func ValidateStruct(s interface{}) error {
	if err := Validator().Struct(s); err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeValidationError, "请求参数校验失败", fmt.Errorf("%s", FormatValidationError(err)))
	}
	return nil
}

// FormatValidationError 格式化验证错误信息
func FormatValidationError(err error) string {
	if err == nil {
		return ""
	}

	// 处理validator的验证错误
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatFieldError(e))
		}
		return strings.Join(messages, "; ")
	}

	// 处理JSON解析错误
	if jsonErr, ok := err.(*json.UnmarshalTypeError); ok {
		return fmt.Sprintf("field '%s' should be %s", jsonErr.Field, jsonErr.Type.String())
	}

	// 处理JSON语法错误
	if _, ok := err.(*json.SyntaxError); ok {
		return "invalid JSON format"
	}

	return err.Error()
}

// formatFieldError 格式化单个字段的验证错误
func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, e.Param())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, e.Param())
	case "len":
		return fmt.Sprintf("field '%s' must have exactly %s items", field, e.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, e.Param())
	case "email":
		return fmt.Sprintf("field '%s' must be a valid email address", field)
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", field)
	case "ip":
		return fmt.Sprintf("field '%s' must be a valid IP address", field)
	case "unique":
		return fmt.Sprintf("field '%s' must not contain duplicates", field)
	case "gt":
		return fmt.Sprintf("field '%s' must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", field, e.Param())
	case "lt":
		return fmt.Sprintf("field '%s' must be less than %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("field '%s' must be less than or equal to %s", field, e.Param())
	case "ident":
		return fmt.Sprintf("field '%s' may only contain letters, digits and underscores", field)
	case "bufsize":
		return fmt.Sprintf("field '%s' must look like 512M or 1G", field)
	case "nosemi":
		return fmt.Sprintf("field '%s' must be non-empty and must not contain ';'", field)
	default:
		return fmt.Sprintf("field '%s' validation failed on '%s' tag", field, e.Tag())
	}
}
