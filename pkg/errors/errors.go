package errors

import (
	stdErrors "errors"
	"fmt"
)

// 错误码
const (
	CodeSuccess         = 200
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409 // 状态冲突
	CodeAlreadyUsed     = 410 // 预检已被消费
	CodeCapacityError   = 422 // 容量不足
	CodeInternalError   = 500
	CodeDatabaseError   = 501
	CodeAuthError       = 502
	CodeValidationError = 503
	CodeExecutorError   = 504 // 构建执行器不可达/超时
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较, 便于 errors.Is(err, ErrAlreadyUsed)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 返回错误码, 非 AppError 视为内部错误
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// 预定义错误
var (
	ErrBadRequest      = New(CodeBadRequest, "请求参数错误")
	ErrUnauthorized    = New(CodeUnauthorized, "未授权")
	ErrForbidden       = New(CodeForbidden, "禁止访问")
	ErrNotFound        = New(CodeNotFound, "资源不存在")
	ErrConflict        = New(CodeConflict, "资源冲突")
	ErrInternalError   = New(CodeInternalError, "内部服务器错误")
	ErrDatabaseError   = New(CodeDatabaseError, "数据库错误")
	ErrAuthError       = New(CodeAuthError, "认证失败")
	ErrValidationError = New(CodeValidationError, "数据验证失败")

	ErrInvalidToken   = New(CodeUnauthorized, "无效的Token")
	ErrTokenExpired   = New(CodeUnauthorized, "Token已过期")
	ErrRecordNotFound = New(CodeNotFound, "记录不存在")
	ErrRecordExists   = New(CodeConflict, "记录已存在")

	// 编排相关
	ErrCapacity         = New(CodeCapacityError, "容量不足")
	ErrStateConflict    = New(CodeConflict, "当前状态不允许该操作")
	ErrSelfReview       = New(CodeForbidden, "不能审批自己提交的申请")
	ErrAlreadyUsed      = New(CodeAlreadyUsed, "预检结果已被其他部署使用")
	ErrExecutor         = New(CodeExecutorError, "构建执行器调用失败")
	ErrPermissionDenied = New(CodeForbidden, "权限不足")
)

// Validation 校验错误
func Validation(format string, args ...interface{}) *AppError {
	return New(CodeValidationError, fmt.Sprintf(format, args...))
}

// Capacity 容量错误
func Capacity(format string, args ...interface{}) *AppError {
	return New(CodeCapacityError, fmt.Sprintf(format, args...))
}

// Conflict 状态冲突
func Conflict(format string, args ...interface{}) *AppError {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

// NotFound 资源不存在
func NotFound(format string, args ...interface{}) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Executor 执行器瞬时错误
func Executor(message string, err error) *AppError {
	return Wrap(CodeExecutorError, message, err)
}
