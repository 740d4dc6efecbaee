package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown        ErrorCode = 1000
	ErrInvalidParam   ErrorCode = 1001
	ErrNotFound       ErrorCode = 1002
	ErrAlreadyExists  ErrorCode = 1003
	ErrTimeout        ErrorCode = 1004
	ErrNotImplemented ErrorCode = 1005

	// 配置错误 (2000-2999)
	ErrConfigLoad     ErrorCode = 2000
	ErrConfigParse    ErrorCode = 2001
	ErrConfigValidate ErrorCode = 2002
	ErrConfigMissing  ErrorCode = 2003

	// 机器错误 (3000-3999)
	ErrRNGNotConfigured ErrorCode = 3000
	ErrEmptyGrid        ErrorCode = 3001
	ErrInvalidPayTable  ErrorCode = 3002
	ErrInvalidPayline   ErrorCode = 3003
	ErrInvalidReelSet   ErrorCode = 3004

	// 会话错误 (4000-4999)
	ErrSessionNotActive    ErrorCode = 4000
	ErrSessionEnded        ErrorCode = 4001
	ErrInvalidBet          ErrorCode = 4002
	ErrInsufficientBalance ErrorCode = 4003
	ErrNotInFreeSpins      ErrorCode = 4004

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseMigrate ErrorCode = 5003

	// 输出错误 (6000-6999)
	ErrOutputInit  ErrorCode = 6000
	ErrOutputWrite ErrorCode = 6001

	// 模拟错误 (7000-7999)
	ErrUnknownEngine   ErrorCode = 7000
	ErrPoolExhausted   ErrorCode = 7001
	ErrPoolClosed      ErrorCode = 7002
	ErrSimulationAbort ErrorCode = 7003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:        "未知错误",
	ErrInvalidParam:   "无效的参数",
	ErrNotFound:       "资源未找到",
	ErrAlreadyExists:  "资源已存在",
	ErrTimeout:        "操作超时",
	ErrNotImplemented: "功能未实现",

	// 配置错误
	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
	ErrConfigMissing:  "配置项缺失",

	// 机器错误
	ErrRNGNotConfigured: "未配置随机数策略",
	ErrEmptyGrid:        "空的符号网格",
	ErrInvalidPayTable:  "无效的赔率表",
	ErrInvalidPayline:   "无效的支付线",
	ErrInvalidReelSet:   "无效的卷轴组",

	// 会话错误
	ErrSessionNotActive:    "会话未激活",
	ErrSessionEnded:        "会话已结束",
	ErrInvalidBet:          "无效的投注金额",
	ErrInsufficientBalance: "余额不足",
	ErrNotInFreeSpins:      "不在免费旋转模式中",

	// 数据库错误
	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseMigrate: "数据库迁移失败",

	// 输出错误
	ErrOutputInit:  "输出目录初始化失败",
	ErrOutputWrite: "输出写入失败",

	// 模拟错误
	ErrUnknownEngine:   "未知的决策引擎类型",
	ErrPoolExhausted:   "实例池已耗尽",
	ErrPoolClosed:      "实例池已关闭",
	ErrSimulationAbort: "模拟中止",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`            // 错误码
	Message string       `json:"message"`         // 错误消息
	Details string       `json:"details"`         // 详细信息
	Cause   error        `json:"-"`               // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"` // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// IsSessionEnding 判断错误是否为预期的会话结束条件
// 这类错误不是故障，会话以对应原因正常收尾并保留部分统计
func IsSessionEnding(err error) bool {
	switch GetCode(err) {
	case ErrInvalidBet, ErrInsufficientBalance:
		return true
	default:
		return false
	}
}

// IsFatal 判断是否为配置级致命错误（终止该机器/会话，不重试）
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrRNGNotConfigured,
		ErrEmptyGrid,
		ErrInvalidPayTable,
		ErrConfigLoad,
		ErrConfigValidate,
		ErrUnknownEngine:
		return true
	default:
		return false
	}
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/slot-simulator/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound:
		return 404 // Not Found
	case e.Code >= 1001 && e.Code <= 1003:
		return 400 // Bad Request
	case e.Code == ErrTimeout:
		return 408 // Request Timeout
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	case e.Code == ErrPoolExhausted:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
