package domain

import "github.com/pkg/errors"

// 错误分类。具体错误用 errors.Wrapf 附带上下文，调用方用 errors.Is 判断类别。
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyBook          = errors.New("empty order book side")
	ErrRejected           = errors.New("order rejected by exchange")
	ErrTransportFailure   = errors.New("exchange transport failure")
	ErrDuplicateInFlight  = errors.New("order already in flight")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
	ErrRiskLimit          = errors.New("risk limit exceeded")
)

// transportError 同时匹配 ErrTransportFailure 与底层原因（如 context.Canceled）
type transportError struct {
	cause error
}

func (e *transportError) Error() string {
	if e.cause == nil {
		return ErrTransportFailure.Error()
	}
	return ErrTransportFailure.Error() + ": " + e.cause.Error()
}

func (e *transportError) Is(target error) bool { return target == ErrTransportFailure }

func (e *transportError) Unwrap() error { return e.cause }

// NewTransportError 包装底层传输错误
func NewTransportError(cause error) error {
	return &transportError{cause: cause}
}
