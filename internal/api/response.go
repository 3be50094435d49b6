package api

import (
	"encoding/json"
	"net/http"
	"time"

	"TypedSign-Chain/internal/domain"
	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/keystore"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/observability/metrics"
	"TypedSign-Chain/internal/signing"
	"TypedSign-Chain/pkg/eip712"
	"TypedSign-Chain/pkg/logger"
)

// errorBody 是所有错误响应的统一结构。
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusForCode 将错误码映射为 HTTP 状态码。
func statusForCode(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, signing.CodeJobValidation,
		message.CodeUnknownKind, message.CodeInvalidMessage,
		eip712.CodeInvalidSignature, eip712.CodeSchema:
		return http.StatusBadRequest
	case xerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case xerrors.CodeNotFound, signing.CodeJobNotFound, domain.CodeDomainNotFound, keystore.CodeKeyNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, signing.CodeJobConflict, signing.CodeJobCompleted, signing.CodeJobExhausted:
		return http.StatusConflict
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure, xerrors.CodeQueueFailure, signing.CodeJobPublish:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeCodedError(w http.ResponseWriter, err error) {
	writeError(w, statusForCode(xerrors.CodeOf(err)), err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	detail := errorDetail{Code: string(xerrors.CodeOf(err)), Retryable: xerrors.RetryableError(err)}
	if err != nil {
		detail.Message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.L().Error("API 请求失败", "status", status, "code", detail.Code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusRecorder 记录处理器写出的状态码。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument 为处理器记录请求数、错误数与耗时。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	})
}
