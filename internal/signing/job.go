package signing

import (
	"encoding/json"

	xerrors "TypedSign-Chain/internal/errors"
)

// Status 表示签名任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Request 是提交签名任务的参数。
type Request struct {
	ID      string          `json:"id,omitempty"`
	Domain  string          `json:"domain"`
	Kind    string          `json:"kind"`
	Key     string          `json:"key"`
	Message json.RawMessage `json:"message"`
}

// Result 保存一次成功签名的产物，全部为 0x 前缀的十六进制。
type Result struct {
	TypeHash        string `json:"type_hash"`
	DomainSeparator string `json:"domain_separator"`
	Digest          string `json:"digest"`
	Signature       string `json:"signature"`
	Signer          string `json:"signer"`
}

// Job 描述一次排队执行的签名任务。
type Job struct {
	ID         string          `json:"id"`
	Domain     string          `json:"domain"`
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	Message    json.RawMessage `json:"message"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	Terminal   bool            `json:"terminal,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     *Result         `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

const (
	CodeJobNotFound   xerrors.Code = "SIGNATURE_JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "SIGNATURE_JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "SIGNATURE_JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "SIGNATURE_JOB_RETRIES_EXHAUSTED"
	CodeJobValidation xerrors.Code = "SIGNATURE_JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "SIGNATURE_JOB_PUBLISH_FAILED"
	CodeJobProcessing xerrors.Code = "SIGNATURE_JOB_PROCESSING_FAILED"
)

var (
	// ErrJobNotFound 表示指定的任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "signature job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "signature job conflict")
	// ErrJobCompleted 表示任务已经签名完成。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "signature job already completed")
	// ErrJobExhausted 表示任务不会再被执行。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "signature job retries exhausted")
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:  "signature job not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:  "signature job conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:  "signature job already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{
		Message:  "signature job retries exhausted",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:  "signature job validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:   "failed to publish signature job",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeJobProcessing, xerrors.Attributes{
		Message:   "signature job execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Finished 判断任务是否不会再变化。
func (j *Job) Finished() bool {
	switch j.Status {
	case StatusSucceeded:
		return true
	case StatusFailed:
		return j.Terminal || j.Attempts >= j.MaxRetries
	default:
		return false
	}
}

func cloneJob(job *Job) *Job {
	clone := *job
	if job.Result != nil {
		result := *job.Result
		clone.Result = &result
	}
	if job.Message != nil {
		clone.Message = append(json.RawMessage(nil), job.Message...)
	}
	return &clone
}
