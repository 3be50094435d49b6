package signing

import (
	"bytes"
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/observability/metrics"
	"TypedSign-Chain/pkg/logger"
)

// Service 负责签名任务的创建与查询。
type Service struct {
	store      Store
	producer   Producer
	validator  Validator
	maxRetries int
}

// NewService 构造签名任务服务。validator 为空时跳过入队前校验。
func NewService(store Store, producer Producer, validator Validator, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{store: store, producer: producer, validator: validator, maxRetries: maxRetries}
}

// Submit 创建一个新的签名任务并推送到队列。携带已存在的 ID 时直接返回原任务。
func (s *Service) Submit(ctx context.Context, req Request) (*Job, error) {
	req.Domain = strings.TrimSpace(req.Domain)
	req.Kind = strings.TrimSpace(req.Kind)
	req.Key = strings.TrimSpace(req.Key)
	switch {
	case req.Domain == "":
		return nil, xerrors.New(CodeJobValidation, "签名域不能为空")
	case req.Kind == "":
		return nil, xerrors.New(CodeJobValidation, "消息类型不能为空")
	case req.Key == "":
		return nil, xerrors.New(CodeJobValidation, "私钥名称不能为空")
	case len(bytes.TrimSpace(req.Message)) == 0:
		return nil, xerrors.New(CodeJobValidation, "消息内容不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "签名服务未初始化")
	}

	jobID := strings.TrimSpace(req.ID)
	if jobID != "" {
		job, err := s.store.Get(ctx, jobID)
		if err == nil {
			return job, nil
		}
		if !stdErrors.Is(err, ErrJobNotFound) {
			return nil, err
		}
	} else {
		jobID = uuid.NewString()
	}

	if s.validator != nil {
		if err := s.validator.Validate(ctx, req); err != nil {
			return nil, xerrors.Wrap(CodeJobValidation, err, "签名请求校验失败")
		}
	}

	job := &Job{
		ID:         jobID,
		Domain:     req.Domain,
		Kind:       req.Kind,
		Key:        req.Key,
		Message:    bytes.TrimSpace(req.Message),
		Status:     StatusPending,
		MaxRetries: s.maxRetries,
	}
	if err := s.store.Create(ctx, job); err != nil {
		if stdErrors.Is(err, ErrJobConflict) {
			existing, getErr := s.store.Get(ctx, jobID)
			if getErr == nil {
				return existing, nil
			}
			if !stdErrors.Is(getErr, ErrJobNotFound) {
				return nil, getErr
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, jobID); err != nil {
		logger.L().Error("签名任务入队失败", slog.Any("error", err), slog.String("job_id", jobID))
		wrapped := xerrors.Wrap(CodeJobPublish, err, "发布签名任务到队列失败")
		_ = s.store.MarkFailed(ctx, jobID, CodeJobPublish, wrapped.Error(), true)
		return nil, wrapped
	}
	metrics.ObserveSignature(job.Domain, metrics.OutcomeSubmitted)
	logger.Audit().Info("签名任务入队成功",
		slog.String("job_id", jobID),
		slog.String("domain", job.Domain),
		slog.String("kind", job.Kind),
		slog.String("key", job.Key),
		slog.Int("max_retries", job.MaxRetries),
	)
	return job, nil
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的任务统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (Stats, error) {
	if s.store == nil {
		return Stats{}, xerrors.New(xerrors.CodeInitializationFailure, "任务存储未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// WaitUntilCompleted 轮询任务状态，直到任务成功或不再重试。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Finished() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close 释放资源。
func (s *Service) Close() error {
	var errs []error
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return stdErrors.Join(errs...)
}
