package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"TypedSign-Chain/internal/auth"
	"TypedSign-Chain/internal/domain"
	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/keystore"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/observability/metrics"
	"TypedSign-Chain/internal/signing"
)

const maxBodyBytes = 1 << 20

// TypedData 提供同步的类型化数据哈希与签名恢复能力。
type TypedData interface {
	Preview(domainKey, kind string, raw json.RawMessage) (*signing.Preview, error)
	Recover(domainKey, kind string, raw json.RawMessage, signature string) (common.Address, error)
}

// KeyLister 列出可用于签名的私钥名称与地址。
type KeyLister interface {
	List() []keystore.KeyInfo
}

// Server 负责暴露 REST 接口，供外部提交签名任务与计算类型化数据哈希。
type Server struct {
	addr            string
	signatures      *signing.Service
	typedData       TypedData
	domains         *domain.Registry
	kinds           *message.Catalog
	keys            KeyLister
	auth            *auth.Service
	shutdownTimeout time.Duration
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithTypedData 启用 typed-data 相关接口。
func WithTypedData(td TypedData) Option {
	return func(s *Server) { s.typedData = td }
}

// WithDomains 启用签名域查询接口。
func WithDomains(registry *domain.Registry) Option {
	return func(s *Server) { s.domains = registry }
}

// WithKinds 启用消息类型查询接口。
func WithKinds(catalog *message.Catalog) Option {
	return func(s *Server) { s.kinds = catalog }
}

// WithKeys 启用私钥地址查询接口。
func WithKeys(keys KeyLister) Option {
	return func(s *Server) { s.keys = keys }
}

// WithAuth 为 /api/v1 下的接口开启令牌校验。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, signatures *signing.Service, opts ...Option) *Server {
	s := &Server{addr: addr, signatures: signatures, shutdownTimeout: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由，便于测试与嵌入。
func (s *Server) Handler() http.Handler {
	read := map[string][]string{"*": {auth.PermissionSignaturesRead}}
	mux := http.NewServeMux()
	s.route(mux, "/api/v1/signatures", "signatures", s.handleSignatures, map[string][]string{
		http.MethodPost: {auth.PermissionSignaturesWrite},
		"*":             {auth.PermissionSignaturesRead},
	})
	s.route(mux, "/api/v1/signatures/", "signature_detail", s.handleSignatureDetail, read)
	s.route(mux, "/api/v1/typed-data/hash", "typed_data_hash", s.handleTypedDataHash, map[string][]string{"*": {auth.PermissionTypedDataRead}})
	s.route(mux, "/api/v1/typed-data/recover", "typed_data_recover", s.handleTypedDataRecover, map[string][]string{"*": {auth.PermissionTypedDataRead}})
	s.route(mux, "/api/v1/domains", "domains", s.handleDomains, read)
	s.route(mux, "/api/v1/kinds", "kinds", s.handleKinds, read)
	s.route(mux, "/api/v1/keys", "keys", s.handleKeys, read)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc, perms map[string][]string) {
	var handler http.Handler = h
	if s.auth != nil {
		handler = s.auth.Middleware(auth.MiddlewareConfig{RequiredPermissions: perms, AuditEvent: name})(handler)
	}
	mux.Handle(pattern, instrument(name, handler))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSignatures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET/POST"))
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.signatures == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "签名服务未初始化"))
		return
	}
	var req signing.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.signatures.Submit(r.Context(), req)
	if err != nil {
		writeCodedError(w, err)
		return
	}

	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait <= 0 {
			writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeInvalidArgument, "wait 参数需要是正的时长"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		done, err := s.signatures.WaitUntilCompleted(ctx, job.ID, 50*time.Millisecond)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, done)
			return
		case errors.Is(err, context.DeadlineExceeded):
		default:
			writeCodedError(w, err)
			return
		}
		if latest, getErr := s.signatures.Get(r.Context(), job.ID); getErr == nil {
			job = latest
		}
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.signatures == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "签名服务未初始化"))
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobs, err := s.signatures.List(r.Context(), opts...)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*signing.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleSignatureDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET"))
		return
	}
	if s.signatures == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "签名服务未初始化"))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/signatures/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeInvalidArgument, "缺少任务 ID"))
		return
	}
	if id == "stats" {
		s.handleStats(w, r)
		return
	}
	job, err := s.signatures.Get(r.Context(), id)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.signatures.Stats(r.Context(), opts...)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type typedDataRequest struct {
	Domain    string          `json:"domain"`
	Kind      string          `json:"kind"`
	Message   json.RawMessage `json:"message"`
	Signature string          `json:"signature,omitempty"`
}

func (s *Server) decodeTypedData(w http.ResponseWriter, r *http.Request) (*typedDataRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 POST"))
		return nil, false
	}
	if s.typedData == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "类型化数据服务未初始化"))
		return nil, false
	}
	var req typedDataRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

func (s *Server) handleTypedDataHash(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTypedData(w, r)
	if !ok {
		return
	}
	preview, err := s.typedData.Preview(req.Domain, req.Kind, req.Message)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleTypedDataRecover(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTypedData(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Signature) == "" {
		writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeInvalidArgument, "缺少 signature"))
		return
	}
	signer, err := s.typedData.Recover(req.Domain, req.Kind, req.Message, req.Signature)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signer": signer.Hex()})
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET"))
		return
	}
	views := []domain.View{}
	for _, d := range s.domains.List() {
		views = append(views, d.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET"))
		return
	}
	kinds := []message.Kind{}
	if s.kinds != nil {
		kinds = append(kinds, s.kinds.Kinds()...)
	}
	writeJSON(w, http.StatusOK, kinds)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET"))
		return
	}
	keys := []keystore.KeyInfo{}
	if s.keys != nil {
		keys = append(keys, s.keys.List()...)
	}
	writeJSON(w, http.StatusOK, keys)
}

func parseListOptions(r *http.Request) ([]signing.ListOption, error) {
	q := r.URL.Query()
	var opts []signing.ListOption

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 需要是正整数")
		}
		opts = append(opts, signing.WithLimit(limit))
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 需要是非负整数")
		}
		opts = append(opts, signing.WithOffset(offset))
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []signing.Status
		for _, part := range strings.Split(raw, ",") {
			status := signing.Status(strings.ToLower(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !signing.IsValidStatus(status) {
				return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "未知的任务状态 %q", part)
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, signing.WithStatuses(statuses...))
	}
	if raw := q.Get("has_result"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "has_result 需要是布尔值")
		}
		opts = append(opts, signing.WithResultPresence(has))
	}
	for _, bound := range []struct {
		name  string
		apply func(time.Time) signing.ListOption
	}{
		{"updated_since", signing.WithUpdatedSince},
		{"updated_until", signing.WithUpdatedUntil},
	} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts < 0 {
			return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "%s 需要是 Unix 秒级时间戳", bound.name)
		}
		opts = append(opts, bound.apply(time.Unix(ts, 0)))
	}

	opts = append(opts,
		signing.WithDomain(q.Get("domain")),
		signing.WithKind(q.Get("kind")),
		signing.WithKey(q.Get("key")),
		signing.WithQuery(q.Get("q")),
		signing.WithSortOrder(signing.ParseSortOrder(q.Get("order"))),
	)
	return opts, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败")
	}
	return nil
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "服务已关闭"))
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
