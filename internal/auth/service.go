package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"TypedSign-Chain/internal/config"
	"TypedSign-Chain/pkg/logger"
)

// Service 负责 HTTP 端点的身份验证和授权。
type Service struct {
	mode   Mode
	tokens []tokenEntry
	audit  *slog.Logger
}

type tokenEntry struct {
	digest  [sha256.Size]byte
	subject *Subject
}

// NewService 构造身份认证服务实例。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}
	svc := &Service{mode: mode, audit: logger.Audit()}

	switch mode {
	case ModeDisabled:
		return svc, nil
	case ModeToken:
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}

	if len(cfg.Tokens) == 0 {
		return nil, errors.New("token mode requires at least one token")
	}
	seen := make(map[string]struct{}, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		name := strings.TrimSpace(token.Name)
		if name == "" {
			return nil, errors.New("token name must be configured")
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate token name: %s", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(token.Secret) == "" {
			return nil, fmt.Errorf("token %s has an empty secret", name)
		}
		subject := &Subject{
			Name:        name,
			Permissions: append([]string(nil), token.Permissions...),
			Disabled:    token.Disabled,
		}
		subject.normalise()
		svc.tokens = append(svc.tokens, tokenEntry{
			digest:  sha256.Sum256([]byte(token.Secret)),
			subject: subject,
		})
	}
	return svc, nil
}

// ConfigFromSettings 将配置文件中的令牌转换为认证配置，env 形式的令牌从环境变量读取。
func ConfigFromSettings(cfg config.AuthConfig, lookupEnv func(string) (string, bool)) (Config, error) {
	out := Config{Mode: Mode(cfg.Mode)}
	for _, token := range cfg.Tokens {
		secret := token.Token
		if token.Env != "" {
			value, ok := lookupEnv(token.Env)
			if !ok || strings.TrimSpace(value) == "" {
				return Config{}, fmt.Errorf("environment variable %s for token %s is empty", token.Env, token.Name)
			}
			secret = value
		}
		out.Tokens = append(out.Tokens, Token{
			Name:        token.Name,
			Secret:      strings.TrimSpace(secret),
			Permissions: token.Permissions,
			Disabled:    token.Disabled,
		})
	}
	return out, nil
}

// Mode 返回当前身份认证服务的工作模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest 解析 Authorization 头并返回令牌对应的主体。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	header := strings.TrimSpace(authorization)
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return nil, ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	digest := sha256.Sum256([]byte(token))
	var match *Subject
	for _, entry := range s.tokens {
		if subtle.ConstantTimeCompare(entry.digest[:], digest[:]) == 1 {
			match = entry.subject
		}
	}
	if match == nil {
		return nil, ErrInvalidToken
	}
	if match.Disabled {
		return nil, ErrSubjectRevoked
	}
	return match, nil
}
