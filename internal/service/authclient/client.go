package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
)

const (
	defaultTimeout = 10 * time.Second

	RequestIDHeader = "X-Request-ID"
)

// Messages used when backend does not say what went wrong
const (
	DefaultRequestResetMessage = "Failed to send reset email"
	DefaultVerifyTokenMessage  = "Invalid or expired reset link"
	DefaultResetMessage        = "Failed to reset password"
)

type tokenStore interface {
	Get(ctx context.Context) (models.TokenPair, error)
}

type Config struct {
	// Backend authority base URL, e.g. http://localhost:5000/api
	BaseURL string

	// Upper bound of a single round trip. If not set than default is used
	Timeout time.Duration

	// If not set http.DefaultTransport is used
	HTTPClient *http.Client
}

// Client talks to the backend authority.
// One method per endpoint, one round trip per call, no retries.
type Client struct {
	baseURL string
	timeout time.Duration

	client *http.Client
	tokens tokenStore
	logger logger.Logger
}

func New(cfg Config, tokens tokenStore, l logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL must not be empty")
	}
	if tokens == nil {
		return nil, errors.New("token store must not be nil")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		tokens:  tokens,
		logger:  l.With("component", "authclient"),
	}, nil
}

// Ask backend to email a reset link. Email is normalized before sending
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body := models.NewResetRequest(email)

	resp, err := c.do(ctx, "request password reset", http.MethodPost, "/auth/forgot-password", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck

	if !isSuccess(resp) {
		return c.recoveryError(resp, DefaultRequestResetMessage)
	}

	drain(resp)
	return nil
}

// Check reset token. Returned email may be empty and is for display only
func (c *Client) VerifyResetToken(ctx context.Context, token string) (email string, err error) {
	type verifyResponse struct {
		Email string `json:"email"`
	}

	resp, err := c.do(ctx, "verify reset token", http.MethodPost, "/auth/verify-reset-token", map[string]string{"token": token}, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() // nolint:errcheck

	if !isSuccess(resp) {
		re := c.recoveryError(resp, DefaultVerifyTokenMessage)
		return "", &apperrors.TokenError{RecoveryError: *re}
	}

	var data verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		// Body is optional on success, a broken one only loses the display email
		c.logger.Warn("Failed to decode verify response", "error", err)
	}

	return data.Email, nil
}

// Set new password using verified token
func (c *Client) ResetPassword(ctx context.Context, token string, password string) error {
	body := map[string]string{"token": token, "password": password}

	resp, err := c.do(ctx, "reset password", http.MethodPost, "/auth/reset-password", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck

	if !isSuccess(resp) {
		return c.recoveryError(resp, DefaultResetMessage)
	}

	drain(resp)
	return nil
}

// Confirm with backend that current session is an admin one.
// Any non-2xx means "not admin" and is returned as apperrors.ErrRoleDenied
func (c *Client) VerifyAdminRole(ctx context.Context) error {
	pair, err := c.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrRoleDenied, err)
	}

	resp, err := c.do(ctx, "verify admin role", http.MethodGet, "/auth/admin/verify", nil, pair.AccessToken)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck
	drain(resp)

	if !isSuccess(resp) {
		c.logger.Info("Admin role denied by backend", "status_code", resp.StatusCode)
		return apperrors.ErrRoleDenied
	}

	return nil
}

// Fetch user of current session. Backend wraps it as '{"user": {...}}'
func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	type userResponse struct {
		User models.User `json:"user"`
	}

	var user models.User

	pair, err := c.tokens.Get(ctx)
	if err != nil {
		return user, err
	}

	resp, err := c.do(ctx, "current user", http.MethodGet, "/auth/me", nil, pair.AccessToken)
	if err != nil {
		return user, err
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp)
		return user, apperrors.ErrUnauthorized
	case !isSuccess(resp):
		drain(resp)
		return user, fmt.Errorf("unexpected status code %d for current user", resp.StatusCode)
	}

	var data userResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return user, fmt.Errorf("failed to decode user: %w", err)
	}
	user = data.User
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	return user, nil
}

// Exchange refresh token for a new pair.
// If backend does not rotate refresh token the current one is kept
func (c *Client) RefreshTokens(ctx context.Context) (models.TokenPair, error) {
	current, err := c.tokens.Get(ctx)
	if err != nil {
		return models.TokenPair{}, err
	}

	resp, err := c.do(ctx, "refresh tokens", http.MethodPost, "/auth/refresh", nil, current.RefreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}
	defer resp.Body.Close() // nolint:errcheck

	if !isSuccess(resp) {
		drain(resp)
		return models.TokenPair{}, fmt.Errorf("%w: refresh rejected with status %d", apperrors.ErrUnauthorized, resp.StatusCode)
	}

	var pair models.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to decode tokens: %w", err)
	}
	if pair.AccessToken == "" {
		return models.TokenPair{}, errors.New("backend returned no access token")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = current.RefreshToken
	}

	return pair, nil
}

// do sends request and returns response with any status code.
// Only transport failures are errors here, wrapped as apperrors.NetworkError
func (c *Client) do(ctx context.Context, op string, method string, path string, body any, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = buf
	}

	// The timeout covers the body read too, so it is released by the response body
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		c.logger.Warn("Backend request failed", "op", op, "request_id", requestID, "error", err)
		return nil, &apperrors.NetworkError{Op: op, Err: err}
	}

	c.logger.Debug("Backend response",
		"op", op,
		"request_id", requestID,
		"status_code", resp.StatusCode,
		"duration", time.Since(start),
	)

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// recoveryError reads '{"error": "..."}' body. Missing or broken body gives the fallback message
func (c *Client) recoveryError(resp *http.Response, fallback string) *apperrors.RecoveryError {
	type errorResponse struct {
		Error string `json:"error"`
	}

	var data errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.logger.Debug("Failed to decode error response", "status_code", resp.StatusCode, "error", err)
	}

	message := strings.TrimSpace(data.Error)
	if message == "" {
		message = fallback
	}

	return &apperrors.RecoveryError{StatusCode: resp.StatusCode, Message: message}
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// drain lets the transport reuse connection
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
