// Package auth owns the SSO bearer token lifecycle: acquisition, expiry
// tracking, and transparent refresh. Credentials and the derived token are
// stored under separate keys so the credential survives token invalidation.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/httpclient"
	"pageassist/internal/logging"
	"pageassist/internal/storage"
)

const (
	keyCredentials = "sso_credentials"
	keyToken       = "sso_access_token"
	keyConfig      = "sso_gateway_config"

	// safetyMargin is subtracted from the token lifetime at store time, so a
	// token is refreshed before the gateway would start rejecting it.
	safetyMargin = 5 * time.Minute
)

// Credentials are the long-lived user-supplied SSO inputs.
type Credentials struct {
	UserID   string `json:"userid"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
	OTPType  string `json:"otp_type,omitempty"`
}

// TokenResponse is the SSO login exchange result.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	ExpiresIn   int64  `json:"expires_in"`
	IDToken     string `json:"id_token"`
	Nonce       string `json:"nonce"`
}

// GatewayConfig locates the SSO endpoint and the Gemini gateway it fronts.
type GatewayConfig struct {
	SSOURL     string `json:"sso_url"`
	GatewayURL string `json:"gateway_url"`
	ProjectID  string `json:"project_id"`
	Location   string `json:"location"`
	Model      string `json:"model"`
}

// storedToken is the persisted token record. ExpiryUnixMs already has the
// safety margin subtracted.
type storedToken struct {
	AccessToken  string `json:"access_token"`
	ExpiryUnixMs int64  `json:"expiry_unix_ms"`
}

// Manager guards the bearer token used by the SSO gateway backend.
// Concurrent callers needing a refresh share a single login via
// singleflight; each request captures its own token value at send time.
type Manager struct {
	kv         storage.KV
	httpClient *http.Client
	logger     logging.Logger
	group      singleflight.Group
	now        func() time.Time
}

// NewManager builds a token manager over the given durable store.
func NewManager(kv storage.KV, logger logging.Logger) *Manager {
	logger = logging.OrNop(logger)
	return &Manager{
		kv:         kv,
		httpClient: httpclient.New(30*time.Second, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// SetCredentials persists the long-lived SSO credentials.
func (m *Manager) SetCredentials(creds Credentials) error {
	return m.kv.Set(keyCredentials, creds)
}

// Credentials returns the stored credentials, or nil when none are stored.
func (m *Manager) Credentials() (*Credentials, error) {
	var creds Credentials
	if err := m.kv.Get(keyCredentials, &creds); err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &creds, nil
}

// SetConfig persists the gateway endpoint configuration.
func (m *Manager) SetConfig(cfg GatewayConfig) error {
	return m.kv.Set(keyConfig, cfg)
}

// Config returns the stored gateway configuration, or nil when unset.
func (m *Manager) Config() (*GatewayConfig, error) {
	var cfg GatewayConfig
	if err := m.kv.Get(keyConfig, &cfg); err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Configured reports whether credentials and endpoints are both present.
func (m *Manager) Configured() bool {
	creds, err := m.Credentials()
	if err != nil || creds == nil || creds.UserID == "" || creds.Password == "" {
		return false
	}
	cfg, err := m.Config()
	return err == nil && cfg != nil && cfg.SSOURL != "" && cfg.GatewayURL != ""
}

// GetValidToken returns a cached token while it is still inside its validity
// window, and otherwise performs a fresh login with the stored credentials.
// The refreshed token is persisted and survives process restarts.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	if token := m.cachedToken(); token != "" {
		return token, nil
	}

	value, err, _ := m.group.Do("sso-login", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		if token := m.cachedToken(); token != "" {
			return token, nil
		}
		creds, err := m.Credentials()
		if err != nil {
			return nil, err
		}
		cfg, err := m.Config()
		if err != nil {
			return nil, err
		}
		if creds == nil || cfg == nil || creds.UserID == "" || cfg.SSOURL == "" {
			return nil, pkgerrors.NewAuthError(pkgerrors.ReasonNoCredentials, 0,
				fmt.Errorf("no stored credentials or gateway config"))
		}
		resp, err := m.Login(ctx, cfg.SSOURL, *creds)
		if err != nil {
			return nil, err
		}
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate clears the cached token. Called after a detected 401 so the
// next request logs in afresh. The credential record is untouched.
func (m *Manager) Invalidate() {
	if err := m.kv.Delete(keyToken); err != nil {
		m.logger.Warn("failed to clear cached token: %v", err)
	}
}

// Login performs the SSO network exchange and caches the resulting token
// with its expiry (lifetime minus the safety margin).
func (m *Manager) Login(ctx context.Context, ssoURL string, creds Credentials) (*TokenResponse, error) {
	otp := creds.OTP
	if otp == "" {
		otp = "NONE"
	}
	otpType := creds.OTPType
	if otpType == "" {
		otpType = "PUSH"
	}
	body, err := json.Marshal(map[string]string{
		"userid":   creds.UserID,
		"password": creds.Password,
		"otp":      otp,
		"otp_type": otpType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ssoURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	m.logger.Debug("SSO login for user %s at %s", creds.UserID, ssoURL)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.NewAuthError(pkgerrors.ReasonLoginFailed, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.NewAuthError(pkgerrors.ReasonLoginFailed, resp.StatusCode,
			fmt.Errorf("sso login failed: %s", resp.Status))
	}

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}
	var token TokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, pkgerrors.NewAuthError(pkgerrors.ReasonLoginFailed, resp.StatusCode,
			fmt.Errorf("login response carried no access token"))
	}

	expiry := m.now().Add(time.Duration(token.ExpiresIn)*time.Second - safetyMargin)
	if err := m.kv.Set(keyToken, storedToken{
		AccessToken:  token.AccessToken,
		ExpiryUnixMs: expiry.UnixMilli(),
	}); err != nil {
		m.logger.Warn("failed to persist token: %v", err)
	}
	m.logger.Info("SSO login succeeded, token valid until %s", expiry.Format(time.RFC3339))
	return &token, nil
}

// cachedToken returns the stored token while its expiry window holds, and
// clears it otherwise.
func (m *Manager) cachedToken() string {
	var stored storedToken
	if err := m.kv.Get(keyToken, &stored); err != nil {
		return ""
	}
	if stored.AccessToken == "" {
		return ""
	}
	if m.now().UnixMilli() >= stored.ExpiryUnixMs {
		m.Invalidate()
		return ""
	}
	return stored.AccessToken
}
