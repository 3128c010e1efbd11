package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// AppCredentials identifies a GitHub App installation.
type AppCredentials struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPEM  []byte
}

// AppTokenSource mints installation access tokens using GitHub App
// authentication (JWT -> installation token).
type AppTokenSource struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	apiURL         string
	httpClient     *http.Client
	now            func() time.Time
}

// NewAppTokenSource creates a token source from the App ID and PEM-encoded private key.
func NewAppTokenSource(creds AppCredentials, apiURL string, timeout time.Duration) (*AppTokenSource, error) {
	if creds.AppID == 0 || creds.InstallationID == 0 {
		return nil, fmt.Errorf("app id and installation id are required")
	}
	key, err := ParsePrivateKey(creds.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	return &AppTokenSource{
		appID:          creds.AppID,
		installationID: creds.InstallationID,
		privateKey:     key,
		apiURL:         apiURL,
		httpClient:     &http.Client{Timeout: timeout},
		now:            time.Now,
	}, nil
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// Token implements oauth2.TokenSource.
func (s *AppTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.httpClient.Timeout)
	defer cancel()
	return s.installationToken(ctx)
}

// installationToken generates a JWT and exchanges it for an installation access token.
func (s *AppTokenSource) installationToken(ctx context.Context) (*oauth2.Token, error) {
	jwt, err := s.generateJWT()
	if err != nil {
		return nil, fmt.Errorf("generate JWT: %w", err)
	}

	url := fmt.Sprintf("%sapp/installations/%d/access_tokens", s.apiURL, s.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &oauth2.Token{
		AccessToken: result.Token,
		TokenType:   "token",
		Expiry:      result.ExpiresAt,
	}, nil
}

// generateJWT creates a short-lived JWT for GitHub App authentication.
func (s *AppTokenSource) generateJWT() (string, error) {
	now := s.now()
	// GitHub App JWTs: iat is backdated 60s, exp is max 10 minutes
	iat := now.Add(-60 * time.Second)
	exp := now.Add(5 * time.Minute)

	return signJWT(s.appID, iat, exp, s.privateKey)
}
