package github

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanpost/scanpost/pkg/publish"
)

func TestCreateComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/widgets/issues/42/comments", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var payload struct {
			Body string `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "# Scan Results\n## Security\n\n\nSecurity scan: \nNo issues found.", payload.Body)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1001,"html_url":"https://github.com/acme/widgets/pull/42#issuecomment-1001","body":"ignored"}`)
	}))
	defer server.Close()

	c, err := NewClient(Options{Token: "test-token", APIURL: server.URL})
	require.NoError(t, err)

	got, err := c.CreateComment(context.Background(), "acme", "widgets", 42,
		"# Scan Results\n## Security\n\n\nSecurity scan: \nNo issues found.")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), got.ID)
	assert.Equal(t, "https://github.com/acme/widgets/pull/42#issuecomment-1001", got.URL)
}

func TestCreateCommentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"message":"Not Found"}`},
		{"bad credentials", http.StatusUnauthorized, `{"message":"Bad credentials"}`},
		{"validation failed", http.StatusUnprocessableEntity, `{"message":"Validation Failed"}`},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c, err := NewClient(Options{Token: "t", APIURL: server.URL + "/"})
			require.NoError(t, err)

			_, err = c.CreateComment(context.Background(), "acme", "widgets", 1, "body")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode())
		})
	}
}

func TestCreateCommentThroughPublisher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Resource not accessible by integration"}`)
	}))
	defer server.Close()

	c, err := NewClient(Options{Token: "t", APIURL: server.URL})
	require.NoError(t, err)

	p := publish.NewPublisher(staticFiles{"scan.txt": "x"}, c, nil)
	_, err = p.Publish(context.Background(), publish.Request{
		Owner: "acme", Repo: "widgets", IssueNumber: 3, ScanResultPath: "scan.txt",
	})

	var rce *publish.RemoteCallError
	require.True(t, errors.As(err, &rce))
	assert.Equal(t, http.StatusForbidden, rce.StatusCode())
}

type staticFiles map[string]string

func (s staticFiles) ReadFile(name string) ([]byte, error) {
	return []byte(s[name]), nil
}

func TestCreateCommentContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	}))
	defer server.Close()

	c, err := NewClient(Options{Token: "t", APIURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.CreateComment(ctx, "acme", "widgets", 1, "body")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{APIURL: "https://api.github.com/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GitHub credentials")
}

func TestParseAPIURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"", "https://api.github.com/", false},
		{"https://ghe.example.com/api/v3", "https://ghe.example.com/api/v3/", false},
		{"https://ghe.example.com/api/v3/", "https://ghe.example.com/api/v3/", false},
		{"not a url", "", true},
		{"/relative/path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := parseAPIURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func generateKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, pemBytes
}

func TestSignJWT(t *testing.T) {
	key, _ := generateKey(t)
	iat := time.Unix(1700000000, 0)
	exp := iat.Add(5 * time.Minute)

	token, err := signJWT(12345, iat, exp, key)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var payload map[string]int64
	require.NoError(t, json.Unmarshal(payloadJSON, &payload))
	assert.Equal(t, int64(12345), payload["iss"])
	assert.Equal(t, iat.Unix(), payload["iat"])
	assert.Equal(t, exp.Unix(), payload["exp"])

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestParsePrivateKey(t *testing.T) {
	key, pkcs1 := generateKey(t)

	got, err := ParsePrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	got, err = ParsePrivateKey(pkcs8)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = ParsePrivateKey([]byte("not pem"))
	assert.Error(t, err)
}

func TestCreateCommentWithAppAuth(t *testing.T) {
	_, pemBytes := generateKey(t)
	var tokenRequests int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/installations/99/access_tokens":
			atomic.AddInt32(&tokenRequests, 1)
			assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"token":"inst-token","expires_at":%q}`, time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
		case "/repos/acme/widgets/issues/5/comments":
			assert.Equal(t, "token inst-token", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":7}`)
		default:
			assert.Failf(t, "unexpected request", "path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c, err := NewClient(Options{
		APIURL: server.URL,
		App:    &AppCredentials{AppID: 1, InstallationID: 99, PrivateKeyPEM: pemBytes},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := c.CreateComment(context.Background(), "acme", "widgets", 5, "body")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenRequests), "installation token should be reused")
}

func TestAppTokenSourceFailure(t *testing.T) {
	_, pemBytes := generateKey(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"A JSON web token could not be decoded"}`)
	}))
	defer server.Close()

	src, err := NewAppTokenSource(AppCredentials{AppID: 1, InstallationID: 2, PrivateKeyPEM: pemBytes}, server.URL, time.Second)
	require.NoError(t, err)

	_, err = src.Token()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token request failed 401")
}

func TestNewAppTokenSourceValidation(t *testing.T) {
	_, pemBytes := generateKey(t)
	_, err := NewAppTokenSource(AppCredentials{AppID: 1, PrivateKeyPEM: pemBytes}, "https://api.github.com/", 0)
	assert.Error(t, err)
}
