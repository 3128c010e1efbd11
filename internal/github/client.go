// Package github creates issue and pull request comments through the GitHub
// REST API. Authentication is either a static token or a GitHub App
// installation token minted on demand.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v32/github"
	"golang.org/x/oauth2"

	"github.com/scanpost/scanpost/pkg/publish"
)

const defaultAPIURL = "https://api.github.com/"

// Options configures a Client.
type Options struct {
	Token   string
	App     *AppCredentials // used when Token is empty
	APIURL  string
	Timeout time.Duration
}

// Client implements publish.CommentCreator on top of go-github.
type Client struct {
	gh *gh.Client
}

// NewClient creates a Client. Either a token or App credentials are required.
func NewClient(opts Options) (*Client, error) {
	base, err := parseAPIURL(opts.APIURL)
	if err != nil {
		return nil, err
	}

	var src oauth2.TokenSource
	switch {
	case opts.Token != "":
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	case opts.App != nil:
		appSrc, err := NewAppTokenSource(*opts.App, base.String(), opts.Timeout)
		if err != nil {
			return nil, fmt.Errorf("github app auth: %w", err)
		}
		src = oauth2.ReuseTokenSource(nil, appSrc)
	default:
		return nil, fmt.Errorf("no GitHub credentials: set a token or GitHub App credentials")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
	}

	client := gh.NewClient(httpClient)
	client.BaseURL = base
	client.UserAgent = "scanpost"
	return &Client{gh: client}, nil
}

// CreateComment posts body as a new comment on the issue or pull request.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*publish.Comment, error) {
	created, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return nil, &APIError{Status: statusOf(err), Err: err}
	}
	return &publish.Comment{
		ID:  created.GetID(),
		URL: created.GetHTMLURL(),
	}, nil
}

// APIError is a failed GitHub API call with the HTTP status when one was received.
type APIError struct {
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("github API error %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("github API call failed: %v", e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode implements publish.StatusCoder.
func (e *APIError) StatusCode() int { return e.Status }

func statusOf(err error) int {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return rateErr.Response.StatusCode
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return abuseErr.Response.StatusCode
	}
	return 0
}

func parseAPIURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = defaultAPIURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse GitHub API URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("GitHub API URL %q must be absolute", raw)
	}
	return u, nil
}
