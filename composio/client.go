// ABOUTME: HTTP client for the Composio connection broker
// ABOUTME: Executes CRM tools on connected accounts and discovers active connections
package composio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harperreed/cellsync/crm"
	"github.com/harperreed/cellsync/models"
	"go.uber.org/zap"
)

// DefaultBaseURL is the hosted broker endpoint.
const DefaultBaseURL = "https://backend.composio.dev"

// ErrUpstream wraps broker failures that are not authorization problems.
var ErrUpstream = errors.New("connection broker request failed")

// authMarkers are substrings of tool errors that indicate a dead connection.
var authMarkers = []string{
	"unauthorized",
	"invalid_grant",
	"invalid token",
	"token expired",
	"expired token",
	"token has expired",
	"authentication failed",
	"reauth",
}

// authStatusPattern matches 401/403 only when phrased as a status code, so
// record IDs or durations that happen to contain those digits do not count.
var authStatusPattern = regexp.MustCompile(`\b(?:status(?: code)?|http|code)\s*[:=]?\s*40[13]\b|\b40[13]\s+(?:unauthorized|forbidden)\b`)

// Client talks to the broker over HTTP.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// Options configure a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a broker client. Requests are not retried.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-api-key", opts.APIKey)

	return &Client{httpClient: client, logger: logger}
}

type executeRequest struct {
	ConnectedAccountID string         `json:"connected_account_id"`
	Arguments          map[string]any `json:"arguments"`
}

type executeResponse struct {
	Data       json.RawMessage `json:"data"`
	Error      *string         `json:"error"`
	Successful bool            `json:"successful"`
}

// Execute runs tool against the connected account and returns its data payload.
func (c *Client) Execute(ctx context.Context, tool, connectionID string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}

	var result executeResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(executeRequest{ConnectedAccountID: connectionID, Arguments: args}).
		SetResult(&result).
		Post("/api/v3/tools/execute/" + url.PathEscape(tool))
	if err != nil {
		c.logger.Error("broker tool call failed", zap.String("tool", tool), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, tool, err)
	}

	if err := statusError(resp, tool); err != nil {
		c.logger.Warn("broker tool call rejected",
			zap.String("tool", tool),
			zap.Int("status_code", resp.StatusCode()),
			zap.Error(err),
		)
		return nil, err
	}

	if !result.Successful {
		msg := "tool reported failure"
		if result.Error != nil && *result.Error != "" {
			msg = *result.Error
		}
		if isAuthMessage(msg) {
			return nil, fmt.Errorf("%w: %s: %s", crm.ErrReauthRequired, tool, msg)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, tool, msg)
	}

	return result.Data, nil
}

type connectedAccount struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Toolkit struct {
		Slug string `json:"slug"`
	} `json:"toolkit"`
}

type connectedAccountsResponse struct {
	Items []connectedAccount `json:"items"`
}

// FindConnection returns the ID of the user's active connection for crmType.
// It returns crm.ErrNoConnection when there is none.
func (c *Client) FindConnection(ctx context.Context, userID string, crmType models.CRMType) (string, error) {
	var result connectedAccountsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_ids":      userID,
			"toolkit_slugs": crmType.ToolkitSlug(),
			"statuses":      "ACTIVE",
		}).
		SetResult(&result).
		Get("/api/v3/connected_accounts")
	if err != nil {
		return "", fmt.Errorf("%w: list connected accounts: %v", ErrUpstream, err)
	}
	if err := statusError(resp, "connected_accounts"); err != nil {
		return "", err
	}

	for _, acct := range result.Items {
		if !strings.EqualFold(acct.Status, "ACTIVE") {
			continue
		}
		if acct.Toolkit.Slug != "" && !strings.EqualFold(acct.Toolkit.Slug, crmType.ToolkitSlug()) {
			continue
		}
		return acct.ID, nil
	}

	return "", fmt.Errorf("%w for %s", crm.ErrNoConnection, crmType.DisplayName())
}

func statusError(resp *resty.Response, op string) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", crm.ErrReauthRequired, op, code)
	case code >= 300:
		return fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, op, code, truncate(resp.String(), 200))
	}
	return nil
}

func isAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return authStatusPattern.MatchString(lower)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
