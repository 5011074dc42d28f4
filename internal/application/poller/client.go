package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the origin serving session pages and the chat API
	DefaultBaseURL = "https://www.youtube.com"

	watchPath    = "/watch"
	liveChatPath = "/youtubei/v1/live_chat/get_live_chat"
	clientName   = "WEB"
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// Client performs the two HTTP calls the poller needs
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type chatRequest struct {
	Context      chatContext `json:"context"`
	Continuation string      `json:"continuation"`
}

type chatContext struct {
	Client chatClient `json:"client"`
}

type chatClient struct {
	ClientVersion string `json:"clientVersion"`
	ClientName    string `json:"clientName"`
}

// NewClient creates a client against baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Client{
		http:   rc,
		logger: logger,
	}
}

// FetchPage returns the raw text of the session's watch page
func (c *Client) FetchPage(ctx context.Context, sessionID string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("v", sessionID).
		Get(watchPath)
	if err != nil {
		return "", fmt.Errorf("failed to fetch session page: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("failed to fetch session page: unexpected status %d", res.StatusCode())
	}

	c.logger.Debug("session page fetched",
		zap.String("session_id", sessionID),
		zap.Int("bytes", len(res.Body())))

	return res.String(), nil
}

// FetchChat requests the chat update following continuation and returns the
// raw response body
func (c *Client) FetchChat(ctx context.Context, md *Metadata, continuation string) ([]byte, error) {
	body := chatRequest{
		Context: chatContext{
			Client: chatClient{
				ClientVersion: md.ClientVersion,
				ClientName:    clientName,
			},
		},
		Continuation: continuation,
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", md.APIKey).
		SetBody(body).
		Post(liveChatPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to fetch chat: unexpected status %d", res.StatusCode())
	}

	return res.Body(), nil
}
