package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/credobot/credo/internal/domain"
)

const (
	tokenURL   = "https://www.reddit.com/api/v1/access_token"
	oauthBase  = "https://oauth.reddit.com"
	tokenSlack = 30 * time.Second
)

// ScriptClient talks to Reddit with script-app password-grant OAuth. Tokens
// are cached and refreshed ahead of expiry.
type ScriptClient struct {
	creds      Credentials
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewScriptClient(creds Credentials) *ScriptClient {
	if creds.UserAgent == "" {
		creds.UserAgent = "credo/1.0"
	}
	return &ScriptClient{
		creds:      creds,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ScriptClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(tokenSlack).Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}

	c.accessToken = parsed.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *ScriptClient) get(ctx context.Context, path string, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oauthBase+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reddit API returned status %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				Subreddit string `json:"subreddit"`
				Title     string `json:"title"`
				SelfText  string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *ScriptClient) FetchThreads(ctx context.Context, subreddits []string, limit int) ([]domain.ThreadContext, error) {
	if limit <= 0 {
		limit = 10
	}
	var threads []domain.ThreadContext
	for _, sub := range subreddits {
		var l listing
		path := fmt.Sprintf("/r/%s/new?limit=%d", url.PathEscape(sub), limit)
		if err := c.get(ctx, path, &l); err != nil {
			return threads, fmt.Errorf("fetch r/%s: %w", sub, err)
		}
		for _, child := range l.Data.Children {
			text := child.Data.Title
			if child.Data.SelfText != "" {
				text += "\n\n" + child.Data.SelfText
			}
			threads = append(threads, domain.ThreadContext{
				Subreddit: child.Data.Subreddit,
				ThreadID:  child.Data.Name,
				Text:      text,
			})
		}
	}
	return threads, nil
}

func (c *ScriptClient) PostReply(ctx context.Context, thread domain.ThreadContext, body string) (string, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"api_type": {"json"},
		"thing_id": {thread.ThreadID},
		"text":     {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthBase+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create comment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("comment request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read comment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("comment endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Things []struct {
					Data struct {
						Name string `json:"name"`
					} `json:"data"`
				} `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal comment response: %w", err)
	}
	if len(parsed.JSON.Errors) > 0 {
		return "", fmt.Errorf("reddit API error: %v", parsed.JSON.Errors[0])
	}
	if len(parsed.JSON.Data.Things) == 0 {
		return "", nil
	}
	return parsed.JSON.Data.Things[0].Data.Name, nil
}
