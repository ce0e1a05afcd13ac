// internal/dopigo/client.go
package dopigo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrTransport – błąd sieci, status ≠ 200 albo nieczytelna odpowiedź. Ta warstwa nie ponawia.
var ErrTransport = errors.New("dopigo: transport failure")

const (
	DefaultBaseURL = "https://panel.dopigo.com"

	authPath     = "/users/get_auth_token/"
	productsPath = "/api/v1/products/all/"

	tokenTimeout    = 30 * time.Second
	productsTimeout = 60 * time.Second
	feedTimeout     = 30 * time.Second
	testTimeout     = 15 * time.Second
)

type Config struct {
	BaseURL           string `json:"base_url"`
	RequestsPerMinute int    `json:"requests_per_minute"` // 0 = bez limitu
	UserAgent         string `json:"user_agent"`
}

type Client struct {
	log     zerolog.Logger
	http    *http.Client
	baseURL string
	ua      string
	limiter *rate.Limiter
}

func NewClient(log zerolog.Logger, cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "dopi2woo/1.0"
	}
	c := &Client{
		log:     log,
		http:    &http.Client{},
		baseURL: base,
		ua:      ua,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}
	return c
}

// Page to jedna strona z /products/all/. Paginated=false gdy API zwróciło gołą tablicę.
type Page struct {
	Paginated bool
	Count     int
	Next      string
	Results   []json.RawMessage
}

// FetchToken wymienia login/hasło na token API.
func (c *Client) FetchToken(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrTransport, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: token missing in response", ErrTransport)
	}
	return out.Token, nil
}

// FetchProductsPage pobiera jedną stronę produktów.
func (c *Client) FetchProductsPage(ctx context.Context, token string, limit, offset int) (*Page, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no auth token", ErrTransport)
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	ctx, cancel := context.WithTimeout(ctx, productsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+productsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build products request: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	page, err := decodePage(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return page, nil
}

// FetchCategoryFeed pobiera XML z kategoriami ze skonfigurowanego feedu.
func (c *Client) FetchCategoryFeed(ctx context.Context, feedURL string) ([]byte, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, fmt.Errorf("%w: no XML feed URL configured", ErrTransport)
	}
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build feed request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: feed returned empty response", ErrTransport)
	}
	return body, nil
}

// TestConnection sprawdza, czy token otwiera listę produktów.
func (c *Client) TestConnection(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+productsPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Token "+token)
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", req.URL.Redacted()).Msg("dopigo request failed")
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("url", req.URL.Redacted()).
			Str("body", truncate(string(body), 512)).
			Msg("dopigo API error")
		return nil, fmt.Errorf("%w: http %d", ErrTransport, resp.StatusCode)
	}
	return body, nil
}

func decodePage(body []byte) (*Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response")
	}
	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("invalid JSON response: %w", err)
		}
		return &Page{Results: list}, nil
	case '{':
		var env struct {
			Count   FlexInt         `json:"count"`
			Next    *string         `json:"next"`
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("invalid JSON response: %w", err)
		}
		r := bytes.TrimSpace(env.Results)
		if len(r) == 0 || r[0] != '[' {
			// pojedynczy obiekt bez koperty
			return &Page{Results: []json.RawMessage{trimmed}}, nil
		}
		page := &Page{Paginated: true, Count: int(env.Count)}
		if env.Next != nil {
			page.Next = *env.Next
		}
		if err := json.Unmarshal(r, &page.Results); err != nil {
			return nil, fmt.Errorf("invalid results: %w", err)
		}
		return page, nil
	default:
		return nil, errors.New("invalid JSON response")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
