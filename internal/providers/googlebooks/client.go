// Package googlebooks implements the provider contract on the Google
// Books volumes API. Lookups by ISBN use the q=isbn: query form; volume
// IDs fetch directly. An API key is optional but raises quota limits.
package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bookvault/internal/circuitbreaker"
	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/models"
	"bookvault/internal/ratelimit"
)

const (
	ProviderName   = "googlebooks"
	defaultBaseURL = "https://www.googleapis.com/books/v1"
	maxSearchHits  = 20
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Registry
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
}

type Options struct {
	APIKey  string
	BaseURL string
	Limiter *ratelimit.Registry
	Breaker *circuitbreaker.Breaker
	Logger  logging.Logger
}

func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = circuitbreaker.New(ProviderName, circuitbreaker.ProviderConfig, logger)
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewRegistry(5, 2)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
	}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) FetchByID(ctx context.Context, id string) (*models.Book, error) {
	endpoint := fmt.Sprintf("%s/volumes/%s", c.baseURL, url.PathEscape(id))
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	var vol volume
	raw, err := c.getJSON(ctx, endpoint, &vol)
	if err != nil {
		return nil, err
	}
	if vol.ID == "" {
		return nil, errors.NotFoundError("book")
	}
	return c.toBook(vol, raw), nil
}

func (c *Client) FetchByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	normalized := utils.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, errors.ValidationError("ISBN is required")
	}
	return c.queryOne(ctx, "isbn:"+normalized)
}

func (c *Client) Search(ctx context.Context, query string) ([]*models.Book, error) {
	if query == "" {
		return nil, errors.ValidationError("search query is required")
	}

	resp, err := c.queryVolumes(ctx, query, maxSearchHits)
	if err != nil {
		return nil, err
	}

	books := make([]*models.Book, 0, len(resp.Items))
	for _, item := range resp.Items {
		raw, _ := json.Marshal(item)
		books = append(books, c.toBook(item, raw))
	}
	return books, nil
}

func (c *Client) queryOne(ctx context.Context, query string) (*models.Book, error) {
	resp, err := c.queryVolumes(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	item := resp.Items[0]
	raw, _ := json.Marshal(item)
	return c.toBook(item, raw), nil
}

func (c *Client) queryVolumes(ctx context.Context, query string, maxResults int) (*volumesResponse, error) {
	endpoint := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", c.baseURL, url.QueryEscape(query), maxResults)
	if c.apiKey != "" {
		endpoint += "&key=" + url.QueryEscape(c.apiKey)
	}

	var resp volumesResponse
	if _, err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.TotalItems == 0 || len(resp.Items) == 0 {
		return nil, errors.NotFoundError("book")
	}
	return &resp, nil
}

// getJSON performs a rate-limited, breaker-guarded GET and decodes the
// body into dest, returning the raw bytes for payload retention.
func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx, ProviderName); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, errors.ProviderError("failed to create request", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.ProviderError("google books request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.NotFoundError("book")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.ProviderError(
				fmt.Sprintf("google books returned status %d", resp.StatusCode), nil)
		}

		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, errors.ProviderError("failed to decode google books response", err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}

	raw := result.(json.RawMessage)
	if err := json.Unmarshal(raw, dest); err != nil {
		return nil, errors.ProviderError("unexpected google books response shape", err)
	}
	return raw, nil
}

func (c *Client) toBook(vol volume, raw json.RawMessage) *models.Book {
	info := vol.VolumeInfo

	book := &models.Book{
		Title:            info.Title,
		Subtitle:         info.Subtitle,
		Authors:          info.Authors,
		Description:      info.Description,
		Categories:       info.Categories,
		AverageRating:    info.AverageRating,
		RatingsCount:     info.RatingsCount,
		Publisher:        info.Publisher,
		PublishedDate:    info.PublishedDate,
		Language:         info.Language,
		PageCount:        info.PageCount,
		InfoLink:         info.InfoLink,
		PreviewLink:      info.PreviewLink,
		Source:           ProviderName,
		ExternalID:       vol.ID,
		RawPayload:       raw,
		ExternalImageURL: info.ImageLinks.best(),
	}

	for _, ident := range info.IndustryIdentifiers {
		switch ident.Type {
		case "ISBN_10":
			book.ISBN10 = ident.Identifier
		case "ISBN_13":
			book.ISBN13 = ident.Identifier
		}
	}

	return book
}
