// Package openlibrary implements the provider contract on the Open
// Library books API. ISBN lookups use the bibkeys form with jscmd=data
// and enrich from the edition document; the covers API builds image
// URLs directly from the ISBN.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookvault/internal/circuitbreaker"
	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/models"
	"bookvault/internal/ratelimit"
)

const (
	ProviderName    = "openlibrary"
	defaultBaseURL  = "https://openlibrary.org"
	defaultCoverURL = "https://covers.openlibrary.org"
)

type Client struct {
	baseURL    string
	coverURL   string
	httpClient *http.Client
	limiter    *ratelimit.Registry
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
}

type Options struct {
	BaseURL  string
	CoverURL string
	Limiter  *ratelimit.Registry
	Breaker  *circuitbreaker.Breaker
	Logger   logging.Logger
}

func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	coverURL := opts.CoverURL
	if coverURL == "" {
		coverURL = defaultCoverURL
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
		// Open Library asks clients to stay at 1 req/s.
		limiter = ratelimit.NewRegistry(1, 1)
	}

	return &Client{
		baseURL:    baseURL,
		coverURL:   coverURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
	}
}

func (c *Client) Name() string { return ProviderName }

// FetchByID treats the ID as an Open Library key such as OL7353617M.
func (c *Client) FetchByID(ctx context.Context, id string) (*models.Book, error) {
	endpoint := fmt.Sprintf("%s/api/books?bibkeys=OLID:%s&format=json&jscmd=data", c.baseURL, url.QueryEscape(id))
	return c.fetchBibkey(ctx, endpoint, "OLID:"+id, "")
}

func (c *Client) FetchByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	normalized := utils.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, errors.ValidationError("ISBN is required")
	}
	endpoint := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", c.baseURL, normalized)
	return c.fetchBibkey(ctx, endpoint, "ISBN:"+normalized, normalized)
}

// Search uses the search.json endpoint; results carry less detail than
// a direct ISBN lookup and no raw edition payload.
func (c *Client) Search(ctx context.Context, query string) ([]*models.Book, error) {
	if query == "" {
		return nil, errors.ValidationError("search query is required")
	}

	endpoint := fmt.Sprintf("%s/search.json?q=%s&limit=20", c.baseURL, url.QueryEscape(query))
	raw, err := c.getJSON(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var result struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Key         string   `json:"key"`
			Title       string   `json:"title"`
			AuthorNames []string `json:"author_name"`
			ISBNs       []string `json:"isbn"`
			Subjects    []string `json:"subject"`
			Language    []string `json:"language"`
		} `json:"docs"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.ProviderError("unexpected open library search shape", err)
	}
	if result.NumFound == 0 || len(result.Docs) == 0 {
		return nil, errors.NotFoundError("book")
	}

	books := make([]*models.Book, 0, len(result.Docs))
	for _, doc := range result.Docs {
		book := &models.Book{
			Title:      doc.Title,
			Authors:    doc.AuthorNames,
			Categories: doc.Subjects,
			Source:     ProviderName,
			ExternalID: strings.TrimPrefix(doc.Key, "/works/"),
		}
		for _, isbn := range doc.ISBNs {
			normalized := utils.NormalizeISBN(isbn)
			switch len(normalized) {
			case 10:
				if book.ISBN10 == "" {
					book.ISBN10 = normalized
				}
			case 13:
				if book.ISBN13 == "" {
					book.ISBN13 = normalized
				}
			}
		}
		if len(doc.Language) > 0 {
			book.Language = doc.Language[0]
		}
		books = append(books, book)
	}
	return books, nil
}

// CoverURLForISBN builds the covers API address for a given size suffix
// (S, M, or L).
func (c *Client) CoverURLForISBN(isbn, size string) string {
	return fmt.Sprintf("%s/b/isbn/%s-%s.jpg?default=false", c.coverURL, utils.NormalizeISBN(isbn), size)
}

func (c *Client) fetchBibkey(ctx context.Context, endpoint, bibkey, isbn string) (*models.Book, error) {
	raw, err := c.getJSON(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var result map[string]bookData
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.ProviderError("unexpected open library response shape", err)
	}
	data, ok := result[bibkey]
	if !ok || data.Title == "" {
		return nil, errors.NotFoundError("book")
	}

	entryRaw, _ := json.Marshal(data)
	book := c.toBook(data, entryRaw)

	// The data view omits page counts surprisingly often; the edition
	// document usually has them.
	if isbn != "" && (book.PageCount == 0 || book.Publisher == "") {
		c.enrichFromEdition(ctx, book, isbn)
	}

	return book, nil
}

func (c *Client) enrichFromEdition(ctx context.Context, book *models.Book, isbn string) {
	endpoint := fmt.Sprintf("%s/isbn/%s.json", c.baseURL, isbn)
	raw, err := c.getJSON(ctx, endpoint)
	if err != nil {
		c.logger.Debug("Edition enrichment skipped",
			logging.String("isbn", isbn),
			logging.String("error", err.Error()),
		)
		return
	}

	var ed edition
	if err := json.Unmarshal(raw, &ed); err != nil {
		return
	}
	if book.PageCount == 0 {
		book.PageCount = ed.NumberOfPages
	}
	if book.Publisher == "" && len(ed.Publishers) > 0 {
		book.Publisher = ed.Publishers[0]
	}
	if book.Language == "" && len(ed.Languages) > 0 {
		book.Language = strings.TrimPrefix(ed.Languages[0].Key, "/languages/")
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string) (json.RawMessage, error) {
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
			return nil, errors.ProviderError("open library request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.NotFoundError("book")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.ProviderError(
				fmt.Sprintf("open library returned status %d", resp.StatusCode), nil)
		}

		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, errors.ProviderError("failed to decode open library response", err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (c *Client) toBook(data bookData, raw json.RawMessage) *models.Book {
	book := &models.Book{
		Title:         data.Title,
		Subtitle:      data.Subtitle,
		PageCount:     data.NumberOfPages,
		PublishedDate: data.PublishDate,
		InfoLink:      data.URL,
		Source:        ProviderName,
		ExternalID:    strings.TrimPrefix(data.Key, "/books/"),
		RawPayload:    raw,
	}

	for _, a := range data.Authors {
		book.Authors = append(book.Authors, a.Name)
	}
	if len(data.Publishers) > 0 {
		book.Publisher = data.Publishers[0].Name
	}
	for _, s := range data.Subjects {
		book.Categories = append(book.Categories, s.Name)
	}
	if len(data.Identifiers.ISBN10) > 0 {
		book.ISBN10 = data.Identifiers.ISBN10[0]
	}
	if len(data.Identifiers.ISBN13) > 0 {
		book.ISBN13 = data.Identifiers.ISBN13[0]
	}

	for _, cover := range []string{data.Cover.Large, data.Cover.Medium, data.Cover.Small} {
		if cover != "" {
			book.ExternalImageURL = cover
			break
		}
	}

	return book
}
