package covers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookvault/internal/common/errors"
	"bookvault/internal/providers/googlebooks"
	"bookvault/internal/providers/openlibrary"
)

// httpOpener builds a Candidate.Open that GETs one URL.
func httpOpener(client *http.Client, imageURL string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return nil, errors.ProviderError("failed to create image request", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.ProviderError("image request failed", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, errors.NotFoundError("cover image")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.ProviderError(
				fmt.Sprintf("image request returned status %d", resp.StatusCode), nil)
		}
		return resp.Body, nil
	}
}

// googleBooksSource offers the image links Google Books reported for
// the book. The zoom=0 variant of a thumbnail is usually the largest
// rendition available.
type googleBooksSource struct {
	client     *googlebooks.Client
	httpClient *http.Client
}

func NewGoogleBooksSource(client *googlebooks.Client) Source {
	return &googleBooksSource{
		client:     client,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *googleBooksSource) Name() string { return "googlebooks" }

func (s *googleBooksSource) Candidates(ctx context.Context, book BookRef) ([]Candidate, error) {
	imageURL := ""
	if book.Source == googlebooks.ProviderName && book.ExternalImageURL != "" {
		imageURL = book.ExternalImageURL
	} else if book.ISBN != "" {
		fetched, err := s.client.FetchByISBN(ctx, book.ISBN)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		imageURL = fetched.ExternalImageURL
	}
	if imageURL == "" {
		return nil, nil
	}

	var candidates []Candidate
	if strings.Contains(imageURL, "zoom=1") {
		large := strings.Replace(imageURL, "zoom=1", "zoom=0", 1)
		candidates = append(candidates, Candidate{
			URL:         large,
			HighResHint: true,
			Open:        httpOpener(s.httpClient, large),
		})
	}
	candidates = append(candidates, Candidate{
		URL:  imageURL,
		Open: httpOpener(s.httpClient, imageURL),
	})
	return candidates, nil
}

// openLibrarySource builds covers-API URLs straight from the ISBN. The
// default=false query makes missing covers a clean 404 instead of a
// 1x1 transparent image.
type openLibrarySource struct {
	client     *openlibrary.Client
	httpClient *http.Client
}

func NewOpenLibrarySource(client *openlibrary.Client) Source {
	return &openLibrarySource{
		client:     client,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *openLibrarySource) Name() string { return "openlibrary" }

func (s *openLibrarySource) Candidates(ctx context.Context, book BookRef) ([]Candidate, error) {
	if book.ISBN == "" {
		return nil, nil
	}

	large := s.client.CoverURLForISBN(book.ISBN, "L")
	medium := s.client.CoverURLForISBN(book.ISBN, "M")

	return []Candidate{
		{URL: large, HighResHint: true, Open: httpOpener(s.httpClient, large)},
		{URL: medium, Open: httpOpener(s.httpClient, medium)},
	}, nil
}

// longitoodSource asks the Longitood bookcover API, which aggregates
// retailer cover scans not present in the other catalogs.
type longitoodSource struct {
	baseURL    string
	httpClient *http.Client
}

const longitoodBaseURL = "https://bookcover.longitood.com"

func NewLongitoodSource(baseURL string) Source {
	if baseURL == "" {
		baseURL = longitoodBaseURL
	}
	return &longitoodSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *longitoodSource) Name() string { return "longitood" }

func (s *longitoodSource) Candidates(ctx context.Context, book BookRef) ([]Candidate, error) {
	if len(book.ISBN) != 13 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/bookcover/%s", s.baseURL, url.PathEscape(book.ISBN))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.ProviderError("failed to create longitood request", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.ProviderError("longitood request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ProviderError(
			fmt.Sprintf("longitood returned status %d", resp.StatusCode), nil)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.ProviderError("failed to decode longitood response", err)
	}
	if payload.URL == "" {
		return nil, nil
	}

	return []Candidate{{
		URL:         payload.URL,
		HighResHint: true,
		Open:        httpOpener(s.httpClient, payload.URL),
	}}, nil
}

// placeholderSource terminates the chain. Its candidate is accepted
// without fetching or decoding, so resolution cannot fail.
type placeholderSource struct {
	url string
}

func NewPlaceholderSource(url string) Source {
	return &placeholderSource{url: url}
}

func (s *placeholderSource) Name() string { return "placeholder" }

func (s *placeholderSource) Candidates(ctx context.Context, book BookRef) ([]Candidate, error) {
	return []Candidate{{URL: s.url}}, nil
}
