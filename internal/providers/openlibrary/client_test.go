package openlibrary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/common/errors"
	"bookvault/internal/ratelimit"
)

const bibkeyJSON = `{
	"ISBN:9780553293357": {
		"key": "/books/OL7353617M",
		"title": "Foundation",
		"authors": [{"name": "Isaac Asimov"}],
		"publishers": [{"name": "Bantam Books"}],
		"publish_date": "1991",
		"number_of_pages": 296,
		"subjects": [{"name": "Science fiction"}],
		"identifiers": {
			"isbn_10": ["0553293354"],
			"isbn_13": ["9780553293357"]
		},
		"cover": {
			"small": "https://covers.openlibrary.org/b/id/12-S.jpg",
			"large": "https://covers.openlibrary.org/b/id/12-L.jpg"
		}
	}
}`

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Options{
		BaseURL: server.URL,
		Limiter: ratelimit.NewRegistry(1000, 100),
	})
	return client, server
}

func TestFetchByISBN(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/books":
			assert.Equal(t, "ISBN:9780553293357", r.URL.Query().Get("bibkeys"))
			assert.Equal(t, "data", r.URL.Query().Get("jscmd"))
			w.Write([]byte(bibkeyJSON))
		default:
			http.NotFound(w, r)
		}
	})
	defer server.Close()

	book, err := client.FetchByISBN(context.Background(), "9780553293357")
	require.NoError(t, err)

	assert.Equal(t, "Foundation", book.Title)
	assert.Equal(t, []string{"Isaac Asimov"}, book.Authors)
	assert.Equal(t, "Bantam Books", book.Publisher)
	assert.Equal(t, 296, book.PageCount)
	assert.Equal(t, "9780553293357", book.ISBN13)
	assert.Equal(t, "0553293354", book.ISBN10)
	assert.Equal(t, []string{"Science fiction"}, book.Categories)
	assert.Equal(t, "openlibrary", book.Source)
	assert.Equal(t, "OL7353617M", book.ExternalID)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/12-L.jpg", book.ExternalImageURL)
}

func TestFetchByISBNEditionEnrichment(t *testing.T) {
	partial := `{
		"ISBN:9780553293357": {
			"key": "/books/OL7353617M",
			"title": "Foundation"
		}
	}`
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/books":
			w.Write([]byte(partial))
		case "/isbn/9780553293357.json":
			w.Write([]byte(`{"number_of_pages": 296, "publishers": ["Bantam Books"]}`))
		default:
			http.NotFound(w, r)
		}
	})
	defer server.Close()

	book, err := client.FetchByISBN(context.Background(), "9780553293357")
	require.NoError(t, err)
	assert.Equal(t, 296, book.PageCount, "edition document fills missing page count")
	assert.Equal(t, "Bantam Books", book.Publisher)
}

func TestFetchByISBNNotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer server.Close()

	_, err := client.FetchByISBN(context.Background(), "9780553293357")
	assert.True(t, errors.IsNotFound(err))
}

func TestSearch(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		w.Write([]byte(`{
			"numFound": 1,
			"docs": [{
				"key": "/works/OL46125W",
				"title": "Foundation",
				"author_name": ["Isaac Asimov"],
				"isbn": ["0553293354", "9780553293357"],
				"language": ["eng"]
			}]
		}`))
	})
	defer server.Close()

	books, err := client.Search(context.Background(), "foundation asimov")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Foundation", books[0].Title)
	assert.Equal(t, "9780553293357", books[0].ISBN13)
	assert.Equal(t, "0553293354", books[0].ISBN10)
	assert.Equal(t, "OL46125W", books[0].ExternalID)
}

func TestCoverURLForISBN(t *testing.T) {
	client := NewClient(Options{Limiter: ratelimit.NewRegistry(1000, 100)})

	url := client.CoverURLForISBN("978-0-553-29335-7", "L")
	assert.Equal(t, "https://covers.openlibrary.org/b/isbn/9780553293357-L.jpg?default=false", url)
}
