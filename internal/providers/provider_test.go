package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/common/errors"
	"bookvault/internal/models"
)

type fakeProvider struct {
	name    string
	byISBN  map[string]*models.Book
	results []*models.Book
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchByID(ctx context.Context, id string) (*models.Book, error) {
	return nil, errors.NotFoundError("book")
}

func (f *fakeProvider) FetchByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	if book, ok := f.byISBN[isbn]; ok {
		return book, nil
	}
	return nil, errors.NotFoundError("book")
}

func (f *fakeProvider) Search(ctx context.Context, query string) ([]*models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestFetchByISBNFirstHitWins(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&fakeProvider{name: "first"})
	registry.Register(&fakeProvider{
		name:   "second",
		byISBN: map[string]*models.Book{"9780553293357": {Title: "Foundation"}},
	})

	book, err := registry.FetchByISBN(context.Background(), "9780553293357")
	require.NoError(t, err)
	assert.Equal(t, "Foundation", book.Title)
}

func TestFetchByISBNSoftFailureFallsThrough(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&fakeProvider{
		name: "broken",
		err:  errors.ProviderError("connection refused", nil),
	})
	registry.Register(&fakeProvider{
		name:   "working",
		byISBN: map[string]*models.Book{"9780553293357": {Title: "Foundation"}},
	})

	book, err := registry.FetchByISBN(context.Background(), "9780553293357")
	require.NoError(t, err, "a failing provider does not stop the chain")
	assert.Equal(t, "Foundation", book.Title)
}

func TestFetchByISBNExhaustion(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&fakeProvider{name: "empty"})

	_, err := registry.FetchByISBN(context.Background(), "9780000000000")
	assert.True(t, errors.IsNotFound(err))
}

func TestSearchMergesAndDedupesByISBN(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&fakeProvider{
		name: "a",
		results: []*models.Book{
			{Title: "Foundation", ISBN13: "9780553293357"},
			{Title: "Dune", ISBN13: "9780441013593"},
		},
	})
	registry.Register(&fakeProvider{
		name: "b",
		results: []*models.Book{
			{Title: "Foundation (reprint)", ISBN13: "978-0-553-29335-7"},
		},
	})

	books, err := registry.Search(context.Background(), "scifi")
	require.NoError(t, err)
	assert.Len(t, books, 2, "same ISBN from two providers collapses to one")
}

func TestSearchDedupesByTitleAuthor(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&fakeProvider{
		name: "a",
		results: []*models.Book{
			{Title: "Foundation", Authors: []string{"Isaac Asimov"}},
		},
	})
	registry.Register(&fakeProvider{
		name: "b",
		results: []*models.Book{
			{Title: "foundation ", Authors: []string{"isaac asimov"}},
		},
	})

	books, err := registry.Search(context.Background(), "foundation")
	require.NoError(t, err)
	assert.Len(t, books, 1, "normalized title+author collapses duplicates without ISBNs")
}

func TestSearchToleratesFailingProvider(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(&fakeProvider{name: "broken", err: errors.ProviderError("down", nil)})
	registry.Register(&fakeProvider{
		name:    "working",
		results: []*models.Book{{Title: "Dune", ISBN13: "9780441013593"}},
	})

	books, err := registry.Search(context.Background(), "dune")
	require.NoError(t, err)
	assert.Len(t, books, 1)
}
