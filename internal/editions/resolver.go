// Package editions handles canonical identity for books arriving from
// external providers and maintains edition links between alternate
// printings of the same work.
package editions

import (
	"context"
	"sort"
	"strings"

	"bookvault/internal/common/errors"
	"bookvault/internal/common/logging"
	"bookvault/internal/common/utils"
	"bookvault/internal/models"
	"bookvault/internal/storage"
)

// Resolver assigns canonical UUIDs to provider records. The store's
// external-ID map and ISBN indexes are consulted before minting a new
// identity, so repeat fetches of the same work converge on one record.
type Resolver struct {
	store  storage.Storage
	logger logging.Logger
}

func NewResolver(store storage.Storage, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Resolver{store: store, logger: logger}
}

// ResolveCanonicalID finds or mints the canonical UUID for a provider
// record and records the external-ID mapping either way. Resolution
// order: external-ID map, then ISBN-13, then ISBN-10, then a new UUID.
func (r *Resolver) ResolveCanonicalID(ctx context.Context, book *models.Book) (string, error) {
	if book.Source == "" || book.ExternalID == "" {
		return "", errors.ValidationError("book requires source and external ID for resolution")
	}

	canonicalID, err := r.store.FindByExternalID(ctx, book.Source, book.ExternalID)
	if err == nil {
		return canonicalID, nil
	}
	if !errors.IsNotFound(err) {
		return "", err
	}

	canonicalID = r.resolveByISBN(ctx, book)
	if canonicalID == "" {
		canonicalID = utils.NewCanonicalID()
	}

	if err := r.store.MapExternalID(ctx, book.Source, book.ExternalID, canonicalID); err != nil {
		return "", err
	}
	return canonicalID, nil
}

func (r *Resolver) resolveByISBN(ctx context.Context, book *models.Book) string {
	for _, isbn := range []string{book.ISBN13, book.ISBN10} {
		if isbn == "" {
			continue
		}
		id, err := r.store.FindByISBN(ctx, utils.NormalizeISBN(isbn))
		if err == nil {
			return id
		}
		if !errors.IsNotFound(err) {
			r.logger.Warn("ISBN resolution failed",
				logging.String("isbn", isbn),
				logging.String("error", err.Error()),
			)
		}
	}
	return ""
}

// GroupKey derives the edition-group key from the first author and
// title, both normalized. Books without a title get no group.
func GroupKey(book *models.Book) string {
	if book.Title == "" {
		return ""
	}
	author := ""
	if len(book.Authors) > 0 {
		author = book.Authors[0]
	}
	return normalizeKeyPart(author) + "|" + normalizeKeyPart(book.Title)
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Linker maintains the link rows inside one edition group.
type Linker struct {
	store  storage.Storage
	logger logging.Logger
}

func NewLinker(store storage.Storage, logger logging.Logger) *Linker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Linker{store: store, logger: logger}
}

// Relink recomputes the links for a group from scratch: the highest
// edition number becomes primary and every other member links to it
// as an alternate edition. Replaying on an unchanged group produces
// identical state.
func (l *Linker) Relink(ctx context.Context, groupKey string) error {
	if groupKey == "" {
		return errors.ValidationError("edition group key is required")
	}

	group, err := l.store.GetEditionGroup(ctx, groupKey)
	if err != nil {
		return err
	}
	if len(group) == 0 {
		return l.store.ReplaceEditionLinks(ctx, groupKey, nil)
	}

	sort.SliceStable(group, func(i, j int) bool {
		return editionNumber(group[i]) > editionNumber(group[j])
	})
	primary := group[0]

	links := make([]models.EditionLink, 0, len(group)-1)
	for _, sibling := range group[1:] {
		links = append(links, models.EditionLink{
			GroupKey:     groupKey,
			PrimaryID:    primary.ID,
			SiblingID:    sibling.ID,
			Relationship: models.RelationshipAlternateEdition,
			LinkSource:   sibling.Source,
		})
	}

	if err := l.store.ReplaceEditionLinks(ctx, groupKey, links); err != nil {
		return err
	}
	return l.store.SetPrimaryEdition(ctx, groupKey, primary.ID)
}

func editionNumber(book *models.Book) int {
	if book.Edition == nil {
		return 0
	}
	return book.Edition.EditionNumber
}
