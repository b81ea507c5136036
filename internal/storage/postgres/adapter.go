// Package postgres implements the storage interface on PostgreSQL via the
// pgx stdlib driver. JSON-shaped columns (authors, categories, qualifiers,
// provenance attempts) are stored as JSONB; raw provider payloads are kept
// as TEXT because old ingestion runs left concatenated objects that JSONB
// would reject.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bookvault/internal/common/errors"
	"bookvault/internal/models"
	"bookvault/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	db, err := sql.Open("pgx", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			subtitle TEXT NOT NULL DEFAULT '',
			authors JSONB NOT NULL DEFAULT '[]',
			description TEXT NOT NULL DEFAULT '',
			isbn_10 VARCHAR(10) NOT NULL DEFAULT '',
			isbn_13 VARCHAR(13) NOT NULL DEFAULT '',
			categories JSONB NOT NULL DEFAULT '[]',
			average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			ratings_count INTEGER NOT NULL DEFAULT 0,
			publisher TEXT NOT NULL DEFAULT '',
			published_date VARCHAR(32) NOT NULL DEFAULT '',
			language VARCHAR(16) NOT NULL DEFAULT '',
			page_count INTEGER NOT NULL DEFAULT 0,
			info_link TEXT NOT NULL DEFAULT '',
			preview_link TEXT NOT NULL DEFAULT '',
			source VARCHAR(64) NOT NULL DEFAULT '',
			external_id VARCHAR(128) NOT NULL DEFAULT '',
			raw_payload TEXT NOT NULL DEFAULT '',
			s3_image_path TEXT NOT NULL DEFAULT '',
			external_image_url TEXT NOT NULL DEFAULT '',
			cover_width INTEGER NOT NULL DEFAULT 0,
			cover_height INTEGER NOT NULL DEFAULT 0,
			recommendation_ids JSONB NOT NULL DEFAULT '[]',
			qualifiers JSONB NOT NULL DEFAULT '{}',
			edition_group_key VARCHAR(128) NOT NULL DEFAULT '',
			edition_number INTEGER NOT NULL DEFAULT 0,
			edition_format VARCHAR(64) NOT NULL DEFAULT '',
			is_primary_edition BOOLEAN NOT NULL DEFAULT false,
			primary_edition_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_books_isbn_13 ON books(isbn_13) WHERE isbn_13 <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_books_isbn_10 ON books(isbn_10) WHERE isbn_10 <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_books_edition_group ON books(edition_group_key) WHERE edition_group_key <> ''`,

		`CREATE TABLE IF NOT EXISTS external_ids (
			source VARCHAR(64) NOT NULL,
			external_id VARCHAR(128) NOT NULL,
			canonical_id UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (source, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS cached_books (
			book_id UUID PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			access_count BIGINT NOT NULL DEFAULT 1,
			embedding JSONB NOT NULL DEFAULT '[]',
			raw_payload TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_cached_books_last_accessed ON cached_books(last_accessed_at)`,

		`CREATE TABLE IF NOT EXISTS edition_links (
			group_key VARCHAR(128) NOT NULL,
			primary_id UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			sibling_id UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			relationship VARCHAR(64) NOT NULL,
			link_source VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (group_key, primary_id, sibling_id)
		)`,

		`CREATE TABLE IF NOT EXISTS cover_provenance (
			book_id VARCHAR(128) PRIMARY KEY,
			attempts JSONB NOT NULL DEFAULT '[]',
			selected JSONB,
			placeholder BOOLEAN NOT NULL DEFAULT false,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const bookColumns = `id, title, subtitle, authors, description, isbn_10, isbn_13,
	categories, average_rating, ratings_count, publisher, published_date,
	language, page_count, info_link, preview_link, source, external_id,
	raw_payload, s3_image_path, external_image_url, cover_width, cover_height,
	recommendation_ids, qualifiers, edition_group_key, edition_number,
	edition_format, is_primary_edition, primary_edition_id`

func scanBook(row interface{ Scan(...interface{}) error }) (*models.Book, error) {
	var (
		book                                      models.Book
		authors, categories, recIDs, qualifiers   []byte
		rawPayload                                string
		groupKey, format                          string
		editionNumber                             int
		isPrimary                                 bool
		primaryID                                 sql.NullString
	)

	err := row.Scan(
		&book.ID, &book.Title, &book.Subtitle, &authors, &book.Description,
		&book.ISBN10, &book.ISBN13, &categories, &book.AverageRating,
		&book.RatingsCount, &book.Publisher, &book.PublishedDate,
		&book.Language, &book.PageCount, &book.InfoLink, &book.PreviewLink,
		&book.Source, &book.ExternalID, &rawPayload, &book.S3ImagePath,
		&book.ExternalImageURL, &book.CoverWidth, &book.CoverHeight,
		&recIDs, &qualifiers, &groupKey, &editionNumber, &format,
		&isPrimary, &primaryID,
	)
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal(authors, &book.Authors)
	_ = json.Unmarshal(categories, &book.Categories)
	_ = json.Unmarshal(recIDs, &book.RecommendationIDs)
	_ = json.Unmarshal(qualifiers, &book.Qualifiers)
	book.RawPayload = json.RawMessage(rawPayload)

	if groupKey != "" {
		book.Edition = &models.EditionInfo{
			GroupKey:      groupKey,
			EditionNumber: editionNumber,
			Format:        format,
			IsPrimary:     isPrimary,
			PrimaryID:     primaryID.String,
		}
	}

	return &book, nil
}

func marshalBookFields(book *models.Book) (authors, categories, recIDs, qualifiers []byte) {
	authors, _ = json.Marshal(orEmptySlice(book.Authors))
	categories, _ = json.Marshal(orEmptySlice(book.Categories))
	recIDs, _ = json.Marshal(orEmptySlice(book.RecommendationIDs))
	if book.Qualifiers == nil {
		qualifiers = []byte("{}")
	} else {
		qualifiers, _ = json.Marshal(book.Qualifiers)
	}
	return
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (a *Adapter) GetBook(ctx context.Context, id string) (*models.Book, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)

	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("book")
	}
	if err != nil {
		return nil, errors.StorageError("failed to get book", err)
	}
	return book, nil
}

func (a *Adapter) UpsertBook(ctx context.Context, book *models.Book) (string, error) {
	if book.ID == "" {
		return "", errors.ValidationError("book ID is required for upsert")
	}

	authors, categories, recIDs, qualifiers := marshalBookFields(book)

	var groupKey, format string
	var editionNumber int
	var isPrimary bool
	var primaryID sql.NullString
	if book.Edition != nil {
		groupKey = book.Edition.GroupKey
		editionNumber = book.Edition.EditionNumber
		format = book.Edition.Format
		isPrimary = book.Edition.IsPrimary
		if book.Edition.PrimaryID != "" {
			primaryID = sql.NullString{String: book.Edition.PrimaryID, Valid: true}
		}
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO books (
			id, title, subtitle, authors, description, isbn_10, isbn_13,
			categories, average_rating, ratings_count, publisher, published_date,
			language, page_count, info_link, preview_link, source, external_id,
			raw_payload, s3_image_path, external_image_url, cover_width, cover_height,
			recommendation_ids, qualifiers, edition_group_key, edition_number,
			edition_format, is_primary_edition, primary_edition_id
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			authors = EXCLUDED.authors,
			description = EXCLUDED.description,
			isbn_10 = EXCLUDED.isbn_10,
			isbn_13 = EXCLUDED.isbn_13,
			categories = EXCLUDED.categories,
			average_rating = EXCLUDED.average_rating,
			ratings_count = EXCLUDED.ratings_count,
			publisher = EXCLUDED.publisher,
			published_date = EXCLUDED.published_date,
			language = EXCLUDED.language,
			page_count = EXCLUDED.page_count,
			info_link = EXCLUDED.info_link,
			preview_link = EXCLUDED.preview_link,
			source = EXCLUDED.source,
			external_id = EXCLUDED.external_id,
			raw_payload = EXCLUDED.raw_payload,
			s3_image_path = EXCLUDED.s3_image_path,
			external_image_url = EXCLUDED.external_image_url,
			cover_width = EXCLUDED.cover_width,
			cover_height = EXCLUDED.cover_height,
			recommendation_ids = EXCLUDED.recommendation_ids,
			qualifiers = EXCLUDED.qualifiers,
			edition_group_key = EXCLUDED.edition_group_key,
			edition_number = EXCLUDED.edition_number,
			edition_format = EXCLUDED.edition_format,
			is_primary_edition = EXCLUDED.is_primary_edition,
			primary_edition_id = EXCLUDED.primary_edition_id,
			updated_at = now()`,
		book.ID, book.Title, book.Subtitle, authors, book.Description,
		book.ISBN10, book.ISBN13, categories, book.AverageRating,
		book.RatingsCount, book.Publisher, book.PublishedDate, book.Language,
		book.PageCount, book.InfoLink, book.PreviewLink, book.Source,
		book.ExternalID, string(book.RawPayload), book.S3ImagePath,
		book.ExternalImageURL, book.CoverWidth, book.CoverHeight, recIDs,
		qualifiers, groupKey, editionNumber, format, isPrimary, primaryID,
	)
	if err != nil {
		return "", errors.StorageError("failed to upsert book", err)
	}

	return book.ID, nil
}

func (a *Adapter) DeleteBook(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return errors.StorageError("failed to delete book", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFoundError("book")
	}
	return nil
}

func (a *Adapter) SearchBooks(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	rows, err := a.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books
		WHERE title ILIKE $1 OR subtitle ILIKE $1 OR authors::text ILIKE $1
		ORDER BY ratings_count DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, errors.StorageError("failed to search books", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

func (a *Adapter) FindBooksMissingCovers(ctx context.Context, limit int) ([]*models.Book, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books
		WHERE s3_image_path = ''
		ORDER BY updated_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.StorageError("failed to find books missing covers", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

func (a *Adapter) FindBooksByCategories(ctx context.Context, categories []string, excludeID string, limit int) ([]*models.Book, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	conditions := make([]string, 0, len(categories))
	args := []interface{}{excludeID, limit}
	for _, cat := range categories {
		args = append(args, "%"+cat+"%")
		conditions = append(conditions, fmt.Sprintf("categories::text ILIKE $%d", len(args)))
	}

	query := `SELECT ` + bookColumns + ` FROM books
		WHERE id::text <> $1 AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY ratings_count DESC
		LIMIT $2`

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError("failed to find books by categories", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

func collectBooks(rows *sql.Rows) ([]*models.Book, error) {
	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, errors.StorageError("failed to scan book row", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("row iteration failed", err)
	}
	return books, nil
}

func (a *Adapter) FindByExternalID(ctx context.Context, source, externalID string) (string, error) {
	var canonicalID string
	err := a.db.QueryRowContext(ctx,
		`SELECT canonical_id FROM external_ids WHERE source = $1 AND external_id = $2`,
		source, externalID).Scan(&canonicalID)
	if err == sql.ErrNoRows {
		return "", errors.NotFoundError("external ID mapping")
	}
	if err != nil {
		return "", errors.StorageError("failed to resolve external ID", err)
	}
	return canonicalID, nil
}

func (a *Adapter) FindByISBN(ctx context.Context, isbn string) (string, error) {
	var id string
	err := a.db.QueryRowContext(ctx,
		`SELECT id FROM books WHERE isbn_13 = $1 OR isbn_10 = $1 LIMIT 1`, isbn).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.NotFoundError("book with ISBN")
	}
	if err != nil {
		return "", errors.StorageError("failed to resolve ISBN", err)
	}
	return id, nil
}

func (a *Adapter) MapExternalID(ctx context.Context, source, externalID, canonicalID string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO external_ids (source, external_id, canonical_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (source, external_id) DO UPDATE SET canonical_id = EXCLUDED.canonical_id`,
		source, externalID, canonicalID)
	if err != nil {
		return errors.StorageError("failed to map external ID", err)
	}
	return nil
}

func (a *Adapter) SaveCachedBook(ctx context.Context, cached *models.CachedBook) error {
	embedding, _ := json.Marshal(cached.Embedding)
	if cached.Embedding == nil {
		embedding = []byte("[]")
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO cached_books (book_id, created_at, last_accessed_at, access_count, embedding, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (book_id) DO UPDATE SET
			last_accessed_at = EXCLUDED.last_accessed_at,
			access_count = cached_books.access_count + 1,
			embedding = EXCLUDED.embedding,
			raw_payload = EXCLUDED.raw_payload`,
		cached.Book.ID, cached.CreatedAt, cached.LastAccessedAt,
		cached.AccessCount, embedding, string(cached.RawPayload))
	if err != nil {
		return errors.StorageError("failed to save cached book", err)
	}
	return nil
}

func (a *Adapter) GetCachedBook(ctx context.Context, id string) (*models.CachedBook, error) {
	book, err := a.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	cached := &models.CachedBook{Book: *book}
	var embedding []byte
	var rawPayload string

	err = a.db.QueryRowContext(ctx, `
		SELECT created_at, last_accessed_at, access_count, embedding, raw_payload
		FROM cached_books WHERE book_id = $1`, id).Scan(
		&cached.CreatedAt, &cached.LastAccessedAt, &cached.AccessCount,
		&embedding, &rawPayload)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("cached book")
	}
	if err != nil {
		return nil, errors.StorageError("failed to get cached book", err)
	}

	_ = json.Unmarshal(embedding, &cached.Embedding)
	cached.RawPayload = json.RawMessage(rawPayload)
	return cached, nil
}

func (a *Adapter) TouchCachedBook(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE cached_books
		SET access_count = access_count + 1, last_accessed_at = now()
		WHERE book_id = $1`, id)
	if err != nil {
		return errors.StorageError("failed to touch cached book", err)
	}
	return nil
}

func (a *Adapter) DeleteStaleCachedBooks(ctx context.Context, before time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM cached_books WHERE last_accessed_at < $1`, before)
	if err != nil {
		return 0, errors.StorageError("failed to delete stale cached books", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (a *Adapter) GetEditionGroup(ctx context.Context, groupKey string) ([]*models.Book, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+bookColumns+` FROM books
		WHERE edition_group_key = $1
		ORDER BY edition_number DESC`, groupKey)
	if err != nil {
		return nil, errors.StorageError("failed to get edition group", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

func (a *Adapter) ReplaceEditionLinks(ctx context.Context, groupKey string, links []models.EditionLink) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edition_links WHERE group_key = $1`, groupKey); err != nil {
		return errors.StorageError("failed to delete edition links", err)
	}

	for _, link := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO edition_links (group_key, primary_id, sibling_id, relationship, link_source)
			VALUES ($1, $2, $3, $4, $5)`,
			link.GroupKey, link.PrimaryID, link.SiblingID,
			link.Relationship, link.LinkSource); err != nil {
			return errors.StorageError("failed to insert edition link", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit edition links", err)
	}
	return nil
}

func (a *Adapter) GetEditionLinks(ctx context.Context, groupKey string) ([]models.EditionLink, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT group_key, primary_id, sibling_id, relationship, link_source
		FROM edition_links WHERE group_key = $1
		ORDER BY sibling_id`, groupKey)
	if err != nil {
		return nil, errors.StorageError("failed to get edition links", err)
	}
	defer rows.Close()

	var links []models.EditionLink
	for rows.Next() {
		var link models.EditionLink
		if err := rows.Scan(&link.GroupKey, &link.PrimaryID, &link.SiblingID,
			&link.Relationship, &link.LinkSource); err != nil {
			return nil, errors.StorageError("failed to scan edition link", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (a *Adapter) SetPrimaryEdition(ctx context.Context, groupKey, primaryID string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE books
		SET is_primary_edition = (id::text = $2),
			primary_edition_id = CASE WHEN id::text = $2 THEN NULL ELSE $2::uuid END
		WHERE edition_group_key = $1`, groupKey, primaryID)
	if err != nil {
		return errors.StorageError("failed to set primary edition", err)
	}
	return nil
}

func (a *Adapter) SaveProvenance(ctx context.Context, prov *models.ImageProvenance) error {
	attempts, _ := json.Marshal(prov.Attempts)
	if prov.Attempts == nil {
		attempts = []byte("[]")
	}

	var selected interface{}
	if prov.Selected != nil {
		data, _ := json.Marshal(prov.Selected)
		selected = data
	}

	var completedAt interface{}
	if !prov.CompletedAt.IsZero() {
		completedAt = prov.CompletedAt
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO cover_provenance (book_id, attempts, selected, placeholder, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (book_id) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			selected = EXCLUDED.selected,
			placeholder = EXCLUDED.placeholder,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		prov.BookID, attempts, selected, prov.Placeholder, prov.StartedAt, completedAt)
	if err != nil {
		return errors.StorageError("failed to save provenance", err)
	}
	return nil
}

func (a *Adapter) GetProvenance(ctx context.Context, bookID string) (*models.ImageProvenance, error) {
	prov := &models.ImageProvenance{BookID: bookID}
	var attempts []byte
	var selected sql.NullString
	var completedAt sql.NullTime

	err := a.db.QueryRowContext(ctx, `
		SELECT attempts, selected, placeholder, started_at, completed_at
		FROM cover_provenance WHERE book_id = $1`, bookID).Scan(
		&attempts, &selected, &prov.Placeholder, &prov.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("cover provenance")
	}
	if err != nil {
		return nil, errors.StorageError("failed to get provenance", err)
	}

	_ = json.Unmarshal(attempts, &prov.Attempts)
	if selected.Valid {
		var details models.ImageDetails
		if json.Unmarshal([]byte(selected.String), &details) == nil {
			prov.Selected = &details
		}
	}
	if completedAt.Valid {
		prov.CompletedAt = completedAt.Time
	}
	return prov, nil
}

var _ storage.Storage = (*Adapter)(nil)
