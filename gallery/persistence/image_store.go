package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dfryer1193/imgcrud/gallery/domain"
	"github.com/dfryer1193/imgcrud/shared/db"
	"github.com/google/uuid"
)

var _ domain.ImageStore = (*SQLiteImageStore)(nil)

// SQLiteImageStore implements domain.ImageStore on a SQL database (SQLite).
type SQLiteImageStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteImageStore creates a SQLiteImageStore from a standard sql.DB.
// The images table must already exist.
func NewSQLiteImageStore(sqlDB *sql.DB) *SQLiteImageStore {
	return &SQLiteImageStore{
		db:  sqlDB,
		now: time.Now,
	}
}

const insertImageQuery = `
	INSERT INTO images (id, name, data, content_type, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
`

// CreateImage assigns a new id and timestamps to img and inserts it.
func (s *SQLiteImageStore) CreateImage(ctx context.Context, img *domain.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx, insertImageQuery,
		id,
		img.Name,
		img.Data,
		img.ContentType,
		now,
		now,
	)
	if err != nil {
		return domain.ErrStoreUnavailable(err, "insert image")
	}

	img.ID = id
	img.CreatedAt = now
	img.UpdatedAt = now
	return nil
}

// Insertion order breaks ties between equal timestamps.
const listImagesQuery = `
	SELECT id, name, content_type
	FROM images
	ORDER BY created_at DESC, rowid DESC
`

// ListImages returns every image newest first, without reading image bytes.
func (s *SQLiteImageStore) ListImages(ctx context.Context) ([]domain.ImageSummary, error) {
	rows, err := s.db.QueryContext(ctx, listImagesQuery)
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "list images")
	}
	defer rows.Close()

	images := []domain.ImageSummary{}
	for rows.Next() {
		var summary domain.ImageSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.ContentType); err != nil {
			return nil, domain.ErrStoreUnavailable(err, "scan image")
		}
		images = append(images, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.ErrStoreUnavailable(err, "iterate images")
	}

	return images, nil
}

const getImageQuery = `
	SELECT id, name, data, content_type, created_at, updated_at
	FROM images
	WHERE id = ?
`

// GetImage retrieves a single image by id.
func (s *SQLiteImageStore) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	return s.getImage(ctx, db.GetExecutor(ctx, s.db), id)
}

func (s *SQLiteImageStore) getImage(ctx context.Context, executor db.Executor, id string) (*domain.Image, error) {
	if id == "" {
		return nil, domain.ErrImageNotFound(id)
	}

	var row imageRow
	err := executor.QueryRowContext(ctx, getImageQuery, id).Scan(
		&row.ID,
		&row.Name,
		&row.Data,
		&row.ContentType,
		&row.CreatedAt,
		&row.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrImageNotFound(id)
	}

	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "get image")
	}

	return row.toDomain(), nil
}

const getImageMetadataQuery = `
	SELECT id, name, content_type, created_at, updated_at
	FROM images
	WHERE id = ?
`

func (s *SQLiteImageStore) getImageMetadata(ctx context.Context, executor db.Executor, id string) (*domain.Image, error) {
	var row imageRow
	err := executor.QueryRowContext(ctx, getImageMetadataQuery, id).Scan(
		&row.ID,
		&row.Name,
		&row.ContentType,
		&row.CreatedAt,
		&row.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrImageNotFound(id)
	}

	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "get image metadata")
	}

	return row.toDomain(), nil
}

const renameImageQuery = `
	UPDATE images SET name = ?, updated_at = ? WHERE id = ?
`

// RenameImage updates the name of an image and returns the stored record
// without its bytes.
func (s *SQLiteImageStore) RenameImage(ctx context.Context, id string, name string) (*domain.Image, error) {
	if name == "" {
		return nil, domain.ErrInvalidImage("Name is required")
	}

	var renamed *domain.Image
	err := db.RunInTransaction(ctx, s.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, s.db)
		res, err := executor.ExecContext(txCtx, renameImageQuery, name, s.now().UTC(), id)
		if err != nil {
			return domain.ErrStoreUnavailable(err, "rename image")
		}

		if err := requireAffected(res, id); err != nil {
			return err
		}

		renamed, err = s.getImageMetadata(txCtx, executor, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return renamed, nil
}

const deleteImageQuery = `
	DELETE FROM images WHERE id = ?
`

// DeleteImage removes an image by id.
func (s *SQLiteImageStore) DeleteImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteImageQuery, id)
	if err != nil {
		return domain.ErrStoreUnavailable(err, "delete image")
	}

	return requireAffected(res, id)
}

func (s *SQLiteImageStore) Ping(ctx context.Context) error {
	return domain.ErrStoreUnavailable(s.db.PingContext(ctx), "ping database")
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrStoreUnavailable(err, "read affected rows")
	}
	if n == 0 {
		return domain.ErrImageNotFound(id)
	}
	return nil
}

// imageRow is a private struct used to scan database rows
type imageRow struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Data        []byte       `db:"data"`
	ContentType string       `db:"content_type"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

func (r *imageRow) toDomain() *domain.Image {
	img := &domain.Image{
		ID:          r.ID,
		Name:        r.Name,
		Data:        r.Data,
		ContentType: r.ContentType,
	}

	if r.CreatedAt.Valid {
		img.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		img.UpdatedAt = r.UpdatedAt.Time
	}

	return img
}
