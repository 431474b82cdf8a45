package image

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/nano-editor/internal/model"
)

var ErrImageNotFound = errors.New("image not found")

// Repository keeps StoredImage records in the images table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveImage inserts an image record. A nil ID is generated by the database.
func (r *Repository) SaveImage(ctx context.Context, img model.StoredImage) (model.StoredImage, error) {
	query := `
		INSERT INTO images (id, url, name, kind, owner)
		VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5)
		RETURNING id, created_at
	`

	var id any
	if img.ID != uuid.Nil {
		id = img.ID
	}

	err := r.db.QueryRowContext(
		ctx, query, id, img.URL, img.Name, img.Kind, img.Owner,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("save: failed to save image: %w", err)
	}

	return img, nil
}

// GetImage retrieves an image record by ID.
func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (model.StoredImage, error) {
	query := `
		SELECT url, name, kind, owner, created_at
		FROM images
		WHERE id = $1
	`

	img := model.StoredImage{ID: id}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&img.URL, &img.Name, &img.Kind, &img.Owner, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StoredImage{}, ErrImageNotFound
		}

		return model.StoredImage{}, fmt.Errorf("get: failed to get image: %w", err)
	}

	return img, nil
}

// ListImages returns the images of owner, newest first.
func (r *Repository) ListImages(ctx context.Context, owner string, limit int) ([]model.StoredImage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, url, name, kind, owner, created_at
		FROM images
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Master.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list: failed to query images: %w", err)
	}
	defer rows.Close()

	var images []model.StoredImage
	for rows.Next() {
		var img model.StoredImage
		if err := rows.Scan(&img.ID, &img.URL, &img.Name, &img.Kind, &img.Owner, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("list: failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: failed to read images: %w", err)
	}

	return images, nil
}

// DeleteImage deletes an image record by ID.
func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM images WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete image: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrImageNotFound
	}

	return nil
}
