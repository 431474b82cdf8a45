package editor

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/model"
	imagerepo "github.com/aliskhannn/nano-editor/internal/repository/image"
)

// ListImages returns the images recorded for owner. Without a repository the list is empty.
func (s *Service) ListImages(ctx context.Context, owner string, limit int) ([]model.StoredImage, error) {
	if s.images == nil {
		return []model.StoredImage{}, nil
	}
	return s.images.ListImages(ctx, owner, limit)
}

// Image returns one recorded image of owner. Images of other owners are
// reported as image.ErrImageNotFound.
func (s *Service) Image(ctx context.Context, owner string, id uuid.UUID) (model.StoredImage, error) {
	if s.images == nil {
		return model.StoredImage{}, imagerepo.ErrImageNotFound
	}

	img, err := s.images.GetImage(ctx, id)
	if err != nil {
		return model.StoredImage{}, err
	}
	if img.Owner != owner {
		return model.StoredImage{}, imagerepo.ErrImageNotFound
	}

	return img, nil
}

// DeleteImage removes the stored object of an image and then its record.
// The record stays when the object cannot be removed so the call can be repeated.
func (s *Service) DeleteImage(ctx context.Context, owner string, id uuid.UUID) error {
	img, err := s.Image(ctx, owner, id)
	if err != nil {
		return err
	}

	if s.storage != nil {
		if err := s.storage.Delete(ctx, imageObject(img)); err != nil {
			return fmt.Errorf("delete image object: %w", err)
		}
	}

	if err := s.images.DeleteImage(ctx, id); err != nil {
		return err
	}

	zlog.Logger.Info().
		Str("image_id", id.String()).
		Str("owner", owner).
		Msg("image deleted")

	return nil
}

// imageObject is the object name storeImage uploaded img under.
func imageObject(img model.StoredImage) string {
	ext := ""
	if u, err := url.Parse(img.URL); err == nil {
		ext = path.Ext(u.Path)
	}
	return path.Join(img.Kind, img.ID.String()+ext)
}
