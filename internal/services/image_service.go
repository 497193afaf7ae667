package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/storage"
)

// CanUploadImages admits staff and shelter owners.
var CanUploadImages = access.AnyOf(access.StaffOnly, access.IsShelterOwner)

// ImageService stores gallery uploads.
type ImageService struct {
	DB    *gorm.DB
	Store storage.Store
}

// Upload stores one image read from r and records it. Bodies above
// domain.MaxImageBytes and non-image content are rejected before anything
// is written.
func (s *ImageService) Upload(ctx context.Context, a *access.Actor, filename string, r io.Reader) (*domain.Image, error) {
	ctx, span := otel.Tracer("services/ImageService").Start(ctx, "Upload")
	defer span.End()

	if err := access.Check(CanUploadImages, a, access.Create); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(r, domain.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(body) > domain.MaxImageBytes {
		return nil, invalidField("file", fmt.Sprintf("image must not exceed %d MiB", domain.MaxImageBytes>>20))
	}
	if len(body) == 0 {
		return nil, invalidField("file", "empty file")
	}
	ct := http.DetectContentType(body)
	if !strings.HasPrefix(ct, "image/") {
		return nil, invalidField("file", "not an image")
	}

	key := "gallery/" + uuid.NewString() + extension(filename, ct)
	span.SetAttributes(attribute.String("image.key", key), attribute.Int("image.size", len(body)))
	url, err := s.Store.Put(ctx, key, ct, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	img := &domain.Image{Key: key, URL: url, Size: int64(len(body)), ContentType: ct}
	if err := repo.CreateImage(ctx, s.DB, img); err != nil {
		if derr := s.Store.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("key", key).Msg("orphan blob left after failed insert")
		}
		return nil, err
	}
	return img, nil
}

// extension keeps a known image extension from filename, or derives one
// from the detected content type.
func extension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
