package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// Join tables holding gallery references, one per article kind.
const (
	NewsImagesTable        = "news_images"
	HelpArticleImagesTable = "help_article_images"
)

// NewsScope narrows news listings.
type NewsScope struct {
	OnMainOnly bool
	ShelterID  string
}

// CreateNews inserts n and links its gallery. Gallery images must already
// exist; they are referenced, never upserted.
func CreateNews(ctx context.Context, db *gorm.DB, n *domain.News) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Omit("Gallery.*", "Shelter").Create(n).Error
}

func GetNews(ctx context.Context, db *gorm.DB, id string) (*domain.News, error) {
	var n domain.News
	if err := db.WithContext(ctx).Preload("Gallery").Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func ListNews(ctx context.Context, db *gorm.DB, scope NewsScope, offset, limit int) ([]domain.News, int64, error) {
	q := db.WithContext(ctx).Model(&domain.News{})
	if scope.OnMainOnly {
		q = q.Where("on_main = ?", true)
	}
	if scope.ShelterID != "" {
		q = q.Where("shelter_id = ?", scope.ShelterID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.News
	err := q.Preload("Gallery").Order("pub_date desc, id").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// UpdateNewsText saves header and text only.
func UpdateNewsText(ctx context.Context, db *gorm.DB, id, header, text string) error {
	return updateArticleText(ctx, db, &domain.News{}, id, header, text)
}

func CreateHelpArticle(ctx context.Context, db *gorm.DB, a *domain.HelpArticle) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Omit("Gallery.*").Create(a).Error
}

func GetHelpArticle(ctx context.Context, db *gorm.DB, id string) (*domain.HelpArticle, error) {
	var a domain.HelpArticle
	if err := db.WithContext(ctx).Preload("Gallery").Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListHelpArticles returns all articles, newest first. The set is small and
// searched in memory.
func ListHelpArticles(ctx context.Context, db *gorm.DB) ([]domain.HelpArticle, error) {
	var out []domain.HelpArticle
	err := db.WithContext(ctx).Preload("Gallery").Order("pub_date desc, id").Find(&out).Error
	return out, err
}

func UpdateHelpArticleText(ctx context.Context, db *gorm.DB, id, header, text string) error {
	return updateArticleText(ctx, db, &domain.HelpArticle{}, id, header, text)
}

func updateArticleText(ctx context.Context, db *gorm.DB, model any, id, header, text string) error {
	res := db.WithContext(ctx).Model(model).Where("id = ?", id).
		Updates(map[string]any{"header": header, "text": text})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceGallery swaps the gallery of owner (a *domain.News or
// *domain.HelpArticle with its ID set) for images.
func ReplaceGallery(ctx context.Context, db *gorm.DB, owner any, images []domain.Image) error {
	a := db.WithContext(ctx).Model(owner).Association("Gallery")
	if len(images) == 0 {
		return a.Clear()
	}
	return a.Replace(images)
}

// DeleteArticle removes owner (with its ID set) and its join rows.
func DeleteArticle(ctx context.Context, db *gorm.DB, owner any) error {
	if err := db.WithContext(ctx).Model(owner).Association("Gallery").Clear(); err != nil {
		return err
	}
	res := db.WithContext(ctx).Delete(owner)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- images ---

func CreateImage(ctx context.Context, db *gorm.DB, img *domain.Image) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(img).Error
}

// ImagesByIDs loads the requested images, preserving the order of ids.
// Missing ids are silently dropped; callers compare lengths.
func ImagesByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Image, error) {
	if len(ids) == 0 {
		return []domain.Image{}, nil
	}
	var found []domain.Image
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Image, len(found))
	for _, img := range found {
		byID[img.ID] = img
	}
	out := make([]domain.Image, 0, len(found))
	for _, id := range ids {
		if img, ok := byID[id]; ok {
			out = append(out, img)
			delete(byID, id)
		}
	}
	return out, nil
}

// ImageRefCounts counts references to each of imageIDs in joinTable.
// Images without references are absent from the map.
func ImageRefCounts(ctx context.Context, db *gorm.DB, joinTable string, imageIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(imageIDs))
	if len(imageIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ImageID string
		N       int64
	}
	err := db.WithContext(ctx).
		Table(joinTable).
		Select("image_id, COUNT(*) AS n").
		Where("image_id IN ?", imageIDs).
		Group("image_id").
		Scan(&rows).Error
	for _, r := range rows {
		out[r.ImageID] = r.N
	}
	return out, err
}

func DeleteImages(ctx context.Context, db *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Image{}).Error
}

// --- faq ---

func CreateFAQ(ctx context.Context, db *gorm.DB, f *domain.FAQ) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(f).Error
}

func GetFAQ(ctx context.Context, db *gorm.DB, id string) (*domain.FAQ, error) {
	var f domain.FAQ
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func ListFAQ(ctx context.Context, db *gorm.DB) ([]domain.FAQ, error) {
	var out []domain.FAQ
	err := db.WithContext(ctx).Order("sort_order asc, created_at asc").Find(&out).Error
	return out, err
}

func SaveFAQ(ctx context.Context, db *gorm.DB, f *domain.FAQ) error {
	f.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Omit("CreatedAt").Save(f).Error
}

func DeleteFAQ(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.FAQ{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
