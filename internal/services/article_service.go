package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/storage"
)

// ArticleInput is the writable field set shared by news and help articles.
// A nil Gallery leaves the gallery untouched on update.
type ArticleInput struct {
	Header  string   `json:"header"`
	Text    string   `json:"text"`
	Gallery []string `json:"gallery"`
}

// ArticleKind adapts one article model to the generic article service.
type ArticleKind[A any] interface {
	Resource() string
	JoinTable() string
	Gallery(a *A) []domain.Image
	Build(in ArticleInput, gallery []domain.Image) *A
	ValidateHeader(f fieldErrors, header string)

	Get(ctx context.Context, db *gorm.DB, id string) (*A, error)
	Create(ctx context.Context, db *gorm.DB, a *A) error
	UpdateText(ctx context.Context, db *gorm.DB, a *A, header, text string) error
	ReplaceGallery(ctx context.Context, db *gorm.DB, a *A, images []domain.Image) error
	ClearGallery(ctx context.Context, db *gorm.DB, a *A) error
	Delete(ctx context.Context, db *gorm.DB, a *A) error
}

// ArticleService implements create, update and delete for any ArticleKind
// and collects gallery images nothing else references.
type ArticleService[A any] struct {
	DB    *gorm.DB
	Store storage.Store
	Kind  ArticleKind[A]
}

// guard vetoes access to an existing article.
type guard[A any] func(*A) error

func (s *ArticleService[A]) Get(ctx context.Context, id string) (*A, error) {
	a, err := s.Kind.Get(ctx, s.DB, id)
	return a, missing(err, s.Kind.Resource())
}

// Create validates in, resolves its gallery and stores the article. prepare
// sets kind-specific fields such as the owning shelter.
func (s *ArticleService[A]) Create(ctx context.Context, in ArticleInput, prepare func(*A)) (*A, error) {
	ctx, span := otel.Tracer("services/ArticleService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("article.kind", s.Kind.Resource())))
	defer span.End()

	images, err := s.prepare(ctx, &in)
	if err != nil {
		return nil, err
	}
	a := s.Kind.Build(in, images)
	if prepare != nil {
		prepare(a)
	}
	if err := s.Kind.Create(ctx, s.DB, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update rewrites header and text, and replaces the gallery when
// in.Gallery is set.
func (s *ArticleService[A]) Update(ctx context.Context, id string, in ArticleInput, check guard[A]) (*A, error) {
	ctx, span := otel.Tracer("services/ArticleService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("article.kind", s.Kind.Resource()), attribute.String("article.id", id)))
	defer span.End()

	images, err := s.prepare(ctx, &in)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id, check)
	if err != nil {
		return nil, err
	}

	var orphans []domain.Image
	if in.Gallery != nil {
		if orphans, err = s.orphans(ctx, s.Kind.Gallery(a), images); err != nil {
			return nil, err
		}
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Kind.UpdateText(ctx, tx, a, in.Header, in.Text); err != nil {
			return err
		}
		if in.Gallery == nil {
			return nil
		}
		if err := s.Kind.ReplaceGallery(ctx, tx, a, images); err != nil {
			return err
		}
		return repo.DeleteImages(ctx, tx, imageIDs(orphans))
	})
	if err != nil {
		return nil, missing(err, s.Kind.Resource())
	}
	s.dropBlobs(ctx, orphans)
	return s.Get(ctx, id)
}

// Delete removes the article and every gallery image only it referenced.
func (s *ArticleService[A]) Delete(ctx context.Context, id string, check guard[A]) error {
	a, err := s.load(ctx, id, check)
	if err != nil {
		return err
	}
	orphans, err := s.orphans(ctx, s.Kind.Gallery(a), nil)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Kind.ClearGallery(ctx, tx, a); err != nil {
			return err
		}
		if err := s.Kind.Delete(ctx, tx, a); err != nil {
			return err
		}
		return repo.DeleteImages(ctx, tx, imageIDs(orphans))
	})
	if err != nil {
		return missing(err, s.Kind.Resource())
	}
	s.dropBlobs(ctx, orphans)
	return nil
}

func (s *ArticleService[A]) load(ctx context.Context, id string, check guard[A]) (*A, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// prepare validates in and loads the referenced gallery images. Limits are
// checked before anything is written.
func (s *ArticleService[A]) prepare(ctx context.Context, in *ArticleInput) ([]domain.Image, error) {
	in.Header = strings.TrimSpace(in.Header)
	in.Text = strings.TrimSpace(in.Text)
	f := fieldErrors{}
	if required(f, "header", in.Header) {
		maxRunes(f, "header", in.Header, 100)
		s.Kind.ValidateHeader(f, in.Header)
	}
	required(f, "text", in.Text)
	if len(in.Gallery) > domain.MaxGalleryImages {
		f.add("gallery", fmt.Sprintf("at most %d images allowed", domain.MaxGalleryImages))
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	ids := dedupe(in.Gallery)
	images, err := repo.ImagesByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	if len(images) != len(ids) {
		return nil, invalidField("gallery", "unknown image")
	}
	return images, nil
}

// orphans returns the images of old that are absent from keep and
// referenced by this article alone. Counts come from this kind's join table
// only, so an image also attached to the other article kind is collected.
func (s *ArticleService[A]) orphans(ctx context.Context, old, keep []domain.Image) ([]domain.Image, error) {
	kept := make(map[string]bool, len(keep))
	for _, img := range keep {
		kept[img.ID] = true
	}
	var dropped []domain.Image
	for _, img := range old {
		if !kept[img.ID] {
			dropped = append(dropped, img)
		}
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	counts, err := repo.ImageRefCounts(ctx, s.DB, s.Kind.JoinTable(), imageIDs(dropped))
	if err != nil {
		return nil, err
	}
	out := dropped[:0]
	for _, img := range dropped {
		if counts[img.ID] == 1 {
			out = append(out, img)
		}
	}
	return out, nil
}

// dropBlobs deletes stored files after the rows are gone. Failures leave
// an unreferenced blob and are only logged.
func (s *ArticleService[A]) dropBlobs(ctx context.Context, images []domain.Image) {
	if s.Store == nil {
		return
	}
	for _, img := range images {
		if err := s.Store.Delete(ctx, img.Key); err != nil {
			log.Warn().Err(err).Str("image_id", img.ID).Str("key", img.Key).Msg("blob delete failed")
		}
	}
}

func imageIDs(images []domain.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.ID
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// newsKind stores news.
type newsKind struct{}

func (newsKind) Resource() string                      { return "news" }
func (newsKind) JoinTable() string                     { return repo.NewsImagesTable }
func (newsKind) Gallery(n *domain.News) []domain.Image { return n.Gallery }

func (newsKind) Build(in ArticleInput, gallery []domain.Image) *domain.News {
	return &domain.News{Header: in.Header, Text: in.Text, Gallery: gallery}
}

func (newsKind) ValidateHeader(fieldErrors, string) {}

func (newsKind) Get(ctx context.Context, db *gorm.DB, id string) (*domain.News, error) {
	return repo.GetNews(ctx, db, id)
}

func (newsKind) Create(ctx context.Context, db *gorm.DB, n *domain.News) error {
	return repo.CreateNews(ctx, db, n)
}

func (newsKind) UpdateText(ctx context.Context, db *gorm.DB, n *domain.News, header, text string) error {
	return repo.UpdateNewsText(ctx, db, n.ID, header, text)
}

func (newsKind) ReplaceGallery(ctx context.Context, db *gorm.DB, n *domain.News, images []domain.Image) error {
	return repo.ReplaceGallery(ctx, db, n, images)
}

func (newsKind) ClearGallery(ctx context.Context, db *gorm.DB, n *domain.News) error {
	return repo.ReplaceGallery(ctx, db, n, nil)
}

func (newsKind) Delete(ctx context.Context, db *gorm.DB, n *domain.News) error {
	return repo.DeleteArticle(ctx, db, n)
}

// helpArticleKind stores help articles. Headers may not be purely numeric.
type helpArticleKind struct{}

func (helpArticleKind) Resource() string                             { return "help article" }
func (helpArticleKind) JoinTable() string                            { return repo.HelpArticleImagesTable }
func (helpArticleKind) Gallery(a *domain.HelpArticle) []domain.Image { return a.Gallery }

func (helpArticleKind) Build(in ArticleInput, gallery []domain.Image) *domain.HelpArticle {
	return &domain.HelpArticle{Header: in.Header, Text: in.Text, Gallery: gallery}
}

func (helpArticleKind) ValidateHeader(f fieldErrors, header string) {
	if numericRE.MatchString(header) {
		f.add("header", "must not consist of digits only")
	}
}

func (helpArticleKind) Get(ctx context.Context, db *gorm.DB, id string) (*domain.HelpArticle, error) {
	return repo.GetHelpArticle(ctx, db, id)
}

func (helpArticleKind) Create(ctx context.Context, db *gorm.DB, a *domain.HelpArticle) error {
	return repo.CreateHelpArticle(ctx, db, a)
}

func (helpArticleKind) UpdateText(ctx context.Context, db *gorm.DB, a *domain.HelpArticle, header, text string) error {
	return repo.UpdateHelpArticleText(ctx, db, a.ID, header, text)
}

func (helpArticleKind) ReplaceGallery(ctx context.Context, db *gorm.DB, a *domain.HelpArticle, images []domain.Image) error {
	return repo.ReplaceGallery(ctx, db, a, images)
}

func (helpArticleKind) ClearGallery(ctx context.Context, db *gorm.DB, a *domain.HelpArticle) error {
	return repo.ReplaceGallery(ctx, db, a, nil)
}

func (helpArticleKind) Delete(ctx context.Context, db *gorm.DB, a *domain.HelpArticle) error {
	return repo.DeleteArticle(ctx, db, a)
}
