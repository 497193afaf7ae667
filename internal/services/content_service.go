package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/search"
	"github.com/Lapkipomoshi/help-paw-backend/internal/storage"
)

// DefaultSearchTTL bounds how long a search index is reused between writes.
const DefaultSearchTTL = 5 * time.Minute

// searchStopwords are dropped from FAQ and help article search.
var searchStopwords = []string{
	"и", "в", "во", "на", "с", "со", "к", "по", "о", "об", "от", "до", "за", "из",
	"у", "не", "ли", "а", "но", "или", "как", "что", "это", "для", "я", "мы", "вы",
}

// NewsService publishes platform and shelter news.
type NewsService struct {
	ArticleService[domain.News]
}

func NewNewsService(db *gorm.DB, store storage.Store) *NewsService {
	return &NewsService{ArticleService[domain.News]{DB: db, Store: store, Kind: newsKind{}}}
}

// ListMain returns news flagged for the main page, newest first.
func (s *NewsService) ListMain(ctx context.Context, p PageRequest) (*Page[domain.News], error) {
	return s.list(ctx, repo.NewsScope{OnMainOnly: true}, p)
}

// ListForShelter returns the news of an approved shelter.
func (s *NewsService) ListForShelter(ctx context.Context, shelterID string, p PageRequest) (*Page[domain.News], error) {
	if _, err := approvedShelter(ctx, s.DB, shelterID); err != nil {
		return nil, err
	}
	return s.list(ctx, repo.NewsScope{ShelterID: shelterID}, p)
}

func (s *NewsService) ListOwn(ctx context.Context, a *access.Actor, p PageRequest) (*Page[domain.News], error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repo.NewsScope{ShelterID: sh.ID}, p)
}

// CreatePlatform publishes staff news; it always goes to the main page.
func (s *NewsService) CreatePlatform(ctx context.Context, a *access.Actor, in ArticleInput) (*domain.News, error) {
	if err := access.Check(access.StaffOnly, a, access.Create); err != nil {
		return nil, err
	}
	return s.Create(ctx, in, func(n *domain.News) {
		n.OnMain = true
		n.ShelterID = nil
	})
}

// UpdateStaff edits any news item. Staff only.
func (s *NewsService) UpdateStaff(ctx context.Context, a *access.Actor, id string, in ArticleInput) (*domain.News, error) {
	if err := access.Check(access.StaffOnly, a, access.Update); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, in, nil)
}

// DeleteStaff removes any news item. Staff only.
func (s *NewsService) DeleteStaff(ctx context.Context, a *access.Actor, id string) error {
	if err := access.Check(access.StaffOnly, a, access.Delete); err != nil {
		return err
	}
	return s.Delete(ctx, id, nil)
}

// CreateOwn publishes news of the actor's shelter. Shelter news never goes
// to the main page.
func (s *NewsService) CreateOwn(ctx context.Context, a *access.Actor, in ArticleInput) (*domain.News, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, in, func(n *domain.News) {
		n.OnMain = false
		n.ShelterID = &sh.ID
	})
}

func (s *NewsService) UpdateOwn(ctx context.Context, a *access.Actor, id string, in ArticleInput) (*domain.News, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, id, in, ofShelter(sh.ID))
}

func (s *NewsService) DeleteOwn(ctx context.Context, a *access.Actor, id string) error {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return err
	}
	return s.Delete(ctx, id, ofShelter(sh.ID))
}

func (s *NewsService) list(ctx context.Context, scope repo.NewsScope, p PageRequest) (*Page[domain.News], error) {
	offset, limit := p.bounds()
	items, total, err := repo.ListNews(ctx, s.DB, scope, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, total), nil
}

// ofShelter hides news of other shelters behind a not-found.
func ofShelter(shelterID string) guard[domain.News] {
	return func(n *domain.News) error {
		if n.ShelterID == nil || *n.ShelterID != shelterID {
			return notFound("news")
		}
		return nil
	}
}

// HelpArticleService manages how-to articles and their search.
type HelpArticleService struct {
	ArticleService[domain.HelpArticle]
	index *indexCache
}

func NewHelpArticleService(db *gorm.DB, store storage.Store, ttl time.Duration) *HelpArticleService {
	return &HelpArticleService{
		ArticleService: ArticleService[domain.HelpArticle]{DB: db, Store: store, Kind: helpArticleKind{}},
		index:          &indexCache{TTL: ttl},
	}
}

// List returns all articles, or those matching query ranked by relevance.
func (s *HelpArticleService) List(ctx context.Context, query string) ([]domain.HelpArticle, error) {
	all, err := repo.ListHelpArticles(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []domain.HelpArticle{}
	}
	if strings.TrimSpace(query) == "" {
		return all, nil
	}
	idx := s.index.get(func() search.Index {
		docs := make([]search.Document, len(all))
		for i, a := range all {
			docs[i] = search.Document{ID: a.ID, Text: a.Header + "\n" + a.Text}
		}
		return search.New(docs, search.WithStopwords(searchStopwords))
	})
	return rank(all, idx.TopK(query, 0), func(a domain.HelpArticle) string { return a.ID }), nil
}

func (s *HelpArticleService) CreateStaff(ctx context.Context, a *access.Actor, in ArticleInput) (*domain.HelpArticle, error) {
	if err := access.Check(access.StaffOnly, a, access.Create); err != nil {
		return nil, err
	}
	defer s.index.invalidate()
	return s.Create(ctx, in, nil)
}

func (s *HelpArticleService) UpdateStaff(ctx context.Context, a *access.Actor, id string, in ArticleInput) (*domain.HelpArticle, error) {
	if err := access.Check(access.StaffOnly, a, access.Update); err != nil {
		return nil, err
	}
	defer s.index.invalidate()
	return s.Update(ctx, id, in, nil)
}

func (s *HelpArticleService) DeleteStaff(ctx context.Context, a *access.Actor, id string) error {
	if err := access.Check(access.StaffOnly, a, access.Delete); err != nil {
		return err
	}
	defer s.index.invalidate()
	return s.Delete(ctx, id, nil)
}

// FAQInput is the writable field set of a FAQ entry.
type FAQInput struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	SortOrder int    `json:"sort_order"`
}

func (in *FAQInput) validate() error {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	f := fieldErrors{}
	if required(f, "question", in.Question) {
		maxRunes(f, "question", in.Question, 255)
	}
	required(f, "answer", in.Answer)
	return f.err()
}

// FAQService manages the FAQ and its search.
type FAQService struct {
	DB    *gorm.DB
	index *indexCache
}

func NewFAQService(db *gorm.DB, ttl time.Duration) *FAQService {
	return &FAQService{DB: db, index: &indexCache{TTL: ttl}}
}

// List returns entries in display order, or those matching query ranked by
// relevance.
func (s *FAQService) List(ctx context.Context, query string) ([]domain.FAQ, error) {
	all, err := repo.ListFAQ(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []domain.FAQ{}
	}
	if strings.TrimSpace(query) == "" {
		return all, nil
	}
	idx := s.index.get(func() search.Index {
		docs := make([]search.Document, len(all))
		for i, f := range all {
			docs[i] = search.Document{ID: f.ID, Text: f.Question + "\n" + f.Answer}
		}
		return search.New(docs, search.WithStopwords(searchStopwords))
	})
	return rank(all, idx.TopK(query, 0), func(f domain.FAQ) string { return f.ID }), nil
}

func (s *FAQService) Get(ctx context.Context, id string) (*domain.FAQ, error) {
	f, err := repo.GetFAQ(ctx, s.DB, id)
	return f, missing(err, "faq")
}

func (s *FAQService) Create(ctx context.Context, a *access.Actor, in FAQInput) (*domain.FAQ, error) {
	if err := access.Check(access.StaffOnly, a, access.Create); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	f := &domain.FAQ{Question: in.Question, Answer: in.Answer, SortOrder: in.SortOrder}
	if err := repo.CreateFAQ(ctx, s.DB, f); err != nil {
		return nil, err
	}
	s.index.invalidate()
	return f, nil
}

func (s *FAQService) Update(ctx context.Context, a *access.Actor, id string, in FAQInput) (*domain.FAQ, error) {
	if err := access.Check(access.StaffOnly, a, access.Update); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Question, f.Answer, f.SortOrder = in.Question, in.Answer, in.SortOrder
	if err := repo.SaveFAQ(ctx, s.DB, f); err != nil {
		return nil, err
	}
	s.index.invalidate()
	return f, nil
}

func (s *FAQService) Delete(ctx context.Context, a *access.Actor, id string) error {
	if err := access.Check(access.StaffOnly, a, access.Delete); err != nil {
		return err
	}
	if err := repo.DeleteFAQ(ctx, s.DB, id); err != nil {
		return missing(err, "faq")
	}
	s.index.invalidate()
	return nil
}

// indexCache reuses a search index until TTL passes or a write invalidates
// it. A zero TTL rebuilds on every query.
type indexCache struct {
	TTL time.Duration

	mu    sync.Mutex
	idx   search.Index
	built time.Time
}

func (c *indexCache) get(build func() search.Index) search.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx != nil && c.TTL > 0 && time.Since(c.built) < c.TTL {
		return c.idx
	}
	c.idx = build()
	c.built = time.Now()
	return c.idx
}

func (c *indexCache) invalidate() {
	c.mu.Lock()
	c.idx = nil
	c.mu.Unlock()
}

// rank orders items by search results, dropping ids no longer present.
func rank[T any](items []T, results []search.Result, id func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[id(it)] = it
	}
	out := make([]T, 0, len(results))
	for _, r := range results {
		if it, ok := byID[r.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}
