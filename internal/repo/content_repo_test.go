package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

func TestNewsGallery_RefCounts(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	var imgs []domain.Image
	for _, key := range []string{"a.png", "b.png", "c.png"} {
		img := &domain.Image{Key: key, URL: "https://cdn.test/" + key, Size: 10}
		if err := CreateImage(ctx, db, img); err != nil {
			t.Fatalf("CreateImage: %v", err)
		}
		imgs = append(imgs, *img)
	}

	n1 := &domain.News{Header: "one", Text: "t", OnMain: true, Gallery: imgs[:2]}
	n2 := &domain.News{Header: "two", Text: "t", Gallery: imgs[1:2]}
	for _, n := range []*domain.News{n1, n2} {
		if err := CreateNews(ctx, db, n); err != nil {
			t.Fatalf("CreateNews: %v", err)
		}
	}

	counts, err := ImageRefCounts(ctx, db, NewsImagesTable, []string{imgs[0].ID, imgs[1].ID, imgs[2].ID})
	if err != nil {
		t.Fatalf("ImageRefCounts: %v", err)
	}
	if counts[imgs[0].ID] != 1 || counts[imgs[1].ID] != 2 || counts[imgs[2].ID] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := ReplaceGallery(ctx, db, &domain.News{ID: n1.ID}, imgs[2:]); err != nil {
		t.Fatalf("ReplaceGallery: %v", err)
	}
	got, err := GetNews(ctx, db, n1.ID)
	if err != nil || len(got.Gallery) != 1 || got.Gallery[0].ID != imgs[2].ID {
		t.Fatalf("gallery not replaced: %+v %v", got, err)
	}

	if err := DeleteArticle(ctx, db, &domain.News{ID: n2.ID}); err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	counts, _ = ImageRefCounts(ctx, db, NewsImagesTable, []string{imgs[1].ID})
	if counts[imgs[1].ID] != 0 {
		t.Fatalf("join rows should be gone: %v", counts)
	}
	if err := DeleteArticle(ctx, db, &domain.News{ID: n2.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	items, total, err := ListNews(ctx, db, NewsScope{OnMainOnly: true}, 0, 10)
	if err != nil || total != 1 || items[0].ID != n1.ID {
		t.Fatalf("ListNews = %v %d %v", items, total, err)
	}
}

func TestImagesByIDs_PreservesOrder(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	a := &domain.Image{Key: "a", URL: "u/a"}
	b := &domain.Image{Key: "b", URL: "u/b"}
	_ = CreateImage(ctx, db, a)
	_ = CreateImage(ctx, db, b)

	got, err := ImagesByIDs(ctx, db, []string{b.ID, "missing", a.ID, b.ID})
	if err != nil {
		t.Fatalf("ImagesByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("unexpected order: %+v", got)
	}

	if err := DeleteImages(ctx, db, []string{a.ID}); err != nil {
		t.Fatalf("DeleteImages: %v", err)
	}
	got, _ = ImagesByIDs(ctx, db, []string{a.ID})
	if len(got) != 0 {
		t.Fatalf("image should be deleted")
	}
}

func TestHelpArticlesAndFAQ(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	a := &domain.HelpArticle{Header: "How to help", Text: "donate"}
	if err := CreateHelpArticle(ctx, db, a); err != nil {
		t.Fatalf("CreateHelpArticle: %v", err)
	}
	if err := UpdateHelpArticleText(ctx, db, a.ID, "Help", "volunteer"); err != nil {
		t.Fatalf("UpdateHelpArticleText: %v", err)
	}
	got, _ := GetHelpArticle(ctx, db, a.ID)
	if got.Header != "Help" || got.Text != "volunteer" {
		t.Fatalf("unexpected article: %+v", got)
	}
	if err := UpdateHelpArticleText(ctx, db, "missing", "h", "t"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	second := &domain.FAQ{Question: "q2", Answer: "a2", SortOrder: 2}
	first := &domain.FAQ{Question: "q1", Answer: "a1", SortOrder: 1}
	_ = CreateFAQ(ctx, db, second)
	_ = CreateFAQ(ctx, db, first)
	list, err := ListFAQ(ctx, db)
	if err != nil || len(list) != 2 || list[0].ID != first.ID {
		t.Fatalf("ListFAQ = %+v %v", list, err)
	}
	first.Answer = "changed"
	if err := SaveFAQ(ctx, db, first); err != nil {
		t.Fatalf("SaveFAQ: %v", err)
	}
	if err := DeleteFAQ(ctx, db, second.ID); err != nil {
		t.Fatalf("DeleteFAQ: %v", err)
	}
	if err := DeleteFAQ(ctx, db, second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteFAQ: %v", err)
	}
}
