package domain

import "time"

// Gallery limits for articles.
const (
	MaxGalleryImages = 5
	MaxImageBytes    = 5 << 20
)

// Image is a stored gallery picture. Articles reference images through
// per-kind join tables (news_images, help_article_images).
type Image struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Key         string    `json:"-"            gorm:"type:varchar(255);not null;uniqueIndex"`
	URL         string    `json:"url"          gorm:"type:varchar(512);not null"`
	Size        int64     `json:"size"         gorm:"not null"`
	ContentType string    `json:"content_type" gorm:"type:varchar(100)"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Image) TableName() string { return "images" }

// News is a news article. News with a nil ShelterID is platform news.
type News struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ShelterID *string   `json:"shelter_id" gorm:"type:char(36);index"`
	Header    string    `json:"header"     gorm:"type:varchar(100);not null"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	OnMain    bool      `json:"on_main"    gorm:"not null;index"`
	PubDate   time.Time `json:"pub_date"   gorm:"autoCreateTime;index"`
	Gallery   []Image   `json:"gallery"    gorm:"many2many:news_images;constraint:OnDelete:CASCADE"`

	Shelter *Shelter `json:"-" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
}

func (News) TableName() string { return "news" }

// HelpArticle is a how-to article. Its header must not be purely numeric.
type HelpArticle struct {
	ID      string    `json:"id"       gorm:"type:char(36);primaryKey"`
	Header  string    `json:"header"   gorm:"type:varchar(100);not null"`
	Text    string    `json:"text"     gorm:"type:text;not null"`
	PubDate time.Time `json:"pub_date" gorm:"autoCreateTime;index"`
	Gallery []Image   `json:"gallery"  gorm:"many2many:help_article_images;constraint:OnDelete:CASCADE"`
}

func (HelpArticle) TableName() string { return "help_articles" }

// FAQ is a frequently asked question with its answer.
type FAQ struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Question  string    `json:"question"   gorm:"type:varchar(255);not null"`
	Answer    string    `json:"answer"     gorm:"type:text;not null"`
	SortOrder int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FAQ) TableName() string { return "faqs" }
