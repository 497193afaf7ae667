// Package domain defines the persistence models of the help-paw platform:
// users, shelters and their directory (pets, tasks, vacancies), content
// (news, help articles, FAQ, gallery images), chats and donations. These
// types are mapped with GORM and shared by the repository and service layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a platform account.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email / Username: unique login identifiers.
//   - PasswordHash: bcrypt hash, never serialized.
//   - Role: see Role; changes to shelter_owner only through shelter registration.
//   - IsActive: false until the emailed activation token is confirmed.
//   - DonationsSum: running total of the user's successful donations.
type User struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	Email        string          `json:"email"         gorm:"type:varchar(254);not null;uniqueIndex"`
	Username     string          `json:"username"      gorm:"type:varchar(150);not null;uniqueIndex"`
	PasswordHash string          `json:"-"             gorm:"type:varchar(100);not null"`
	Role         Role            `json:"role"          gorm:"type:varchar(16);not null;default:'user'"`
	IsActive     bool            `json:"is_active"     gorm:"not null"`
	DonationsSum decimal.Decimal `json:"donations_sum" gorm:"type:numeric(12,2);not null;default:0"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// AnimalType is a tag describing which animals a shelter takes care of.
type AnimalType struct {
	Slug string `json:"slug" gorm:"type:varchar(50);primaryKey"`
	Name string `json:"name" gorm:"type:varchar(50);not null;uniqueIndex"`
}

func (AnimalType) TableName() string { return "animal_types" }

// Shelter is an animal shelter owned by exactly one user. The unique index on
// OwnerID makes "one shelter per owner" hold under concurrent registration.
type Shelter struct {
	ID              string       `json:"id"                gorm:"type:char(36);primaryKey"`
	OwnerID         string       `json:"owner_id"          gorm:"type:char(36);not null;uniqueIndex"`
	IsApproved      bool         `json:"-"                 gorm:"not null;index"`
	LegalOwnerName  string       `json:"legal_owner_name"  gorm:"type:varchar(60);not null"`
	TIN             string       `json:"tin"               gorm:"column:tin;type:varchar(10);not null;uniqueIndex"`
	Name            string       `json:"name"              gorm:"type:varchar(60);not null;uniqueIndex"`
	Description     string       `json:"description"       gorm:"type:text"`
	AnimalTypes     []AnimalType `json:"animal_types"      gorm:"many2many:shelter_animal_types;constraint:OnDelete:CASCADE"`
	LogoURL         string       `json:"logo"              gorm:"type:varchar(512)"`
	ProfileImageURL string       `json:"profile_image"     gorm:"type:varchar(512)"`
	Address         string       `json:"address"           gorm:"type:varchar(255);not null"`
	Longitude       *float64     `json:"longitude"`
	Latitude        *float64     `json:"latitude"`
	PhoneNumber     string       `json:"phone_number"      gorm:"type:varchar(12);not null"`
	WorkingFromHour int          `json:"working_from_hour" gorm:"not null"`
	WorkingToHour   int          `json:"working_to_hour"   gorm:"not null"`
	Email           string       `json:"email"             gorm:"type:varchar(254);not null;uniqueIndex"`
	WebSite         string       `json:"web_site"          gorm:"type:varchar(255)"`
	VKPage          string       `json:"vk_page"           gorm:"column:vk_page;type:varchar(255)"`
	OKPage          string       `json:"ok_page"           gorm:"column:ok_page;type:varchar(255)"`
	Telegram        string       `json:"telegram"          gorm:"type:varchar(255)"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	Owner *User `json:"-" gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Shelter) TableName() string { return "shelters" }

// OwnedBy returns the owning user id (used by ownership rules).
func (s Shelter) OwnedBy() string { return s.OwnerID }

// Subscription marks a shelter as a user's favourite.
type Subscription struct {
	UserID    string    `gorm:"type:char(36);primaryKey"`
	ShelterID string    `gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User    *User    `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Shelter *Shelter `gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Pet sexes.
const (
	SexMale   = "male"
	SexFemale = "female"
	SexOther  = "other"
)

// Pet is an animal kept by a shelter. IsAdopted changes only through the
// adoption toggle.
type Pet struct {
	ID            string     `json:"id"             gorm:"type:char(36);primaryKey"`
	ShelterID     string     `json:"shelter_id"     gorm:"type:char(36);not null;index:idx_shelter_pets,priority:1"`
	Name          string     `json:"name"           gorm:"type:varchar(30);not null"`
	AnimalType    string     `json:"animal_type"    gorm:"type:varchar(50);not null"`
	Sex           string     `json:"sex"            gorm:"type:varchar(6);not null;check:sex IN ('male','female','other')"`
	BirthDate     *time.Time `json:"birth_date"`
	About         string     `json:"about"          gorm:"type:text"`
	Breed         string     `json:"breed"          gorm:"type:varchar(50)"`
	AdmissionDate *time.Time `json:"admission_date"`
	PhotoURL      string     `json:"photo"          gorm:"type:varchar(512)"`
	IsAdopted     bool       `json:"is_adopted"     gorm:"not null;index:idx_shelter_pets,priority:2"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Shelter *Shelter `json:"-" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Pet) TableName() string { return "pets" }

// Task is a shelter's request for help. Active tasks (not finished) drive the
// urgency classification.
type Task struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ShelterID   string    `json:"shelter_id"   gorm:"type:char(36);not null;index"`
	Name        string    `json:"name"         gorm:"type:varchar(50);not null"`
	Description string    `json:"description"  gorm:"type:text"`
	IsEmergency bool      `json:"is_emergency" gorm:"not null"`
	IsFinished  bool      `json:"is_finished"  gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Shelter *Shelter `json:"-" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Task) TableName() string { return "tasks" }

// Vacancy is a job opening. A nil ShelterID marks a platform vacancy.
type Vacancy struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ShelterID   *string   `json:"shelter_id"  gorm:"type:char(36);index"`
	Position    string    `json:"position"    gorm:"type:varchar(50);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Salary      int       `json:"salary"`
	IsNDFL      bool      `json:"is_ndfl"     gorm:"column:is_ndfl;not null"`
	Education   string    `json:"education"   gorm:"type:varchar(50)"`
	Schedule    string    `json:"schedule"    gorm:"type:varchar(50)"`
	IsClosed    bool      `json:"is_closed"   gorm:"not null;index"`
	PubDate     time.Time `json:"pub_date"    gorm:"autoCreateTime"`

	Shelter *Shelter `json:"-" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Vacancy) TableName() string { return "vacancies" }
