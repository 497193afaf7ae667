package domain

import "time"

// MaxMessageRunes caps the length of a chat message.
const MaxMessageRunes = 200

// Chat is a conversation between one user and one shelter. The pair
// (ShelterID, UserID) is unique.
type Chat struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ShelterID string    `json:"shelter_id" gorm:"type:char(36);not null;uniqueIndex:ux_chat_shelter_user,priority:1"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:ux_chat_shelter_user,priority:2;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Shelter *Shelter `json:"shelter,omitempty" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
	User    *User    `json:"-"                 gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Chat) TableName() string { return "chats" }

// Message is a single chat message. Messages are listed newest first.
//
// Fields:
//   - AuthorID: the user who wrote it; only the author may edit or delete.
//   - IsReaded: set when the other participant marks the chat as read.
//   - IsEdited: set on the first edit.
type Message struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	AuthorID  string    `json:"author_id" gorm:"type:char(36);not null;index"`
	Text      string    `json:"text"      gorm:"type:varchar(200);not null"`
	PubDate   time.Time `json:"pub_date"  gorm:"not null;index:idx_chat_msgs,priority:2"`
	IsReaded  bool      `json:"is_readed" gorm:"not null"`
	IsEdited  bool      `json:"is_edited" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`

	Chat   *Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Author *User `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string { return "messages" }

// AuthoredBy returns the author id (used by authorship rules).
func (m Message) AuthoredBy() string { return m.AuthorID }
