package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/alert"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// UserService covers registration, tokens and the account endpoints.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	Activate(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (string, error)
	Verify(token string) error
	Authenticate(ctx context.Context, token string) (*access.Actor, error)
	Me(ctx context.Context, a *access.Actor) (*domain.User, error)
	UpdateMe(ctx context.Context, a *access.Actor, username string) (*domain.User, error)
	ResetPassword(ctx context.Context, email string) error
	ResetPasswordConfirm(ctx context.Context, token, newPassword string) error
	ResetEmail(ctx context.Context, a *access.Actor, newEmail string) error
	ResetEmailConfirm(ctx context.Context, token string) (*domain.User, error)
}

// ShelterService covers shelters, favourites and animal types.
type ShelterService interface {
	Register(ctx context.Context, a *access.Actor, in services.ShelterInput) (*domain.Shelter, error)
	RemoveOwn(ctx context.Context, a *access.Actor) (services.RemovalResult, error)
	Delete(ctx context.Context, a *access.Actor, id string) error
	Approve(ctx context.Context, a *access.Actor, id string) error
	UpdateOwn(ctx context.Context, a *access.Actor, in services.ShelterInput) (*domain.Shelter, error)
	List(ctx context.Context, a *access.Actor, opts filter.ShelterOptions, p services.PageRequest) (*services.Page[services.ShelterListItem], error)
	OnMain(ctx context.Context, a *access.Actor, limit int) ([]services.ShelterListItem, error)
	Get(ctx context.Context, a *access.Actor, id string) (*services.ShelterDetail, error)
	Own(ctx context.Context, a *access.Actor) (*services.ShelterDetail, error)
	AddFavourite(ctx context.Context, a *access.Actor, id string) error
	RemoveFavourite(ctx context.Context, a *access.Actor, id string) error
	AnimalTypes(ctx context.Context) ([]domain.AnimalType, error)
	CreateAnimalType(ctx context.Context, a *access.Actor, slug, name string) (*domain.AnimalType, error)
}

// PetService covers shelter pets.
type PetService interface {
	List(ctx context.Context, opts filter.PetOptions, p services.PageRequest) (*services.Page[domain.Pet], error)
	ListForShelter(ctx context.Context, shelterID string, p services.PageRequest) (*services.Page[domain.Pet], error)
	ListOwn(ctx context.Context, a *access.Actor, p services.PageRequest) (*services.Page[domain.Pet], error)
	Get(ctx context.Context, id string) (*domain.Pet, error)
	Create(ctx context.Context, a *access.Actor, in services.PetInput) (*domain.Pet, error)
	Update(ctx context.Context, a *access.Actor, id string, in services.PetInput) (*domain.Pet, error)
	ToggleAdopted(ctx context.Context, a *access.Actor, id string) (bool, error)
	Delete(ctx context.Context, a *access.Actor, id string) error
}

// TaskService covers shelter tasks.
type TaskService interface {
	ListForShelter(ctx context.Context, shelterID string) ([]domain.Task, error)
	ListOwn(ctx context.Context, a *access.Actor) ([]domain.Task, error)
	Create(ctx context.Context, a *access.Actor, in services.TaskInput) (*domain.Task, error)
	Update(ctx context.Context, a *access.Actor, id string, in services.TaskInput) (*domain.Task, error)
	ToggleFinished(ctx context.Context, a *access.Actor, id string) (bool, error)
	Delete(ctx context.Context, a *access.Actor, id string) error
}

// VacancyService covers platform and shelter vacancies.
type VacancyService interface {
	List(ctx context.Context, p services.PageRequest) (*services.Page[domain.Vacancy], error)
	Platform(ctx context.Context, p services.PageRequest) (*services.Page[domain.Vacancy], error)
	ForShelter(ctx context.Context, shelterID string, p services.PageRequest) (*services.Page[domain.Vacancy], error)
	ListOwn(ctx context.Context, a *access.Actor, p services.PageRequest) (*services.Page[domain.Vacancy], error)
	Get(ctx context.Context, id string) (*domain.Vacancy, error)
	CreatePlatform(ctx context.Context, a *access.Actor, in services.VacancyInput) (*domain.Vacancy, error)
	UpdatePlatform(ctx context.Context, a *access.Actor, id string, in services.VacancyInput) (*domain.Vacancy, error)
	DeletePlatform(ctx context.Context, a *access.Actor, id string) error
	ToggleClosed(ctx context.Context, a *access.Actor, id string) (bool, error)
	CreateOwn(ctx context.Context, a *access.Actor, in services.VacancyInput) (*domain.Vacancy, error)
	UpdateOwn(ctx context.Context, a *access.Actor, id string, in services.VacancyInput) (*domain.Vacancy, error)
	DeleteOwn(ctx context.Context, a *access.Actor, id string) error
}

// NewsService covers platform and shelter news.
type NewsService interface {
	Get(ctx context.Context, id string) (*domain.News, error)
	ListMain(ctx context.Context, p services.PageRequest) (*services.Page[domain.News], error)
	ListForShelter(ctx context.Context, shelterID string, p services.PageRequest) (*services.Page[domain.News], error)
	ListOwn(ctx context.Context, a *access.Actor, p services.PageRequest) (*services.Page[domain.News], error)
	CreatePlatform(ctx context.Context, a *access.Actor, in services.ArticleInput) (*domain.News, error)
	UpdateStaff(ctx context.Context, a *access.Actor, id string, in services.ArticleInput) (*domain.News, error)
	DeleteStaff(ctx context.Context, a *access.Actor, id string) error
	CreateOwn(ctx context.Context, a *access.Actor, in services.ArticleInput) (*domain.News, error)
	UpdateOwn(ctx context.Context, a *access.Actor, id string, in services.ArticleInput) (*domain.News, error)
	DeleteOwn(ctx context.Context, a *access.Actor, id string) error
}

// HelpArticleService covers help articles and their search.
type HelpArticleService interface {
	Get(ctx context.Context, id string) (*domain.HelpArticle, error)
	List(ctx context.Context, query string) ([]domain.HelpArticle, error)
	CreateStaff(ctx context.Context, a *access.Actor, in services.ArticleInput) (*domain.HelpArticle, error)
	UpdateStaff(ctx context.Context, a *access.Actor, id string, in services.ArticleInput) (*domain.HelpArticle, error)
	DeleteStaff(ctx context.Context, a *access.Actor, id string) error
}

// FAQService covers FAQ entries and their search.
type FAQService interface {
	List(ctx context.Context, query string) ([]domain.FAQ, error)
	Get(ctx context.Context, id string) (*domain.FAQ, error)
	Create(ctx context.Context, a *access.Actor, in services.FAQInput) (*domain.FAQ, error)
	Update(ctx context.Context, a *access.Actor, id string, in services.FAQInput) (*domain.FAQ, error)
	Delete(ctx context.Context, a *access.Actor, id string) error
}

// ImageService stores gallery uploads.
type ImageService interface {
	Upload(ctx context.Context, a *access.Actor, filename string, r io.Reader) (*domain.Image, error)
}

// ChatService covers chat lifecycle.
type ChatService interface {
	Start(ctx context.Context, a *access.Actor, shelterID string) (*domain.Chat, bool, error)
	ListMine(ctx context.Context, a *access.Actor, p services.PageRequest) (*services.Page[domain.Chat], error)
	ListShelter(ctx context.Context, a *access.Actor, p services.PageRequest) (*services.Page[domain.Chat], error)
	Get(ctx context.Context, a *access.Actor, id string) (*domain.Chat, error)
	Delete(ctx context.Context, a *access.Actor, id string) error
}

// MessageService covers messages within a chat.
type MessageService interface {
	Send(ctx context.Context, a *access.Actor, chatID, text string) (*domain.Message, error)
	ListPage(ctx context.Context, a *access.Actor, chatID string, p services.PageRequest) (*services.Page[domain.Message], error)
	Stats(ctx context.Context, a *access.Actor, chatID string) (services.ChatStats, error)
	Edit(ctx context.Context, a *access.Actor, chatID, msgID, text string) (*domain.Message, error)
	Delete(ctx context.Context, a *access.Actor, chatID, msgID string) error
	MarkRead(ctx context.Context, a *access.Actor, chatID string) (int64, error)
}

// PaymentService covers donations, the provider webhook and partner linking.
type PaymentService interface {
	Donate(ctx context.Context, a *access.Actor, in services.DonateInput) (*services.DonateResult, error)
	Webhook(ctx context.Context, raw []byte) (string, error)
	PartnerLink(ctx context.Context, a *access.Actor) (string, error)
	PartnerCallback(ctx context.Context, code, state, providerErr string) (*domain.YookassaOAuthToken, error)
	History(ctx context.Context, a *access.Actor, p services.PageRequest) (*services.Page[domain.Donation], error)
}

// Subscriber upgrades a request into a realtime chat subscription.
type Subscriber interface {
	Serve(c *gin.Context, up *websocket.Upgrader, chatID, userID string) error
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Nil Alert only logs.
type Services struct {
	Users     UserService
	Shelters  ShelterService
	Pets      PetService
	Tasks     TaskService
	Vacancies VacancyService
	News      NewsService
	Help      HelpArticleService
	FAQ       FAQService
	Images    ImageService
	Chats     ChatService
	Messages  MessageService
	Payments  PaymentService
	Hub       Subscriber
	Upgrader  *websocket.Upgrader
	Alert     alert.Reporter
}

// Handlers groups the HTTP endpoints. It depends on the service contracts
// above so transport stays separate from business logic.
type Handlers struct {
	users     UserService
	shelters  ShelterService
	pets      PetService
	tasks     TaskService
	vacancies VacancyService
	news      NewsService
	help      HelpArticleService
	faq       FAQService
	images    ImageService
	chats     ChatService
	messages  MessageService
	payments  PaymentService
	hub       Subscriber
	upgrader  *websocket.Upgrader
	alert     alert.Reporter
}

// New constructs Handlers bound to s.
func New(s Services) *Handlers {
	up := s.Upgrader
	if up == nil {
		up = &websocket.Upgrader{}
	}
	return &Handlers{
		users:     s.Users,
		shelters:  s.Shelters,
		pets:      s.Pets,
		tasks:     s.Tasks,
		vacancies: s.Vacancies,
		news:      s.News,
		help:      s.Help,
		faq:       s.FAQ,
		images:    s.Images,
		chats:     s.Chats,
		messages:  s.Messages,
		payments:  s.Payments,
		hub:       s.Hub,
		upgrader:  up,
		alert:     s.Alert,
	}
}
