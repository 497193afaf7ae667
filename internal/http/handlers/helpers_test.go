package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

// Stubs embed the service interface so only the methods a test needs are
// implemented; anything else panics on a nil interface.

type stubShelters struct {
	ShelterService
	list       func(ctx context.Context, a *access.Actor, opts filter.ShelterOptions, p services.PageRequest) (*services.Page[services.ShelterListItem], error)
	onMain     func(ctx context.Context, a *access.Actor, limit int) ([]services.ShelterListItem, error)
	removeOwn  func(ctx context.Context, a *access.Actor) (services.RemovalResult, error)
	addFav     func(ctx context.Context, a *access.Actor, id string) error
	createType func(ctx context.Context, a *access.Actor, slug, name string) (*domain.AnimalType, error)
}

func (s stubShelters) List(ctx context.Context, a *access.Actor, opts filter.ShelterOptions, p services.PageRequest) (*services.Page[services.ShelterListItem], error) {
	return s.list(ctx, a, opts, p)
}

func (s stubShelters) OnMain(ctx context.Context, a *access.Actor, limit int) ([]services.ShelterListItem, error) {
	return s.onMain(ctx, a, limit)
}

func (s stubShelters) RemoveOwn(ctx context.Context, a *access.Actor) (services.RemovalResult, error) {
	return s.removeOwn(ctx, a)
}

func (s stubShelters) AddFavourite(ctx context.Context, a *access.Actor, id string) error {
	return s.addFav(ctx, a, id)
}

func (s stubShelters) CreateAnimalType(ctx context.Context, a *access.Actor, slug, name string) (*domain.AnimalType, error) {
	return s.createType(ctx, a, slug, name)
}

type stubPets struct {
	PetService
	list   func(ctx context.Context, opts filter.PetOptions, p services.PageRequest) (*services.Page[domain.Pet], error)
	toggle func(ctx context.Context, a *access.Actor, id string) (bool, error)
}

func (s stubPets) List(ctx context.Context, opts filter.PetOptions, p services.PageRequest) (*services.Page[domain.Pet], error) {
	return s.list(ctx, opts, p)
}

func (s stubPets) ToggleAdopted(ctx context.Context, a *access.Actor, id string) (bool, error) {
	return s.toggle(ctx, a, id)
}

type stubChats struct {
	ChatService
	start func(ctx context.Context, a *access.Actor, shelterID string) (*domain.Chat, bool, error)
	get   func(ctx context.Context, a *access.Actor, id string) (*domain.Chat, error)
}

func (s stubChats) Start(ctx context.Context, a *access.Actor, shelterID string) (*domain.Chat, bool, error) {
	return s.start(ctx, a, shelterID)
}

func (s stubChats) Get(ctx context.Context, a *access.Actor, id string) (*domain.Chat, error) {
	return s.get(ctx, a, id)
}

type stubMessages struct {
	MessageService
	send  func(ctx context.Context, a *access.Actor, chatID, text string) (*domain.Message, error)
	list  func(ctx context.Context, a *access.Actor, chatID string, p services.PageRequest) (*services.Page[domain.Message], error)
	stats func(ctx context.Context, a *access.Actor, chatID string) (services.ChatStats, error)
}

func (s stubMessages) Send(ctx context.Context, a *access.Actor, chatID, text string) (*domain.Message, error) {
	return s.send(ctx, a, chatID, text)
}

func (s stubMessages) ListPage(ctx context.Context, a *access.Actor, chatID string, p services.PageRequest) (*services.Page[domain.Message], error) {
	return s.list(ctx, a, chatID, p)
}

func (s stubMessages) Stats(ctx context.Context, a *access.Actor, chatID string) (services.ChatStats, error) {
	return s.stats(ctx, a, chatID)
}

type stubUsers struct {
	UserService
	authenticate func(ctx context.Context, token string) (*access.Actor, error)
}

func (s stubUsers) Authenticate(ctx context.Context, token string) (*access.Actor, error) {
	return s.authenticate(ctx, token)
}

type stubPayments struct {
	PaymentService
	donate   func(ctx context.Context, a *access.Actor, in services.DonateInput) (*services.DonateResult, error)
	webhook  func(ctx context.Context, raw []byte) (string, error)
	callback func(ctx context.Context, code, state, providerErr string) (*domain.YookassaOAuthToken, error)
}

func (s stubPayments) Donate(ctx context.Context, a *access.Actor, in services.DonateInput) (*services.DonateResult, error) {
	return s.donate(ctx, a, in)
}

func (s stubPayments) Webhook(ctx context.Context, raw []byte) (string, error) {
	return s.webhook(ctx, raw)
}

func (s stubPayments) PartnerCallback(ctx context.Context, code, state, providerErr string) (*domain.YookassaOAuthToken, error) {
	return s.callback(ctx, code, state, providerErr)
}

type stubImages struct {
	upload func(ctx context.Context, a *access.Actor, filename string, r io.Reader) (*domain.Image, error)
}

func (s stubImages) Upload(ctx context.Context, a *access.Actor, filename string, r io.Reader) (*domain.Image, error) {
	return s.upload(ctx, a, filename, r)
}

type stubHub struct {
	serve func(c *gin.Context, up *websocket.Upgrader, chatID, userID string) error
}

func (s stubHub) Serve(c *gin.Context, up *websocket.Upgrader, chatID, userID string) error {
	return s.serve(c, up, chatID, userID)
}

// testActorHeader selects the request actor in tests: "<id>:<role>".
const testActorHeader = "X-Test-Actor"

// newTestEngine returns a gin engine that resolves the actor from
// testActorHeader, the way middleware.Authenticate does from a bearer token.
func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if v := c.GetHeader(testActorHeader); v != "" {
			id, role, _ := strings.Cut(v, ":")
			access.SetActor(c, &access.Actor{ID: id, Role: domain.Role(role)})
		}
		c.Next()
	})
	return r
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
