package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/auth"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/observability"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/yookassa"
)

// defaultPartnerTokenTTL applies when the provider omits expires_in.
const defaultPartnerTokenTTL = 3 * 365 * 24 * time.Hour

// maxLoggedBody caps raw webhook bodies written to logs.
const maxLoggedBody = 2048

// PaymentProvider is the subset of the provider client the service uses.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, token, idemKey string, in yookassa.PaymentRequest) (*yookassa.Payment, error)
	GetPayment(ctx context.Context, token, id string) (*yookassa.Payment, error)
	AddWebhook(ctx context.Context, token, idemKey, event, target string) error
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*yookassa.Token, error)
}

// DonateInput is one donation request. ClientKey identifies anonymous
// donors for idempotency, usually "ip:<addr>".
type DonateInput struct {
	ShelterID      string
	Amount         decimal.Decimal
	ClientKey      string
	IdempotencyKey string
}

// DonateResult carries the provider redirect. Replayed is set when an
// earlier request with the same idempotency key is answered again.
type DonateResult struct {
	DonationID      string `json:"-"`
	ConfirmationURL string `json:"confirmation_url"`
	Replayed        bool   `json:"-"`
}

// PaymentService runs donations through the provider's partner program.
type PaymentService struct {
	DB       *gorm.DB
	Provider PaymentProvider
	Tokens   *auth.Signer

	MinDonation    decimal.Decimal
	ReturnURLBase  string
	WebhookURL     string
	TestMode       bool
	StateTTL       time.Duration
	IdempotencyTTL time.Duration
}

// Donate creates a provider payment for a shelter and records it as a
// pending donation.
func (s *PaymentService) Donate(ctx context.Context, a *access.Actor, in DonateInput) (*DonateResult, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Donate",
		trace.WithAttributes(attribute.String("shelter.id", in.ShelterID)))
	defer span.End()

	if err := s.validAmount(in.Amount); err != nil {
		return nil, err
	}
	sh, err := approvedShelter(ctx, s.DB, in.ShelterID)
	if err != nil {
		return nil, err
	}
	tok, err := repo.GetShelterToken(ctx, s.DB, sh.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPaymentNotConfigured
	}
	if err != nil {
		return nil, err
	}
	if tok.IsExpired(time.Now().UTC()) {
		return nil, invalid(CodeTokenExpired, "shelter payment authorization has expired")
	}

	who := in.ClientKey
	if a.Authenticated() {
		who = a.ID
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if res, err := s.replay(ctx, who, sh.ID, key); res != nil || err != nil {
			return res, err
		}
	}

	p, err := s.Provider.CreatePayment(ctx, tok.Token, providerKey(who, sh.ID, key), yookassa.PaymentRequest{
		Amount: yookassa.RUB(in.Amount),
		Confirmation: yookassa.Confirmation{
			Type:      "redirect",
			ReturnURL: fmt.Sprintf("%s/shelters/%s/about", s.ReturnURLBase, sh.ID),
		},
		Capture:     true,
		Description: fmt.Sprintf("Пожертвование приюту «%s»", sh.Name),
		Metadata:    map[string]string{"shelter_id": sh.ID, "user_id": actorID(a)},
		Test:        s.TestMode,
	})
	if err != nil {
		return nil, s.providerError(ctx, "create payment", err)
	}

	d := &domain.Donation{
		ExternalID: p.ID,
		ShelterID:  &sh.ID,
		Amount:     in.Amount,
		CreatedAt:  p.CreatedAt.UTC(),
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if a.Authenticated() {
		d.UserID = &a.ID
	}
	res := &DonateResult{ConfirmationURL: p.ConfirmationURL()}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateDonation(ctx, tx, d); err != nil {
			return err
		}
		res.DonationID = d.ID
		if key == "" {
			return nil
		}
		_, err := repo.CreateIdempotency(ctx, tx, who, sh.ID, key, d.ID, res.ConfirmationURL, s.IdempotencyTTL)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) && key != "" {
		// A concurrent request with the same key won; answer with its result.
		if prev, rerr := s.replay(ctx, who, sh.ID, key); prev != nil || rerr != nil {
			return prev, rerr
		}
	}
	if err != nil {
		return nil, err
	}

	observability.DonationsCreated.Inc()
	log.Info().Str("shelter_id", sh.ID).Str("external_id", p.ID).Str("amount", in.Amount.StringFixed(2)).Msg("donation created")
	return res, nil
}

func (s *PaymentService) replay(ctx context.Context, who, shelterID, key string) (*DonateResult, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, who, shelterID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &DonateResult{DonationID: rec.DonationID, ConfirmationURL: rec.ConfirmationURL, Replayed: true}, nil
}

func (s *PaymentService) validAmount(amount decimal.Decimal) error {
	floor := s.MinDonation
	if floor.IsZero() {
		floor = decimal.NewFromInt(1)
	}
	switch {
	case amount.LessThan(floor):
		return invalidField("amount", "must be at least "+floor.StringFixed(2))
	case !amount.Equal(amount.Round(2)):
		return invalidField("amount", "at most two decimal places")
	}
	return nil
}

// Webhook applies a provider notification and returns the recorded
// outcome. Every delivery is archived first. An unknown payment yields
// ErrNotFound; callers should still acknowledge it.
func (s *PaymentService) Webhook(ctx context.Context, raw []byte) (outcome string, err error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Webhook")
	defer span.End()

	ev := &domain.WebhookEvent{RawBody: string(raw), Outcome: domain.WebhookReceived}
	if json.Valid(raw) {
		ev.Payload = datatypes.JSON(raw)
	}
	n, perr := yookassa.ParseNotification(raw)
	if n != nil {
		ev.Event, ev.ObjectID = n.Event, n.Object.ID
	}
	if err := repo.CreateWebhookEvent(ctx, s.DB, ev); err != nil {
		return domain.WebhookFailed, fmt.Errorf("archive webhook: %w", err)
	}

	event := ev.Event
	defer func() {
		if event == "" {
			event = "unknown"
		}
		observability.WebhookEvents.WithLabelValues(event, outcome).Inc()
		if uerr := repo.SetWebhookOutcome(ctx, s.DB, ev.ID, outcome); uerr != nil {
			log.Warn().Err(uerr).Str("webhook_id", ev.ID).Msg("webhook outcome not saved")
		}
	}()

	if perr != nil {
		log.Warn().Err(perr).Str("body", truncate(string(raw), maxLoggedBody)).Msg("malformed webhook")
		return domain.WebhookMalformed, &ValidationError{Code: CodeValidation, Message: perr.Error()}
	}
	span.SetAttributes(attribute.String("webhook.event", n.Event), attribute.String("payment.id", n.Object.ID))

	var want string
	switch n.Event {
	case yookassa.EventPaymentSucceeded:
		want = yookassa.StatusSucceeded
	case yookassa.EventPaymentCanceled:
		want = yookassa.StatusCanceled
	default:
		return domain.WebhookIgnored, nil
	}

	d, err := repo.GetDonationByExternalID(ctx, s.DB, n.Object.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.WebhookUnknown, notFound("donation")
	}
	if err != nil {
		return domain.WebhookFailed, err
	}

	payment, err := s.verify(ctx, d, &n.Object)
	if err != nil {
		return domain.WebhookFailed, err
	}
	if payment.Status != want {
		log.Warn().Str("external_id", d.ExternalID).Str("event", n.Event).Str("status", payment.Status).
			Msg("webhook does not match provider state")
		return domain.WebhookMismatch, nil
	}

	changed := false
	if want == yookassa.StatusSucceeded {
		amount, err := payment.Amount.Decimal()
		if err != nil {
			return domain.WebhookMalformed, &ValidationError{Code: CodeValidation, Message: "invalid amount"}
		}
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := repo.MarkDonationSucceeded(ctx, tx, d.ExternalID, amount)
			if err != nil || !ok {
				return err
			}
			changed = true
			if d.UserID == nil {
				return nil
			}
			err = repo.AddUserDonations(ctx, tx, *d.UserID, amount)
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			return err
		})
	} else {
		changed, err = repo.DeletePendingDonation(ctx, s.DB, d.ExternalID)
	}
	if err != nil {
		return domain.WebhookFailed, err
	}
	if !changed {
		return domain.WebhookDuplicate, nil
	}
	log.Info().Str("external_id", d.ExternalID).Str("event", n.Event).Msg("donation reconciled")
	return domain.WebhookApplied, nil
}

// verify re-reads the payment from the provider when the shelter still has
// a usable token; otherwise the envelope is trusted.
func (s *PaymentService) verify(ctx context.Context, d *domain.Donation, envelope *yookassa.Payment) (*yookassa.Payment, error) {
	if d.ShelterID == nil {
		return envelope, nil
	}
	tok, err := repo.GetShelterToken(ctx, s.DB, *d.ShelterID)
	if errors.Is(err, repo.ErrNotFound) {
		return envelope, nil
	}
	if err != nil {
		return nil, err
	}
	if tok.IsExpired(time.Now().UTC()) {
		return envelope, nil
	}
	p, err := s.Provider.GetPayment(ctx, tok.Token, envelope.ID)
	if err != nil {
		return nil, s.providerError(ctx, "get payment", err)
	}
	return p, nil
}

// PartnerLink returns the provider authorization URL for the actor's
// shelter. The state token names the shelter by TIN.
func (s *PaymentService) PartnerLink(ctx context.Context, a *access.Actor) (string, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return "", err
	}
	ttl := s.StateTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	state, _, err := s.Tokens.Sign(auth.Claims{
		RegisteredClaims: subject(a.ID),
		Purpose:          auth.PurposePartnerState,
		TIN:              sh.TIN,
	}, ttl)
	if err != nil {
		return "", err
	}
	return s.Provider.AuthorizeURL(state), nil
}

// PartnerCallback completes the authorization: it exchanges code for a
// shop token, subscribes the platform webhook and stores the token.
func (s *PaymentService) PartnerCallback(ctx context.Context, code, state, providerErr string) (*domain.YookassaOAuthToken, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "PartnerCallback")
	defer span.End()

	if providerErr != "" {
		return nil, invalid(CodeProviderRejected, "authorization failed: "+providerErr)
	}
	c, err := s.Tokens.Parse(state, auth.PurposePartnerState)
	if err != nil || c.TIN == "" {
		return nil, invalid(CodeInvalidToken, "invalid or expired state")
	}
	if strings.TrimSpace(code) == "" {
		return nil, invalidField("code", "required")
	}
	sh, err := repo.GetShelterByTIN(ctx, s.DB, c.TIN)
	if err != nil {
		return nil, missing(err, "shelter")
	}
	span.SetAttributes(attribute.String("shelter.id", sh.ID))

	tok, err := s.Provider.ExchangeCode(ctx, code)
	if err != nil {
		var apiErr *yookassa.APIError
		if errors.As(err, &apiErr) {
			return nil, invalid(CodeProviderRejected, apiErr.Body)
		}
		return nil, s.providerError(ctx, "exchange code", err)
	}

	for _, ev := range []string{yookassa.EventPaymentSucceeded, yookassa.EventPaymentCanceled} {
		if err := s.Provider.AddWebhook(ctx, tok.AccessToken, uuid.NewString(), ev, s.WebhookURL); err != nil {
			log.Warn().Err(err).Str("shelter_id", sh.ID).Str("event", ev).Msg("webhook subscription failed")
		}
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultPartnerTokenTTL
	}
	saved, err := repo.UpsertShelterToken(ctx, s.DB, sh.ID, tok.AccessToken, time.Now().UTC().Add(ttl))
	if err != nil {
		return nil, err
	}
	log.Info().Str("shelter_id", sh.ID).Time("expires_at", saved.ExpiresAt).Msg("shelter payment account connected")
	return saved, nil
}

// History lists the actor's successful donations, newest first.
func (s *PaymentService) History(ctx context.Context, a *access.Actor, p PageRequest) (*Page[domain.Donation], error) {
	if !a.Authenticated() {
		return nil, ErrUnauthenticated
	}
	offset, limit := p.bounds()
	items, total, err := repo.ListUserDonations(ctx, s.DB, a.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, total), nil
}

// providerError maps client failures: unavailability stays retryable,
// rejections become *ProviderError.
func (s *PaymentService) providerError(ctx context.Context, op string, err error) error {
	trace.SpanFromContext(ctx).RecordError(err)
	var apiErr *yookassa.APIError
	if errors.As(err, &apiErr) {
		log.Warn().Str("op", op).Int("status", apiErr.Status).Str("body", truncate(apiErr.Body, maxLoggedBody)).
			Msg("payment provider rejected request")
		return &ProviderError{Status: apiErr.Status, Body: apiErr.Body}
	}
	log.Warn().Err(err).Str("op", op).Msg("payment provider unavailable")
	return fmt.Errorf("%s: %w", op, ErrUnavailable)
}

// providerKey derives the provider Idempotence-Key. A client key maps to a
// stable value per donor and shelter; without one every call is unique.
func providerKey(who, shelterID, key string) string {
	if key == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(who+"|"+shelterID+"|"+key)).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
