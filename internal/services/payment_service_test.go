package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/auth"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/yookassa"
)

type createCall struct {
	token, idemKey string
	req            yookassa.PaymentRequest
}

type fakeProvider struct {
	mu        sync.Mutex
	creates   []createCall
	createErr error

	status string // reported by GetPayment; empty means echo "succeeded"
	getErr error
	gets   int

	token       *yookassa.Token
	exchangeErr error
	webhooks    []string
}

func (p *fakeProvider) CreatePayment(_ context.Context, token, idemKey string, in yookassa.PaymentRequest) (*yookassa.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.creates = append(p.creates, createCall{token, idemKey, in})
	id := fmt.Sprintf("pay-%d", len(p.creates))
	return &yookassa.Payment{
		ID:           id,
		Status:       yookassa.StatusPending,
		Amount:       in.Amount,
		Confirmation: &yookassa.Confirmation{Type: "redirect", ConfirmationURL: "https://pay.test/" + id},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (p *fakeProvider) GetPayment(_ context.Context, _, id string) (*yookassa.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.getErr != nil {
		return nil, p.getErr
	}
	status := p.status
	if status == "" {
		status = yookassa.StatusSucceeded
	}
	return &yookassa.Payment{ID: id, Status: status, Amount: yookassa.Amount{Value: "150.00", Currency: "RUB"}}, nil
}

func (p *fakeProvider) AddWebhook(_ context.Context, _, _, event, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.webhooks = append(p.webhooks, event)
	return nil
}

func (p *fakeProvider) AuthorizeURL(state string) string {
	return "https://oauth.test/authorize?response_type=code&state=" + state
}

func (p *fakeProvider) ExchangeCode(context.Context, string) (*yookassa.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.token, nil
}

type paymentFixture struct {
	db      *gorm.DB
	svc     *PaymentService
	prov    *fakeProvider
	shelter *domain.Shelter
	owner   *access.Actor
	donor   *access.Actor
}

func newPaymentFixture(t *testing.T, connected bool) paymentFixture {
	t.Helper()
	db := newTestDB(t)
	sh, owner := newShelter(t, db, "Paws", "6000000001", true)
	_, donor := newUser(t, db, "donor", domain.RoleUser)
	if connected {
		if _, err := repo.UpsertShelterToken(context.Background(), db, sh.ID, "shop-token", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("UpsertShelterToken: %v", err)
		}
	}
	prov := &fakeProvider{}
	return paymentFixture{
		db:   db,
		prov: prov,
		svc: &PaymentService{
			DB:             db,
			Provider:       prov,
			Tokens:         auth.NewSigner("test-secret"),
			ReturnURLBase:  "https://help-paw.test",
			WebhookURL:     "https://api.help-paw.test/api/v1/payments/yookassa/webhook/",
			IdempotencyTTL: time.Hour,
		},
		shelter: sh,
		owner:   owner,
		donor:   donor,
	}
}

func notification(event, id string) []byte {
	return []byte(fmt.Sprintf(`{"type":"notification","event":%q,"object":{"id":%q,"status":"succeeded","amount":{"value":"150.00","currency":"RUB"}}}`, event, id))
}

func webhookOutcome(t *testing.T, db *gorm.DB, objectID string) string {
	t.Helper()
	var ev domain.WebhookEvent
	if err := db.Where("object_id = ?", objectID).Order("received_at desc").First(&ev).Error; err != nil {
		t.Fatalf("load webhook event: %v", err)
	}
	return ev.Outcome
}

func TestDonate_CreatesPendingDonation(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()

	res, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.RequireFromString("150")})
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if res.ConfirmationURL != "https://pay.test/pay-1" || res.Replayed {
		t.Fatalf("result = %+v", res)
	}
	call := f.prov.creates[0]
	if call.token != "shop-token" || call.req.Amount.Value != "150.00" || !call.req.Capture {
		t.Fatalf("provider call = %+v", call)
	}
	if want := "https://help-paw.test/shelters/" + f.shelter.ID + "/about"; call.req.Confirmation.ReturnURL != want {
		t.Fatalf("return url = %q", call.req.Confirmation.ReturnURL)
	}
	if call.req.Metadata["user_id"] != f.donor.ID || call.req.Metadata["shelter_id"] != f.shelter.ID {
		t.Fatalf("metadata = %v", call.req.Metadata)
	}

	d, err := repo.GetDonationByExternalID(ctx, f.db, "pay-1")
	if err != nil {
		t.Fatalf("GetDonationByExternalID: %v", err)
	}
	if d.IsSuccessful || d.UserID == nil || *d.UserID != f.donor.ID || !d.Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("donation = %+v", d)
	}
}

func TestDonate_IdempotencyKeyReplays(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()
	in := DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(200), ClientKey: "ip:10.0.0.1", IdempotencyKey: "k-1"}

	first, err := f.svc.Donate(ctx, nil, in)
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	again, err := f.svc.Donate(ctx, nil, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.ConfirmationURL != first.ConfirmationURL || again.DonationID != first.DonationID {
		t.Fatalf("replay = %+v, first = %+v", again, first)
	}
	if len(f.prov.creates) != 1 {
		t.Fatalf("provider called %d times", len(f.prov.creates))
	}

	// Another donor using the same key gets a payment of their own.
	in.ClientKey = "ip:10.0.0.2"
	other, err := f.svc.Donate(ctx, nil, in)
	if err != nil || other.Replayed {
		t.Fatalf("other donor = %+v, %v", other, err)
	}
	if f.prov.creates[0].idemKey == f.prov.creates[1].idemKey {
		t.Fatalf("provider keys must differ per donor")
	}
	if providerKey("a", "s", "k") != providerKey("a", "s", "k") || providerKey("a", "s", "") == providerKey("a", "s", "") {
		t.Fatalf("providerKey must be stable with a key and unique without one")
	}
}

func TestDonate_Rejections(t *testing.T) {
	f := newPaymentFixture(t, false)
	ctx := context.Background()
	amount := decimal.NewFromInt(100)

	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: amount}); !errors.Is(err, ErrPaymentNotConfigured) {
		t.Fatalf("unconnected shelter: %v", err)
	}
	if _, err := repo.UpsertShelterToken(ctx, f.db, f.shelter.ID, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("UpsertShelterToken: %v", err)
	}
	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: amount}); validationCode(err) != CodeTokenExpired {
		t.Fatalf("expired token: %v", err)
	}
	for _, v := range []string{"0.99", "10.555", "-5"} {
		_, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.RequireFromString(v)})
		if fieldError(err, "amount") == "" {
			t.Fatalf("amount %s accepted: %v", v, err)
		}
	}
	hidden, _ := newShelter(t, f.db, "Hidden", "6000000002", false)
	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: hidden.ID, Amount: amount}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unapproved shelter: %v", err)
	}
	if len(f.prov.creates) != 0 {
		t.Fatalf("provider called for rejected donations")
	}
}

func TestDonate_ProviderFailures(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()
	in := DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(100)}

	f.prov.createErr = &yookassa.APIError{Status: 400, Body: `{"code":"invalid_request"}`}
	_, err := f.svc.Donate(ctx, f.donor, in)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != 400 {
		t.Fatalf("rejection: %v", err)
	}

	f.prov.createErr = fmt.Errorf("%w: dial tcp", yookassa.ErrUnavailable)
	if _, err := f.svc.Donate(ctx, f.donor, in); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("outage: %v", err)
	}
}

func TestWebhook_SucceededOnce(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()
	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(150)}); err != nil {
		t.Fatalf("Donate: %v", err)
	}

	outcome, err := f.svc.Webhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	if err != nil || outcome != domain.WebhookApplied {
		t.Fatalf("Webhook = %s, %v", outcome, err)
	}
	if f.prov.gets != 1 {
		t.Fatalf("payment not verified with provider")
	}
	outcome, err = f.svc.Webhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	if err != nil || outcome != domain.WebhookDuplicate {
		t.Fatalf("redelivery = %s, %v", outcome, err)
	}

	u, err := repo.GetUser(ctx, f.db, f.donor.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.DonationsSum.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("donations sum = %s, want 150", u.DonationsSum)
	}
	c, err := repo.CountShelter(ctx, f.db, f.shelter.ID)
	if err != nil || !c.MoneyCollected.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("money collected = %s, %v", c.MoneyCollected, err)
	}
	if got := webhookOutcome(t, f.db, "pay-1"); got != domain.WebhookDuplicate {
		t.Fatalf("archived outcome = %s", got)
	}

	hist, err := f.svc.History(ctx, f.donor, PageRequest{})
	if err != nil || hist.Count != 1 {
		t.Fatalf("History = %+v, %v", hist, err)
	}
}

func TestWebhook_CanceledDeletesPending(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()
	if _, err := f.svc.Donate(ctx, nil, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(50), ClientKey: "ip:1.2.3.4"}); err != nil {
		t.Fatalf("Donate: %v", err)
	}
	f.prov.status = yookassa.StatusCanceled

	outcome, err := f.svc.Webhook(ctx, notification(yookassa.EventPaymentCanceled, "pay-1"))
	if err != nil || outcome != domain.WebhookApplied {
		t.Fatalf("Webhook = %s, %v", outcome, err)
	}
	if _, err := repo.GetDonationByExternalID(ctx, f.db, "pay-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("canceled donation kept: %v", err)
	}
}

func TestWebhook_MismatchAndEdgeCases(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()
	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(150)}); err != nil {
		t.Fatalf("Donate: %v", err)
	}

	// A forged success the provider does not confirm changes nothing.
	f.prov.status = yookassa.StatusPending
	outcome, err := f.svc.Webhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	if err != nil || outcome != domain.WebhookMismatch {
		t.Fatalf("mismatch = %s, %v", outcome, err)
	}
	d, _ := repo.GetDonationByExternalID(ctx, f.db, "pay-1")
	if d.IsSuccessful {
		t.Fatalf("unconfirmed payment marked successful")
	}

	outcome, err = f.svc.Webhook(ctx, notification(yookassa.EventPaymentSucceeded, "nobody"))
	if !errors.Is(err, ErrNotFound) || outcome != domain.WebhookUnknown {
		t.Fatalf("unknown payment = %s, %v", outcome, err)
	}
	if got := webhookOutcome(t, f.db, "nobody"); got != domain.WebhookUnknown {
		t.Fatalf("archived outcome = %s", got)
	}

	outcome, err = f.svc.Webhook(ctx, notification(yookassa.EventPaymentWaitingForCapture, "pay-1"))
	if err != nil || outcome != domain.WebhookIgnored {
		t.Fatalf("ignored event = %s, %v", outcome, err)
	}

	outcome, err = f.svc.Webhook(ctx, []byte(`{"event":`))
	var ve *ValidationError
	if !errors.As(err, &ve) || outcome != domain.WebhookMalformed {
		t.Fatalf("malformed = %s, %v", outcome, err)
	}
	var archived int64
	f.db.Model(&domain.WebhookEvent{}).Where("outcome = ?", domain.WebhookMalformed).Count(&archived)
	if archived != 1 {
		t.Fatalf("malformed body not archived")
	}

	f.prov.getErr = errors.New("connection reset")
	outcome, err = f.svc.Webhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	if !errors.Is(err, ErrUnavailable) || outcome != domain.WebhookFailed {
		t.Fatalf("provider down = %s, %v", outcome, err)
	}
}

func TestWebhook_TrustsEnvelopeWithoutUsableToken(t *testing.T) {
	f := newPaymentFixture(t, true)
	ctx := context.Background()
	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(150)}); err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if _, err := repo.UpsertShelterToken(ctx, f.db, f.shelter.ID, "shop-token", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("UpsertShelterToken: %v", err)
	}
	outcome, err := f.svc.Webhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	if err != nil || outcome != domain.WebhookApplied || f.prov.gets != 0 {
		t.Fatalf("Webhook = %s, %v (gets=%d)", outcome, err, f.prov.gets)
	}
}

func TestPartnerFlow(t *testing.T) {
	f := newPaymentFixture(t, false)
	ctx := context.Background()
	f.prov.token = &yookassa.Token{AccessToken: "new-shop-token"}

	link, err := f.svc.PartnerLink(ctx, f.owner)
	if err != nil {
		t.Fatalf("PartnerLink: %v", err)
	}
	i := strings.Index(link, "state=")
	if i < 0 {
		t.Fatalf("link without state: %s", link)
	}
	state := link[i+len("state="):]

	tok, err := f.svc.PartnerCallback(ctx, "auth-code", state, "")
	if err != nil {
		t.Fatalf("PartnerCallback: %v", err)
	}
	if tok.ShelterID != f.shelter.ID || tok.Token != "new-shop-token" {
		t.Fatalf("token = %+v", tok)
	}
	if tok.ExpiresAt.Before(time.Now().Add(2 * 365 * 24 * time.Hour)) {
		t.Fatalf("default lifetime not applied: %s", tok.ExpiresAt)
	}
	if len(f.prov.webhooks) != 2 {
		t.Fatalf("webhooks = %v", f.prov.webhooks)
	}

	// The shelter can now take donations.
	if _, err := f.svc.Donate(ctx, f.donor, DonateInput{ShelterID: f.shelter.ID, Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("Donate after connect: %v", err)
	}

	if _, err := f.svc.PartnerCallback(ctx, "", "", "access_denied"); validationCode(err) != CodeProviderRejected {
		t.Fatalf("provider error: %v", err)
	}
	if _, err := f.svc.PartnerCallback(ctx, "code", "garbage", ""); validationCode(err) != CodeInvalidToken {
		t.Fatalf("bad state: %v", err)
	}
	if _, err := f.svc.PartnerCallback(ctx, "", state, ""); fieldError(err, "code") == "" {
		t.Fatalf("missing code: %v", err)
	}
	f.prov.exchangeErr = &yookassa.APIError{Status: 400, Body: "invalid_grant"}
	if _, err := f.svc.PartnerCallback(ctx, "used-code", state, ""); validationCode(err) != CodeProviderRejected {
		t.Fatalf("rejected code: %v", err)
	}

	if _, err := f.svc.PartnerLink(ctx, f.donor); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner link: %v", err)
	}
}

func TestHistory_RequiresLogin(t *testing.T) {
	f := newPaymentFixture(t, false)
	if _, err := f.svc.History(context.Background(), nil, PageRequest{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous history: %v", err)
	}
}
