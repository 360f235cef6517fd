package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/posi-ecosystem/fati-backend/internal/audit"
	"github.com/posi-ecosystem/fati-backend/internal/config"
	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// EventKind is a provider event type this service acts on.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionCreated EventKind = "customer.subscription.created"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventInvoicePaid         EventKind = "invoice.payment_succeeded"
	EventInvoiceFailed       EventKind = "invoice.payment_failed"
)

const fatiPurchaseType = "fati_purchase"

// BillingEvent is a decoded provider event. Only the types below implement it.
type BillingEvent interface {
	Kind() EventKind
	billingEvent()
}

type CheckoutCompleted struct {
	Session stripe.CheckoutSession
}

type SubscriptionChanged struct {
	EventKind    EventKind
	Subscription stripe.Subscription
}

type SubscriptionDeleted struct {
	Subscription stripe.Subscription
}

type InvoiceOutcome struct {
	EventKind EventKind
	Invoice   stripe.Invoice
}

// UnhandledEvent is any provider event outside the known set.
type UnhandledEvent struct {
	Type string
}

func (CheckoutCompleted) Kind() EventKind     { return EventCheckoutCompleted }
func (e SubscriptionChanged) Kind() EventKind { return e.EventKind }
func (SubscriptionDeleted) Kind() EventKind   { return EventSubscriptionDeleted }
func (e InvoiceOutcome) Kind() EventKind      { return e.EventKind }
func (e UnhandledEvent) Kind() EventKind      { return EventKind(e.Type) }

func (CheckoutCompleted) billingEvent()   {}
func (SubscriptionChanged) billingEvent() {}
func (SubscriptionDeleted) billingEvent() {}
func (InvoiceOutcome) billingEvent()      {}
func (UnhandledEvent) billingEvent()      {}

// DecodeBillingEvent turns a verified provider event into a BillingEvent.
func DecodeBillingEvent(evt stripe.Event) (BillingEvent, error) {
	kind := EventKind(evt.Type)
	var raw json.RawMessage
	if evt.Data != nil {
		raw = evt.Data.Raw
	}

	decode := func(v any) error {
		if len(raw) == 0 {
			return fmt.Errorf("%w: event %s has no data object", ErrInvalidEvent, evt.ID)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return nil
	}

	switch kind {
	case EventCheckoutCompleted:
		var e CheckoutCompleted
		if err := decode(&e.Session); err != nil {
			return nil, err
		}
		return e, nil
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		e := SubscriptionChanged{EventKind: kind}
		if err := decode(&e.Subscription); err != nil {
			return nil, err
		}
		return e, nil
	case EventSubscriptionDeleted:
		var e SubscriptionDeleted
		if err := decode(&e.Subscription); err != nil {
			return nil, err
		}
		return e, nil
	case EventInvoicePaid, EventInvoiceFailed:
		e := InvoiceOutcome{EventKind: kind}
		if err := decode(&e.Invoice); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return UnhandledEvent{Type: string(evt.Type)}, nil
	}
}

type WebhookStatus string

const (
	WebhookProcessed WebhookStatus = "processed"
	WebhookDuplicate WebhookStatus = "duplicate"
	WebhookIgnored   WebhookStatus = "ignored"
)

type WebhookResult struct {
	EventID string        `json:"eventId"`
	Type    string        `json:"type"`
	Status  WebhookStatus `json:"status"`
}

// BillingWebhookService applies payment provider events to accounts and the
// ledger. Each event id is applied at most once.
type BillingWebhookService struct {
	store     store.Store
	ledger    *LedgerService
	referrals *ReferralService
	audit     audit.Logger
	cfg       config.StripeConfig
}

func NewBillingWebhookService(st store.Store, ledger *LedgerService, referrals *ReferralService, auditLogger audit.Logger, cfg config.StripeConfig) *BillingWebhookService {
	if auditLogger == nil {
		auditLogger = audit.NewAuditLoggerTo(io.Discard)
	}
	return &BillingWebhookService{
		store:     st,
		ledger:    ledger,
		referrals: referrals,
		audit:     auditLogger,
		cfg:       cfg,
	}
}

// HandleWebhook verifies the Stripe-Signature header against payload and
// applies the event. A signature failure returns ErrSignatureVerification and
// touches nothing.
func (s *BillingWebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if s.cfg.WebhookSecret == "" {
		log.Printf("[WEBHOOK] Rejecting event: webhook secret is not configured")
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrSignatureVerification)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Printf("[WEBHOOK] Signature verification failed: %v", err)
		s.audit.LogWebhook("", "", "REJECTED")
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	return s.Process(ctx, evt)
}

// Process applies a verified event. The event id is recorded in the same
// transaction as its effects, so a redelivered event commits nothing.
func (s *BillingWebhookService) Process(ctx context.Context, evt stripe.Event) (*WebhookResult, error) {
	result := &WebhookResult{EventID: evt.ID, Type: string(evt.Type)}
	if evt.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}

	ev, err := DecodeBillingEvent(evt)
	if err != nil {
		log.Printf("[WEBHOOK] Could not decode %s event %s: %v", evt.Type, evt.ID, err)
		s.audit.LogWebhook(evt.ID, string(evt.Type), "INVALID")
		return nil, err
	}
	if _, ok := ev.(UnhandledEvent); ok {
		log.Printf("[WEBHOOK] Ignoring unhandled event type %s (%s)", evt.Type, evt.ID)
		s.audit.LogWebhook(evt.ID, string(evt.Type), "IGNORED")
		result.Status = WebhookIgnored
		return result, nil
	}

	var (
		entries   []*models.LedgerEntry
		duplicate bool
	)
	err = WithRetry(ctx, s.ledger.retry, func() error {
		entries, duplicate = nil, false
		return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			first, err := tx.MarkEventProcessed(ctx, evt.ID, string(evt.Type))
			if err != nil {
				return fmt.Errorf("mark event processed: %w", err)
			}
			if !first {
				duplicate = true
				return nil
			}
			entries, err = s.apply(ctx, tx, evt.ID, ev)
			return err
		})
	})
	if err != nil {
		log.Printf("[WEBHOOK] Failed to apply %s event %s: %v", evt.Type, evt.ID, err)
		s.audit.LogWebhook(evt.ID, string(evt.Type), "FAILED")
		s.audit.LogError(evt.ID, "", err)
		return nil, err
	}

	if duplicate {
		log.Printf("[WEBHOOK] Event %s already processed, skipping", evt.ID)
		s.audit.LogWebhook(evt.ID, string(evt.Type), "DUPLICATE")
		result.Status = WebhookDuplicate
		return result, nil
	}

	auditEntries(s.audit, entries...)
	s.audit.LogWebhook(evt.ID, string(evt.Type), "PROCESSED")
	result.Status = WebhookProcessed
	return result, nil
}

func (s *BillingWebhookService) apply(ctx context.Context, tx store.Tx, eventID string, ev BillingEvent) ([]*models.LedgerEntry, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return s.applyCheckout(ctx, tx, eventID, e.Session)
	case SubscriptionChanged:
		return nil, s.applySubscriptionChange(ctx, tx, e.Subscription)
	case SubscriptionDeleted:
		return nil, s.applySubscriptionDeleted(ctx, tx, e.Subscription)
	case InvoiceOutcome:
		logInvoice(e)
		return nil, nil
	default:
		log.Printf("[WEBHOOK] No handler for %s", ev.Kind())
		return nil, nil
	}
}

func (s *BillingWebhookService) applyCheckout(ctx context.Context, tx store.Tx, eventID string, session stripe.CheckoutSession) ([]*models.LedgerEntry, error) {
	accountID := session.ClientReferenceID
	if accountID == "" {
		accountID = session.Metadata["userId"]
	}
	if accountID == "" {
		log.Printf("[WEBHOOK] Checkout session %s carries no account reference", session.ID)
		return nil, nil
	}

	paidUSD := decimal.New(session.AmountTotal, -2)
	var entries []*models.LedgerEntry

	switch session.Mode {
	case stripe.CheckoutSessionModeSubscription:
		tier, err := models.ParseTier(session.Metadata["tier"])
		if err != nil || tier == models.TierFree {
			log.Printf("[WEBHOOK] Subscription checkout %s has no paid tier in metadata", session.ID)
			return nil, nil
		}

		update := models.AccountUpdate{SubscriptionTier: &tier}
		if session.Customer != nil && session.Customer.ID != "" {
			customerID := session.Customer.ID
			update.StripeCustomerID = &customerID
		}
		if err := tx.UpdateAccount(ctx, accountID, update); err != nil {
			return nil, fmt.Errorf("update tier for %s: %w", accountID, err)
		}
		log.Printf("[WEBHOOK] Account %s subscribed to %s", accountID, tier)

		if bonus := TierWelcomeBonus(tier); bonus > 0 {
			entry, _, err := s.ledger.CreditTx(ctx, tx, Posting{
				AccountID: accountID,
				Amount:    bonus,
				Type:      models.EntryReward,
				Metadata: models.Metadata{
					models.MetaSource:  models.MetaSourceTierPerk,
					models.MetaTier:    string(tier),
					models.MetaEventID: eventID,
				},
				IdempotencyKey: "stripe:" + eventID,
			})
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}

	case stripe.CheckoutSessionModePayment:
		if session.Metadata["type"] != fatiPurchaseType {
			log.Printf("[WEBHOOK] Payment checkout %s is not a FATI purchase, ignoring", session.ID)
			return nil, nil
		}

		purchase, err := purchaseFromMetadata(session.Metadata)
		if err != nil {
			return nil, fmt.Errorf("checkout %s: %w", session.ID, err)
		}
		if !paidUSD.IsPositive() && purchase.option != nil {
			paidUSD = purchase.option.PriceUSD
		}

		metadata := models.Metadata{
			models.MetaSource:    models.MetaSourceStripe,
			models.MetaEventID:   eventID,
			models.MetaSessionID: session.ID,
		}
		if purchase.option != nil {
			metadata[models.MetaBaseAmount] = purchase.option.BaseAmount
			metadata[models.MetaBonusPercent] = purchase.option.BonusPercent
		}

		entry, _, err := s.ledger.CreditTx(ctx, tx, Posting{
			AccountID:      accountID,
			Amount:         purchase.fati,
			Type:           models.EntryPurchase,
			USDAmount:      decimal.NewNullDecimal(paidUSD),
			Metadata:       metadata,
			IdempotencyKey: "stripe:" + eventID,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		log.Printf("[WEBHOOK] Credited %d FATI to %s for $%s", purchase.fati, accountID, paidUSD.StringFixed(2))

	default:
		log.Printf("[WEBHOOK] Ignoring checkout %s with mode %q", session.ID, session.Mode)
		return nil, nil
	}

	if s.referrals != nil {
		_, entry, err := s.referrals.CompleteOnFirstPurchaseTx(ctx, tx, accountID, paidUSD)
		if err != nil {
			return nil, fmt.Errorf("complete referral for %s: %w", accountID, err)
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

type fatiPurchase struct {
	fati   int64
	option *PurchaseOption
}

// purchaseFromMetadata prefers the catalog total for a known base amount and
// falls back to the fatiAmount the checkout was created with.
func purchaseFromMetadata(md map[string]string) (fatiPurchase, error) {
	if base, err := strconv.ParseInt(md["baseAmount"], 10, 64); err == nil {
		if option, ok := FindOptionByAmount(base); ok {
			return fatiPurchase{fati: option.TotalFati, option: &option}, nil
		}
	}

	fati, err := strconv.ParseInt(md["fatiAmount"], 10, 64)
	if err != nil || fati <= 0 {
		return fatiPurchase{}, fmt.Errorf("%w: fatiAmount %q", ErrInvalidAmount, md["fatiAmount"])
	}
	return fatiPurchase{fati: fati}, nil
}

func (s *BillingWebhookService) applySubscriptionChange(ctx context.Context, tx store.Tx, sub stripe.Subscription) error {
	accountID := sub.Metadata["userId"]
	if accountID == "" {
		log.Printf("[WEBHOOK] Subscription %s carries no account reference", sub.ID)
		return nil
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	tier, ok := TierForPrice(s.cfg, priceID)
	if !ok {
		log.Printf("[WEBHOOK] Subscription %s has unknown price %q", sub.ID, priceID)
		return nil
	}

	if err := s.setTier(ctx, tx, accountID, tier, sub.Customer); err != nil {
		return err
	}
	log.Printf("[WEBHOOK] Account %s tier set to %s by subscription %s", accountID, tier, sub.ID)
	return nil
}

func (s *BillingWebhookService) applySubscriptionDeleted(ctx context.Context, tx store.Tx, sub stripe.Subscription) error {
	accountID := sub.Metadata["userId"]
	if accountID == "" {
		log.Printf("[WEBHOOK] Deleted subscription %s carries no account reference", sub.ID)
		return nil
	}

	if err := s.setTier(ctx, tx, accountID, models.TierFree, nil); err != nil {
		return err
	}
	log.Printf("[WEBHOOK] Account %s downgraded to free", accountID)
	return nil
}

func (s *BillingWebhookService) setTier(ctx context.Context, tx store.Tx, accountID string, tier models.Tier, customer *stripe.Customer) error {
	update := models.AccountUpdate{SubscriptionTier: &tier}
	if customer != nil && customer.ID != "" {
		customerID := customer.ID
		update.StripeCustomerID = &customerID
	}
	err := tx.UpdateAccount(ctx, accountID, update)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("account %s: %w", accountID, err)
	}
	return err
}

func logInvoice(e InvoiceOutcome) {
	customerID := ""
	if e.Invoice.Customer != nil {
		customerID = e.Invoice.Customer.ID
	}
	switch e.EventKind {
	case EventInvoicePaid:
		log.Printf("[WEBHOOK] Invoice %s paid by customer %s", e.Invoice.ID, customerID)
	case EventInvoiceFailed:
		log.Printf("[WEBHOOK] Invoice %s payment failed for customer %s", e.Invoice.ID, customerID)
	}
}
