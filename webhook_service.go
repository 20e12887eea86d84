package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/appboost/bridge/domain"
	apperrors "github.com/appboost/bridge/errors"
	"github.com/appboost/bridge/internal/mailer"
	"github.com/appboost/bridge/internal/metrics"
	"github.com/appboost/bridge/internal/stripe"
)

// SubscriptionFetcher re-reads subscription state from the payment provider.
// *stripe.Client satisfies it.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// WebhookService processes billing webhook deliveries: it verifies the
// signature, deduplicates by event id, and applies the subscription
// lifecycle transition for the event type.
type WebhookService struct {
	webhookSecret string
	events        domain.WebhookEventRepository
	subscriptions domain.SubscriptionRepository
	payments      domain.PaymentRepository
	plans         domain.PlanRepository
	fetcher       SubscriptionFetcher
	mail          mailer.Mailer
	tolerance     time.Duration
	now           func() time.Time
}

// NewWebhookService creates a new WebhookService instance. An empty
// webhookSecret switches the receiver into unverified parsing, which is only
// acceptable in development.
func NewWebhookService(
	webhookSecret string,
	events domain.WebhookEventRepository,
	subscriptions domain.SubscriptionRepository,
	payments domain.PaymentRepository,
	plans domain.PlanRepository,
	fetcher SubscriptionFetcher,
	mail mailer.Mailer,
) *WebhookService {
	return &WebhookService{
		webhookSecret: webhookSecret,
		events:        events,
		subscriptions: subscriptions,
		payments:      payments,
		plans:         plans,
		fetcher:       fetcher,
		mail:          mail,
		tolerance:     stripe.DefaultTolerance,
		now:           time.Now,
	}
}

// ProcessWebhook handles one raw webhook delivery. A nil return means the
// delivery is acknowledged (including replays and unhandled event types);
// a validation error means the signature was missing or wrong and nothing
// was written.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if s.webhookSecret != "" {
		if err := stripe.VerifySignature(payload, signatureHeader, s.webhookSecret, s.tolerance, s.now()); err != nil {
			log.Warn().Err(err).Msg("Webhook signature verification failed")
			return apperrors.NewValidation("invalid webhook signature")
		}
	} else {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET not configured, processing unverified webhook payload (unsafe, development only)")
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		return apperrors.NewValidation("malformed webhook payload")
	}

	if event.ID != "" {
		processed, err := s.events.WasProcessed(ctx, domain.WebhookProviderStripe, event.ID)
		if err != nil {
			return apperrors.NewUpstream(fmt.Sprintf("failed to check webhook event: %v", err))
		}
		if processed {
			log.Info().Str("event_id", event.ID).Str("type", event.Type).Msg("Skipping replayed webhook event")
			metrics.IncWebhookDuplicate()
			return nil
		}
	}

	if err := s.dispatch(ctx, event); err != nil {
		return apperrors.NewUpstream(err.Error())
	}

	// Recorded only after all writes succeeded, so a delivery that failed
	// halfway stays retryable.
	if event.ID != "" {
		err := s.events.RecordEvent(ctx, &domain.WebhookEvent{
			Provider:        domain.WebhookProviderStripe,
			ProviderEventID: event.ID,
			EventType:       event.Type,
		})
		if errors.Is(err, domain.ErrDuplicateEvent) {
			log.Info().Str("event_id", event.ID).Msg("Concurrent delivery recorded this event first")
			metrics.IncWebhookDuplicate()
		} else if err != nil {
			// Processing already succeeded; the provider will not retry an
			// acknowledged delivery, so this is not worth a 500.
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to record processed webhook event")
		}
	}
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *stripe.Event) error {
	var err error
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case stripe.EventInvoicePaid:
		err = s.handleInvoicePaid(ctx, event)
	case stripe.EventInvoicePaymentFailed:
		err = s.handleInvoicePaymentFailed(ctx, event)
	case stripe.EventSubscriptionUpdated:
		err = s.handleSubscriptionUpdated(ctx, event)
	case stripe.EventSubscriptionDeleted:
		err = s.handleSubscriptionDeleted(ctx, event)
	default:
		log.Info().Str("type", event.Type).Msg("Unhandled webhook event type")
		metrics.IncWebhookUnhandled()
		return nil
	}
	if err == nil {
		metrics.IncWebhookProcessed(event.Type)
	}
	return err
}

// handleCheckoutCompleted activates the purchased plan: any previous active
// subscription is cancelled, the new row inserted, the charge appended to
// payment history, and a confirmation email attempted.
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	session, err := event.CheckoutSession()
	if err != nil {
		return err
	}

	userID := session.Metadata["user_id"]
	planID := session.Metadata["plan_id"]
	if userID == "" || planID == "" {
		log.Warn().Str("session_id", session.ID).Msg("Checkout session is missing user_id or plan_id metadata, skipping")
		return nil
	}

	quantity := int64(1)
	if q, err := strconv.ParseInt(session.Metadata["quantity"], 10, 64); err == nil && q > 0 {
		quantity = q
	}

	sub := &domain.Subscription{
		UserID:               userID,
		PlanID:               planID,
		PlanName:             session.Metadata["plan_name"],
		StripeCustomerID:     session.Customer,
		StripeSubscriptionID: session.Subscription,
		LifetimeAccess:       session.Metadata["plan_type"] == "ltd",
		Quantity:             quantity,
	}
	if err := s.subscriptions.ActivateReplacing(ctx, sub); err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	payment := &domain.PaymentRecord{
		SubscriptionID:  sub.ID,
		UserID:          userID,
		AmountCents:     session.AmountTotal,
		Currency:        session.Currency,
		Status:          domain.PaymentStatusSucceeded,
		StripeSessionID: session.ID,
	}
	if err := s.payments.InsertPayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}

	// Best effort: a notification failure never fails the state transition.
	if session.CustomerDetails.Email != "" {
		_, err := s.mail.SendPaymentEmail(ctx, &mailer.PaymentEmail{
			To:          session.CustomerDetails.Email,
			Name:        session.CustomerDetails.Name,
			PlanName:    sub.PlanName,
			AmountCents: session.AmountTotal,
			Type:        mailer.TypePaymentConfirmation,
		})
		if err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to send confirmation email")
		}
	}
	return nil
}

// handleInvoicePaid marks a renewal: the subscription returns to active with
// period bounds refreshed from the provider, and the charge is appended to
// payment history.
func (s *WebhookService) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	invoice, err := event.Invoice()
	if err != nil {
		return err
	}
	if invoice.Subscription == "" {
		log.Warn().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription reference, skipping")
		return nil
	}

	sub, err := s.subscriptions.GetByStripeSubscriptionID(ctx, invoice.Subscription)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			log.Warn().Str("stripe_subscription_id", invoice.Subscription).Msg("No subscription for paid invoice, skipping")
			return nil
		}
		return fmt.Errorf("failed to resolve subscription: %w", err)
	}

	periodStart := time.Unix(invoice.PeriodStart, 0).UTC()
	periodEnd := time.Unix(invoice.PeriodEnd, 0).UTC()
	if fetched, err := s.fetcher.GetSubscription(ctx, invoice.Subscription); err == nil {
		periodStart, periodEnd = fetched.PeriodBounds()
	} else {
		log.Warn().Err(err).Str("stripe_subscription_id", invoice.Subscription).Msg("Failed to re-fetch subscription, using invoice period bounds")
	}

	active := domain.SubscriptionStatusActive
	update := domain.SubscriptionUpdate{
		Status:             &active,
		CurrentPeriodStart: &periodStart,
		CurrentPeriodEnd:   &periodEnd,
	}
	if err := s.subscriptions.UpdateSubscription(ctx, sub.ID, update); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	payment := &domain.PaymentRecord{
		SubscriptionID:  sub.ID,
		UserID:          sub.UserID,
		AmountCents:     invoice.AmountPaid,
		Currency:        invoice.Currency,
		Status:          domain.PaymentStatusSucceeded,
		StripeInvoiceID: invoice.ID,
	}
	if err := s.payments.InsertPayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to record renewal payment: %w", err)
	}
	return nil
}

// handleInvoicePaymentFailed moves the subscription to past_due and touches
// nothing else.
func (s *WebhookService) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	invoice, err := event.Invoice()
	if err != nil {
		return err
	}
	if invoice.Subscription == "" {
		return nil
	}

	sub, err := s.subscriptions.GetByStripeSubscriptionID(ctx, invoice.Subscription)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			log.Warn().Str("stripe_subscription_id", invoice.Subscription).Msg("No subscription for failed invoice, skipping")
			return nil
		}
		return fmt.Errorf("failed to resolve subscription: %w", err)
	}

	pastDue := domain.SubscriptionStatusPastDue
	if err := s.subscriptions.UpdateSubscription(ctx, sub.ID, domain.SubscriptionUpdate{Status: &pastDue}); err != nil {
		return fmt.Errorf("failed to mark subscription past_due: %w", err)
	}
	return nil
}

// handleSubscriptionUpdated syncs quantity, period bounds, and status from
// the provider's view of the subscription.
func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	obj, err := event.Subscription()
	if err != nil {
		return err
	}

	sub, err := s.subscriptions.GetByStripeSubscriptionID(ctx, obj.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			log.Warn().Str("stripe_subscription_id", obj.ID).Msg("No subscription for updated event, skipping")
			return nil
		}
		return fmt.Errorf("failed to resolve subscription: %w", err)
	}

	status := domain.SubscriptionStatusActive
	if obj.CancelAtPeriodEnd {
		status = domain.SubscriptionStatusCancelled
	}
	periodStart, periodEnd := obj.PeriodBounds()
	update := domain.SubscriptionUpdate{
		Status:             &status,
		Quantity:           &obj.Quantity,
		CurrentPeriodStart: &periodStart,
		CurrentPeriodEnd:   &periodEnd,
	}
	if err := s.subscriptions.UpdateSubscription(ctx, sub.ID, update); err != nil {
		return fmt.Errorf("failed to sync subscription: %w", err)
	}
	return nil
}

// handleSubscriptionDeleted expires the subscription and drops the user back
// onto the free plan when one exists. A missing free plan is a logged no-op.
func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	obj, err := event.Subscription()
	if err != nil {
		return err
	}

	sub, err := s.subscriptions.GetByStripeSubscriptionID(ctx, obj.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			log.Warn().Str("stripe_subscription_id", obj.ID).Msg("No subscription for deleted event, skipping")
			return nil
		}
		return fmt.Errorf("failed to resolve subscription: %w", err)
	}

	expired := domain.SubscriptionStatusExpired
	if err := s.subscriptions.UpdateSubscription(ctx, sub.ID, domain.SubscriptionUpdate{Status: &expired}); err != nil {
		return fmt.Errorf("failed to expire subscription: %w", err)
	}

	plan, err := s.plans.GetPlanBySlug(ctx, domain.PlanSlugFree)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			log.Warn().Str("user_id", sub.UserID).Msg("No free plan configured, user left without an active subscription")
			metrics.IncFreePlanMissing()
			return nil
		}
		return fmt.Errorf("failed to resolve free plan: %w", err)
	}

	replacement := &domain.Subscription{
		UserID:   sub.UserID,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Quantity: 1,
	}
	if err := s.subscriptions.ActivateReplacing(ctx, replacement); err != nil {
		return fmt.Errorf("failed to activate free subscription: %w", err)
	}
	return nil
}
