package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/carrier"
	"github.com/vasiliy-maslov/storefront-checkout/internal/messaging"
	"github.com/vasiliy-maslov/storefront-checkout/internal/metrics"
	"github.com/vasiliy-maslov/storefront-checkout/internal/notify"
	"github.com/vasiliy-maslov/storefront-checkout/internal/order"
	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

const DefaultTTL = 5 * time.Minute

// OrderSource is the authoritative order and fulfillment data.
type OrderSource interface {
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
}

type Options struct {
	TTL          time.Duration
	PollInterval time.Duration
	SellerEmail  string
	FromName     string
	Now          func() time.Time
}

type Service interface {
	GetLiveStatus(ctx context.Context, trackingNumber, carrierHint, fallbackStatus string) (*Result, error)
	SetManualStatus(ctx context.Context, trackingNumber string, stage carrier.Stage) (*Result, error)
	ClearOverride(ctx context.Context, trackingNumber string) error
	SetCancelled(ctx context.Context, identifier string) error
	RequestCancellation(ctx context.Context, orderID, orderNumber, reason string) (*CancellationOutcome, error)
	TrackOrder(ctx context.Context, orderID string) (*OrderTracking, error)
}

type service struct {
	cache     *Cache
	ledger    *CancellationLedger
	live      LiveClient
	orders    OrderSource
	notifier  notify.Notifier
	publisher messaging.Publisher
	opts      Options
}

func NewService(st store.Store, live LiveClient, orders OrderSource, notifier notify.Notifier, publisher messaging.Publisher, opts Options) Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = messaging.NewNoop()
	}
	return &service{
		cache:     NewCache(st, opts.TTL, opts.Now),
		ledger:    NewCancellationLedger(st),
		live:      live,
		orders:    orders,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts,
	}
}

// GetLiveStatus serves a fresh cache entry when there is one, whether it was
// written by a live lookup, a manual override or a cancellation. Otherwise it
// asks the carrier and caches the answer. Without a live answer the
// platform's fulfillment status is normalized instead; that result is
// flagged IsFallback and never cached.
func (s *service) GetLiveStatus(ctx context.Context, trackingNumber, carrierHint, fallbackStatus string) (*Result, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return s.fallback(trackingNumber, carrier.Unknown, carrierHint, fallbackStatus), nil
	}

	cached, ok, err := s.cache.Get(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if ok {
		metrics.RecordTrackingLookup("cache")
		return cached, nil
	}

	carrierID := carrier.DetectCarrier(carrierHint, trackingNumber)

	if s.live != nil {
		result, err := s.live.Track(ctx, carrierID, trackingNumber)
		switch {
		case err == nil:
			result.TrackingNumber = trackingNumber
			if result.CarrierName == "" {
				result.CarrierName = carrierHint
			}
			if err := s.cache.Put(ctx, trackingNumber, *result); err != nil {
				log.Warn().Err(err).Str("tracking_number", trackingNumber).Msg("service: failed to cache live tracking result")
			}
			metrics.RecordTrackingLookup("live")
			log.Debug().Str("tracking_number", trackingNumber).Str("carrier", string(carrierID)).Str("stage", result.Stage.String()).Msg("service: live tracking result")
			return result, nil
		case errors.Is(err, ErrNoIntegration):
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			log.Warn().Err(err).Str("tracking_number", trackingNumber).Str("carrier", string(carrierID)).Msg("service: live tracking failed, using platform status")
		}
	}

	return s.fallback(trackingNumber, carrierID, carrierHint, fallbackStatus), nil
}

func (s *service) fallback(trackingNumber string, carrierID carrier.ID, carrierHint, status string) *Result {
	metrics.RecordTrackingLookup("fallback")
	result := &Result{
		TrackingNumber: trackingNumber,
		Carrier:        carrierID,
		CarrierName:    carrierHint,
		RawStatus:      status,
		LastUpdate:     s.opts.Now().UTC(),
		Source:         SourceFallback,
		IsFallback:     true,
	}
	result.setStage(platformStage(status))
	return result
}

// platformStage normalizes a platform fulfillment or shipment status.
func platformStage(status string) carrier.Stage {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(order.FulfillmentCancelled), string(order.FulfillmentRestocked):
		return carrier.StageCancelled
	}
	return carrier.NormalizeStatus(status, "")
}

// SetManualStatus overrides the stage of a shipment until the entry expires
// or is cleared.
func (s *service) SetManualStatus(ctx context.Context, trackingNumber string, stage carrier.Stage) (*Result, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	fields := make([]string, 0)
	if trackingNumber == "" {
		fields = append(fields, "tracking_number")
	}
	if !stage.Valid() {
		fields = append(fields, "stage")
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("tracking.set_manual_status", fields...)
	}

	result := Result{
		TrackingNumber: trackingNumber,
		Carrier:        carrier.DetectCarrier("", trackingNumber),
		LastUpdate:     s.opts.Now().UTC(),
		Source:         SourceManual,
	}
	if previous, ok, _ := s.cache.Get(ctx, trackingNumber); ok {
		result.Carrier = previous.Carrier
		result.CarrierName = previous.CarrierName
		result.Events = previous.Events
	}
	result.setStage(stage)

	if err := s.cache.Put(ctx, trackingNumber, result); err != nil {
		return nil, err
	}
	log.Info().Str("tracking_number", trackingNumber).Str("stage", stage.String()).Msg("service: manual tracking status set")
	return &result, nil
}

func (s *service) ClearOverride(ctx context.Context, trackingNumber string) error {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return apperror.Validation("tracking.clear_override", "tracking_number")
	}
	if err := s.cache.Delete(ctx, trackingNumber); err != nil {
		return err
	}
	log.Info().Str("tracking_number", trackingNumber).Msg("service: tracking override cleared")
	return nil
}

// SetCancelled marks a tracking number or an order id as cancelled.
func (s *service) SetCancelled(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return apperror.Validation("tracking.set_cancelled", "identifier")
	}

	result := Result{
		TrackingNumber: identifier,
		Carrier:        carrier.Unknown,
		LastUpdate:     s.opts.Now().UTC(),
		Source:         SourceCancelled,
	}
	result.setStage(carrier.StageCancelled)
	return s.cache.Put(ctx, identifier, result)
}

// RequestCancellation records the request, marks the order cancelled and
// tells the seller. A pending request is returned as is without notifying
// again. With an order source configured, unknown orders are rejected and the
// buyer's email becomes the reply-to address; an unreachable source does not
// block the request. Notification failure never fails the request; the outcome then
// carries a mailto link for the buyer to send by hand.
func (s *service) RequestCancellation(ctx context.Context, orderID, orderNumber, reason string) (*CancellationOutcome, error) {
	const op = "tracking.request_cancellation"

	orderID = strings.TrimSpace(orderID)
	reason = strings.TrimSpace(reason)
	fields := make([]string, 0)
	if orderID == "" {
		fields = append(fields, "order_id")
	}
	if reason == "" {
		fields = append(fields, "reason")
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(op, fields...)
	}

	existing, err := s.ledger.Get(ctx, orderID)
	switch {
	case err == nil && existing.Status == CancellationPending:
		log.Info().Str("order_id", orderID).Str("request_id", existing.ID).Msg("service: cancellation already requested")
		return &CancellationOutcome{Request: *existing, AlreadyRequested: true}, nil
	case err != nil && !errors.Is(err, ErrNoCancellation):
		return nil, err
	}

	orderNumber = strings.TrimSpace(orderNumber)
	contactEmail := ""
	if s.orders != nil {
		o, err := s.orders.GetOrder(ctx, orderID)
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			log.Warn().Str("order_id", orderID).Msg("service: cancellation requested for unknown order")
			return nil, order.ErrOrderNotFound
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("order_id", orderID).Msg("service: order lookup failed, recording cancellation unverified")
		default:
			contactEmail = strings.TrimSpace(o.Email)
			if orderNumber == "" {
				orderNumber = o.Number
			}
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate cancellation id: %w", err)
	}

	req := CancellationRequest{
		ID:           id.String(),
		OrderID:      orderID,
		OrderNumber:  orderNumber,
		ContactEmail: contactEmail,
		Reason:       reason,
		RequestedAt:  s.opts.Now().UTC(),
		Status:       CancellationPending,
	}
	if err := s.ledger.Record(ctx, req); err != nil {
		metrics.RecordOperation("request_cancellation", false)
		log.Error().Err(err).Str("order_id", orderID).Msg("service: failed to record cancellation request")
		return nil, err
	}

	if err := s.SetCancelled(ctx, orderID); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("service: failed to mark order cancelled in tracking cache")
	}

	outcome := &CancellationOutcome{Request: req}
	msg := s.cancellationMessage(req)
	if err := s.sendNotification(ctx, msg); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("service: seller not notified of cancellation, returning mailto fallback")
		outcome.MailtoLink = notify.MailtoLink(msg)
	} else {
		outcome.Notified = true
	}

	s.publishCancellation(ctx, req)
	metrics.RecordOperation("request_cancellation", true)
	log.Info().Str("order_id", orderID).Str("request_id", req.ID).Bool("notified", outcome.Notified).Msg("service: cancellation requested")

	return outcome, nil
}

func (s *service) sendNotification(ctx context.Context, msg notify.Message) error {
	if s.notifier == nil || msg.To == "" {
		metrics.RecordNotification("email", false)
		return notify.ErrNotConfigured
	}
	err := s.notifier.Send(ctx, msg)
	metrics.RecordNotification("email", err == nil)
	return err
}

func (s *service) cancellationMessage(req CancellationRequest) notify.Message {
	label := req.OrderNumber
	if label == "" {
		label = req.OrderID
	}

	var body strings.Builder
	fmt.Fprintf(&body, "A customer has requested cancellation of order #%s.\n\n", label)
	fmt.Fprintf(&body, "Order ID: %s\n", req.OrderID)
	if req.OrderNumber != "" {
		fmt.Fprintf(&body, "Order number: %s\n", req.OrderNumber)
	}
	if req.ContactEmail != "" {
		fmt.Fprintf(&body, "Customer email: %s\n", req.ContactEmail)
	}
	fmt.Fprintf(&body, "Reason: %s\n", req.Reason)
	fmt.Fprintf(&body, "Requested at: %s\n", req.RequestedAt.Format(time.RFC1123))
	fmt.Fprintf(&body, "Request ID: %s", req.ID)

	return notify.Message{
		To:       s.opts.SellerEmail,
		Subject:  "Cancellation request for order #" + label,
		FromName: s.opts.FromName,
		ReplyTo:  req.ContactEmail,
		Body:     body.String(),
	}
}

func (s *service) publishCancellation(ctx context.Context, req CancellationRequest) {
	id, err := uuid.NewV4()
	if err != nil {
		log.Warn().Err(err).Msg("service: failed to generate event id")
		return
	}

	event := messaging.Event{
		ID:         id.String(),
		Type:       messaging.EventCancellationRequested,
		Key:        req.OrderID,
		OccurredAt: s.opts.Now().UTC(),
		Payload:    req,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("order_id", req.OrderID).Msg("service: failed to publish cancellation event")
	}
}

// TrackOrder resolves every shipment of an order and reports the furthest
// stage reached. A cancellation on the platform, a pending cancellation
// request or a cancelled mark for the order overrides the shipment stages.
func (s *service) TrackOrder(ctx context.Context, orderID string) (*OrderTracking, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperror.Validation("tracking.track_order", "order_id")
	}
	if s.orders == nil {
		return nil, apperror.Config("tracking.track_order", "order source is not configured")
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	view := &OrderTracking{
		OrderID:           o.ID,
		OrderNumber:       o.Number,
		Name:              o.Name,
		FinancialStatus:   string(o.FinancialStatus),
		FulfillmentStatus: o.FulfillmentStatus.String(),
		Shipments:         make([]Result, 0, len(o.Fulfillments)),
	}

	stage := carrier.StageOrdered
	if o.FinancialStatus == order.FinancialPaid {
		stage = carrier.StageProcessing
	}

	for _, f := range o.Fulfillments {
		if strings.TrimSpace(f.TrackingNumber) == "" {
			continue
		}
		fallbackStatus := f.ShipmentStatus
		if fallbackStatus == "" {
			fallbackStatus = o.FulfillmentStatus.String()
		}
		result, err := s.GetLiveStatus(ctx, f.TrackingNumber, f.TrackingCompany, fallbackStatus)
		if err != nil {
			return nil, err
		}
		if result.IsFallback && !f.UpdatedAt.IsZero() {
			result.LastUpdate = f.UpdatedAt
		}
		view.Shipments = append(view.Shipments, *result)
		if result.Stage.FurtherThan(stage) {
			stage = result.Stage
		}
	}

	if len(view.Shipments) == 0 && o.FulfillmentStatus != order.FulfillmentUnfulfilled {
		if platform := platformStage(o.FulfillmentStatus.String()); platform.FurtherThan(stage) || platform == carrier.StageCancelled {
			stage = platform
		}
	}

	cancellation, err := s.ledger.Get(ctx, o.ID)
	switch {
	case err == nil:
		view.Cancellation = cancellation
	case !errors.Is(err, ErrNoCancellation):
		log.Warn().Err(err).Str("order_id", o.ID).Msg("service: failed to read cancellation ledger")
	}

	if s.cancelled(ctx, o, view.Cancellation) {
		stage = carrier.StageCancelled
	}

	view.Stage = stage
	view.StageLabel = stage.Label()
	view.StageRank = stage.Rank()
	if !stage.Terminal() && s.opts.PollInterval > 0 {
		view.PollAfterSeconds = int(s.opts.PollInterval / time.Second)
	}

	return view, nil
}

func (s *service) cancelled(ctx context.Context, o *order.Order, req *CancellationRequest) bool {
	if o.CancelledAt != nil || (req != nil && req.Status == CancellationPending) {
		return true
	}
	mark, ok, _ := s.cache.Get(ctx, o.ID)
	return ok && mark.Source == SourceCancelled
}
