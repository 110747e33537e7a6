package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	catalogdomain "github.com/smallbiznis/orderbridge/internal/catalog/domain"
	"github.com/smallbiznis/orderbridge/internal/config"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	"github.com/smallbiznis/orderbridge/internal/pos"
	promodomain "github.com/smallbiznis/orderbridge/internal/promo/domain"
	"github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// receiptSource tags receipts created by the bridge in the POS.
const receiptSource = "online"

var errZeroMapped = errors.New("no order lines mapped to catalog items")

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Ledger  ledgerdomain.Service
	Catalog catalogdomain.Service
	Promo   promodomain.Service
	POS     pos.Client
	Source  ordersource.Client
	Metrics *metrics.Metrics
}

type Service struct {
	cfg     config.Config
	log     *zap.Logger
	ledger  ledgerdomain.Service
	catalog catalogdomain.Service
	promo   promodomain.Service
	pos     pos.Client
	source  ordersource.Client
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Cfg,
		log:     p.Log.Named("reconciler.service"),
		ledger:  p.Ledger,
		catalog: p.Catalog,
		promo:   p.Promo,
		pos:     p.POS,
		source:  p.Source,
		metrics: p.Metrics,
	}
}

func (s *Service) Process(ctx context.Context, order ordersource.Order, raw []byte) (*domain.Result, error) {
	orderID := order.ID.String()
	log := logger.WithOrder(s.log, orderID)

	if order.IsReservation() {
		s.upsertCustomer(ctx, order, log)
		s.metrics.RecordOrder(string(domain.EventTableReservation))
		return &domain.Result{
			Success:   true,
			Message:   "table reservation acknowledged; no receipt created",
			OrderID:   orderID,
			EventType: domain.EventTableReservation,
		}, nil
	}

	if !order.IsAccepted() {
		log.Info("order not accepted, ignoring", zap.String("status", order.Status))
		s.metrics.RecordOrder(string(domain.EventOrderIgnored))
		return &domain.Result{
			Success:   true,
			Message:   fmt.Sprintf("order status %q acknowledged without processing", order.Status),
			OrderID:   orderID,
			EventType: domain.EventOrderIgnored,
		}, nil
	}

	rec, created, err := s.ledger.Register(ctx, ledgerdomain.RegisterRequest{
		OrderID:       orderID,
		OrderType:     order.Type,
		CustomerName:  order.CustomerName(),
		CustomerPhone: order.ClientPhone,
		CustomerEmail: order.ClientEmail,
		TotalPrice:    order.TotalPrice,
		RawOrder:      raw,
	})
	if err != nil {
		return nil, err
	}

	if !created {
		if result := s.handleReplay(ctx, order, rec, log); result != nil {
			return result, nil
		}
		// Fall through: the record is retryable or its receipt is gone.
	}

	return s.drive(ctx, order, rec, log)
}

func (s *Service) Retry(ctx context.Context, orderID string) (*domain.Result, error) {
	rec, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	switch rec.Status {
	case ledgerdomain.StatusProcessed, ledgerdomain.StatusDuplicate:
		return nil, domain.ErrOrderNotRetryable
	}
	if !s.ledger.CanRetry(rec) {
		return nil, domain.ErrRetryExhausted
	}

	order, err := s.rehydrate(ctx, rec)
	if err != nil {
		return nil, err
	}

	log := logger.WithOrder(s.log, orderID)
	log.Info("retrying order", zap.Int("attempts", rec.Attempts))
	s.metrics.RecordRetry()
	return s.drive(ctx, *order, rec, log)
}

// rehydrate rebuilds the order from the stored payload, falling back to
// the order source API when the payload is missing.
func (s *Service) rehydrate(ctx context.Context, rec *ledgerdomain.OrderRecord) (*ordersource.Order, error) {
	if len(rec.RawOrder) > 0 {
		var order ordersource.Order
		if err := json.Unmarshal(rec.RawOrder, &order); err == nil && !order.ID.IsZero() {
			return &order, nil
		}
	}
	order, err := s.source.GetOrder(ctx, rec.OrderID)
	if err != nil {
		if errors.Is(err, ordersource.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// handleReplay decides what a webhook replay for a known order means.
// A nil return lets the caller attempt receipt creation again.
func (s *Service) handleReplay(ctx context.Context, order ordersource.Order, rec *ledgerdomain.OrderRecord, log *zap.Logger) *domain.Result {
	orderID := rec.OrderID

	switch rec.Status {
	case ledgerdomain.StatusProcessed, ledgerdomain.StatusDuplicate:
		if rec.POSReceiptID == "" {
			return nil
		}
		receipt, err := s.pos.GetReceiptByID(ctx, rec.POSReceiptID)
		if err != nil {
			// An ambiguous verification counts as not found: the order
			// re-enters the pipeline instead of being acknowledged on a
			// receipt nobody confirmed.
			log.Warn("receipt verification unavailable, re-driving order", zap.Error(err))
			return nil
		}
		if receipt != nil {
			if rec.Status == ledgerdomain.StatusProcessed {
				if _, err := s.ledger.MarkDuplicate(ctx, orderID); err != nil {
					log.Warn("failed to flag duplicate", zap.Error(err))
				}
			}
			s.metrics.RecordOrder(string(domain.EventDuplicateOrder))
			return &domain.Result{
				Success:       true,
				Message:       "order already processed",
				OrderID:       orderID,
				EventType:     domain.EventDuplicateOrder,
				ReceiptNumber: rec.POSReceiptNumber,
			}
		}
		log.Warn("recorded receipt no longer exists in pos, recreating",
			zap.String("receipt_id", rec.POSReceiptID),
		)
		return nil

	case ledgerdomain.StatusPending:
		if rec.POSReceiptID == "" {
			return nil
		}
		// A crash may have landed between receipt creation and the
		// ledger update. Backfill instead of double-charging.
		receipt, err := s.pos.GetReceiptByID(ctx, rec.POSReceiptID)
		if err == nil && receipt != nil {
			if _, err := s.ledger.MarkProcessed(ctx, orderID, receipt.ID, receipt.ReceiptNumber); err != nil {
				log.Warn("failed to backfill processed status", zap.Error(err))
			}
			s.metrics.RecordOrder(string(domain.EventDuplicateOrder))
			return &domain.Result{
				Success:       true,
				Message:       "receipt already existed; ledger backfilled",
				OrderID:       orderID,
				EventType:     domain.EventDuplicateOrder,
				ReceiptNumber: receipt.ReceiptNumber,
			}
		}
		return nil

	case ledgerdomain.StatusFailed:
		if !s.ledger.CanRetry(rec) {
			s.metrics.RecordOrder("retry_exhausted")
			return &domain.Result{
				Success:   false,
				Message:   "order failed and retry attempts are exhausted",
				OrderID:   orderID,
				EventType: domain.EventOrderFailed,
			}
		}
		return nil
	}
	return nil
}

// drive attempts receipt creation and records the outcome in the ledger.
func (s *Service) drive(ctx context.Context, order ordersource.Order, rec *ledgerdomain.OrderRecord, log *zap.Logger) (*domain.Result, error) {
	orderID := rec.OrderID

	if rec.Status == ledgerdomain.StatusFailed {
		updated, err := s.ledger.MarkPending(ctx, orderID)
		if err != nil {
			return nil, err
		}
		rec = updated
	}

	outcome, err := s.createReceipt(ctx, order, log)
	if err != nil {
		if _, markErr := s.ledger.MarkFailed(ctx, orderID, err.Error()); markErr != nil {
			log.Error("failed to record failure", zap.Error(markErr))
		}
		s.metrics.RecordOrder(string(domain.EventOrderFailed))
		result := &domain.Result{
			Success:   false,
			Message:   err.Error(),
			OrderID:   orderID,
			EventType: domain.EventOrderFailed,
		}
		if outcome != nil {
			result.Mapping = &outcome.mapping
		}
		return result, nil
	}

	if _, err := s.ledger.MarkProcessed(ctx, orderID, outcome.receipt.ID, outcome.receipt.ReceiptNumber); err != nil {
		log.Error("receipt created but ledger update failed", zap.Error(err))
		return nil, err
	}
	if lines, err := json.Marshal(outcome.lines); err == nil {
		if err := s.ledger.SetLineItems(ctx, orderID, lines); err != nil {
			log.Warn("failed to store receipt lines", zap.Error(err))
		}
	}

	s.metrics.RecordOrder(string(domain.EventOrderProcessed))
	log.Info("receipt created",
		zap.String("receipt_number", outcome.receipt.ReceiptNumber),
		zap.Int("mapped_items", outcome.mapping.MappedItems),
		zap.Int("unmapped_items", outcome.mapping.UnmappedItems),
	)
	return &domain.Result{
		Success:       true,
		Message:       "receipt created",
		OrderID:       orderID,
		EventType:     domain.EventOrderProcessed,
		ReceiptNumber: outcome.receipt.ReceiptNumber,
		Mapping:       &outcome.mapping,
	}, nil
}

type receiptOutcome struct {
	receipt *pos.Receipt
	lines   []pos.ReceiptLine
	mapping domain.MappingSummary
}

func (s *Service) createReceipt(ctx context.Context, order ordersource.Order, log *zap.Logger) (*receiptOutcome, error) {
	tenderID, namedTender := s.detectTender(ctx, order, log)
	skipAutoCreate := namedTender && s.cfg.SkipAutoCreateOnNamedTender

	products, promos := partition(order.Items)

	outcome := &receiptOutcome{}
	outcome.mapping.TotalItems = len(products)

	var notes []string
	for _, item := range products {
		match, err := s.catalog.Resolve(ctx, catalogdomain.ResolveRequest{
			Name:              item.Name,
			Price:             item.Price,
			Options:           toCatalogOptions(item.Options),
			DisableAutoCreate: skipAutoCreate,
		})
		if err != nil {
			if errors.Is(err, catalogdomain.ErrNoMapping) || errors.Is(err, catalogdomain.ErrItemCreationFailed) {
				log.Warn("order line unmapped", zap.String("item", item.Name), zap.Error(err))
				outcome.mapping.UnmappedItems++
				outcome.mapping.UnmappedNames = append(outcome.mapping.UnmappedNames, item.Name)
				continue
			}
			return nil, err
		}

		outcome.mapping.MappedItems++
		outcome.lines = append(outcome.lines, pos.ReceiptLine{
			VariantID:  match.Entry.POSVariantID,
			Quantity:   quantity(item),
			UnitPrice:  unitPrice(item),
			TotalPrice: item.TotalItemPrice,
			LineNote:   lineNote(item),
		})
	}

	if outcome.mapping.TotalItems > 0 && outcome.mapping.MappedItems == 0 {
		return outcome, fmt.Errorf("%w: %s", errZeroMapped, strings.Join(outcome.mapping.UnmappedNames, ", "))
	}
	if outcome.mapping.UnmappedItems > 0 {
		notes = append(notes, "Unmapped items: "+strings.Join(outcome.mapping.UnmappedNames, ", "))
	}

	var discounts []pos.ReceiptDiscount
	for _, p := range promos {
		promoRec, err := s.promo.Resolve(ctx, p)
		if err != nil {
			log.Warn("promo not applied", zap.String("promo_id", p.PromoID), zap.Error(err))
			notes = append(notes, "Promotion not applied: "+p.Name)
			continue
		}
		discounts = append(discounts, pos.ReceiptDiscount{DiscountID: promoRec.POSDiscountID})
	}

	// The delivery fee rides on a regular catalog item so totals stay
	// honest; without a mapping it lands in the note instead.
	if fee := deliveryFee(order); fee > 0 {
		if match, err := s.catalog.Lookup(ctx, s.cfg.DeliveryFeeItemName, ""); err == nil {
			outcome.lines = append(outcome.lines, pos.ReceiptLine{
				VariantID: match.Entry.POSVariantID,
				Quantity:  1,
				UnitPrice: fee,
			})
		} else {
			log.Warn("delivery fee item not mapped", zap.Float64("fee", fee))
			notes = append(notes, fmt.Sprintf("Delivery fee %.2f not itemized", fee))
		}
	}

	customerID := s.upsertCustomer(ctx, order, log)

	var payments []pos.ReceiptPayment
	if tenderID != "" {
		payments = append(payments, pos.ReceiptPayment{
			PaymentTypeID: tenderID,
			Money:         order.TotalPrice,
		})
	}

	receipt, err := s.pos.CreateReceipt(ctx, pos.CreateReceiptRequest{
		Order:          order.ID.String(),
		Source:         receiptSource,
		ReceiptDate:    order.AcceptedAt,
		LineItems:      outcome.lines,
		Payments:       payments,
		TotalDiscounts: discounts,
		CustomerID:     customerID,
		Note:           receiptNote(order, notes),
	})
	if err != nil {
		return outcome, fmt.Errorf("receipt creation failed: %v", err)
	}

	outcome.receipt = receipt
	return outcome, nil
}

// detectTender picks the payment type for the receipt. Pickup orders can
// carry the tender name in the client first name; matching one disables
// item auto-creation for the order so test payloads cannot pollute the
// catalog.
func (s *Service) detectTender(ctx context.Context, order ordersource.Order, log *zap.Logger) (tenderID string, named bool) {
	tenders, err := s.pos.ListTenderTypes(ctx)
	if err != nil {
		log.Warn("tender types unavailable", zap.Error(err))
		return "", false
	}

	if s.cfg.TenderFirstNameMatch && order.Type == ordersource.OrderTypePickup {
		firstName := strings.TrimSpace(order.ClientFirstName)
		if firstName != "" {
			for _, t := range tenders {
				if strings.EqualFold(strings.TrimSpace(t.Name), firstName) {
					log.Info("tender matched client first name", zap.String("tender", t.Name))
					return t.ID, true
				}
			}
		}
	}

	for _, t := range tenders {
		if strings.EqualFold(t.Type, pos.TenderCash) {
			return t.ID, false
		}
	}
	if len(tenders) > 0 {
		return tenders[0].ID, false
	}
	return "", false
}

func (s *Service) upsertCustomer(ctx context.Context, order ordersource.Order, log *zap.Logger) string {
	cust, err := s.pos.FindOrCreateCustomer(ctx, pos.Customer{
		Name:    order.CustomerName(),
		Phone:   order.ClientPhone,
		Email:   order.ClientEmail,
		Address: order.ClientAddress,
	})
	if err != nil {
		log.Warn("customer upsert failed", zap.Error(err))
		return ""
	}
	return cust.ID
}

// partition splits the order lines into sellable products and cart-level
// promotions. Promo headers carry the discount; lines hanging off a
// header belong to the package and never resolve on their own.
func partition(items []ordersource.Item) (products []ordersource.Item, promos []promodomain.ResolveRequest) {
	headerIDs := make(map[string]struct{})
	for _, item := range items {
		if item.Type == ordersource.ItemTypePromoCart ||
			(item.Type == ordersource.ItemTypePromoItem && item.ParentID.IsZero()) {
			headerIDs[item.ID.String()] = struct{}{}
		}
	}

	for _, item := range items {
		if !item.ParentID.IsZero() {
			if _, ok := headerIDs[item.ParentID.String()]; ok {
				continue
			}
		}
		switch {
		case item.Type == ordersource.ItemTypeDeliveryFee:
			// Folded in from the order totals.
		case item.Type == ordersource.ItemTypePromoCart:
			promos = append(promos, promoRequest(item))
		case item.Type == ordersource.ItemTypePromoItem && item.ParentID.IsZero():
			if item.CartDiscount != 0 || item.CartDiscountRate != 0 {
				promos = append(promos, promoRequest(item))
			} else if item.Price != 0 {
				products = append(products, item)
			}
		default:
			products = append(products, item)
		}
	}
	return products, promos
}

// promoRequest keys the promotion by its campaign type id so repeated
// orders reuse one POS discount; ad-hoc promos fall back to the line id.
func promoRequest(item ordersource.Item) promodomain.ResolveRequest {
	promoID := item.TypeID.String()
	if promoID == "" {
		promoID = item.ID.String()
	}
	return promodomain.ResolveRequest{
		PromoID:          promoID,
		Name:             item.Name,
		CartDiscount:     item.CartDiscount,
		CartDiscountRate: item.CartDiscountRate,
	}
}

func toCatalogOptions(options []ordersource.ItemOption) []catalogdomain.Option {
	out := make([]catalogdomain.Option, 0, len(options))
	for _, opt := range options {
		out = append(out, catalogdomain.Option{
			Name:      opt.Name,
			GroupName: opt.GroupName,
			Price:     opt.Price,
		})
	}
	return out
}

func quantity(item ordersource.Item) int {
	if item.Quantity <= 0 {
		return 1
	}
	return item.Quantity
}

// unitPrice always comes from the order source payload, options
// included, so the receipt shows what the customer agreed to pay.
func unitPrice(item ordersource.Item) float64 {
	price := item.Price
	for _, opt := range item.Options {
		price += opt.Price
	}
	return price
}

func lineNote(item ordersource.Item) string {
	var parts []string
	for _, opt := range item.Options {
		name := strings.TrimSpace(opt.Name)
		if name != "" {
			parts = append(parts, name)
		}
	}
	if instructions := strings.TrimSpace(item.Instructions); instructions != "" {
		parts = append(parts, instructions)
	}
	return strings.Join(parts, ", ")
}

func deliveryFee(order ordersource.Order) float64 {
	fee := order.DeliveryFee
	for _, item := range order.Items {
		if item.Type == ordersource.ItemTypeDeliveryFee && item.Price > fee {
			fee = item.Price
		}
	}
	if order.Type != ordersource.OrderTypeDelivery && order.DeliveryFee == 0 && fee == 0 {
		return 0
	}
	return fee
}

func receiptNote(order ordersource.Order, extra []string) string {
	parts := []string{
		"Order #" + order.ID.String(),
		"Customer: " + order.CustomerName(),
	}
	if phone := strings.TrimSpace(order.ClientPhone); phone != "" {
		parts = append(parts, "Phone: "+phone)
	}
	if addr := strings.TrimSpace(order.ClientAddress); addr != "" && order.Type == ordersource.OrderTypeDelivery {
		parts = append(parts, "Address: "+addr)
	}
	if instructions := strings.TrimSpace(order.Instructions); instructions != "" {
		parts = append(parts, "Instructions: "+instructions)
	}
	parts = append(parts, extra...)
	return strings.Join(parts, "\n")
}
