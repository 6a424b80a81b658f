// Package order implements checkout, the order status machine and payment
// application.
package order

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/events"
	"github.com/celenkdiyari/storefront/internal/settings"
	"github.com/celenkdiyari/storefront/pkg/common"
	"github.com/celenkdiyari/storefront/pkg/metrics"
)

const orderNumberAttempts = 5

// CustomerRequest buyer details of a checkout
type CustomerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address" validate:"required"`
	City     string `json:"city"`
	District string `json:"district"`
	Note     string `json:"note"`
}

// LineRequest a requested line; name and price are taken from the catalog
type LineRequest struct {
	ProductID int64   `json:"productId,string" validate:"required"`
	Variant   string  `json:"variant"`
	Quantity  int     `json:"quantity" validate:"min=1,max=999"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
}

type CheckoutRequest struct {
	Customer       CustomerRequest  `json:"customer"`
	Items          []LineRequest    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  string           `json:"paymentMethod" validate:"required,oneof=cash card bank_transfer"`
	ShippingMethod string           `json:"shippingMethod" validate:"omitempty,oneof=standard express pickup"`
	DeliveryDate   string           `json:"deliveryDate"`
	DeliveryTime   string           `json:"deliveryTime"`
	Recipient      domain.Recipient `json:"recipient"`
	CardMessage    string           `json:"cardMessage"`
	Notes          string           `json:"notes"`
	FromCart       bool             `json:"fromCart"`
}

// PaymentOutcome a verified gateway result
type PaymentOutcome struct {
	OrderNumber string
	Success     bool
	Details     domain.PaymentDetails
}

// Service owns every write to the orders collection
type Service struct {
	db       *gorm.DB
	settings *settings.Service
	events   *events.Bus
	now      func() time.Time
}

func NewService(db *gorm.DB, st *settings.Service, bus *events.Bus) *Service {
	return &Service{db: db, settings: st, events: bus, now: time.Now}
}

func (s *Service) publish(topic string, args ...interface{}) {
	if s.events != nil {
		s.events.Publish(topic, args...)
	}
}

// NewOrderNumber CD + timestamp + 4 random digits
func NewOrderNumber(t time.Time) string {
	return "CD" + t.Format("20060102150405") + common.RandomDigits(4)
}

// Checkout validates the request, prices it from the catalog and writes the
// order together with the customer upsert.
func (s *Service) Checkout(ctx context.Context, req *CheckoutRequest) (*domain.Order, error) {
	req.Customer.Email = strings.ToLower(strings.TrimSpace(req.Customer.Email))
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	if err := validate.Struct(req); err != nil {
		return nil, &ValidationError{Fields: validationFields(err)}
	}

	items, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	var subtotal float64
	for _, it := range items {
		subtotal += it.Price * float64(it.Quantity)
	}
	if min := st.Business.MinOrderAmount; min > 0 && subtotal < min {
		return nil, &ValidationError{Fields: map[string]string{
			"items": fmt.Sprintf("minimum order amount is %.2f", min),
		}}
	}
	shippingFee := st.ShippingFeeFor(subtotal)
	if req.ShippingMethod == domain.ShippingMethodPickup {
		shippingFee = 0
	}

	now := s.now()
	c := req.Customer
	order := &domain.Order{
		ID: common.UUIDint64(),
		Customer: domain.CustomerSnapshot{
			Name:     c.Name,
			Email:    c.Email,
			Phone:    strings.TrimSpace(c.Phone),
			Address:  strings.TrimSpace(c.Address),
			City:     c.City,
			District: c.District,
			Note:     c.Note,
		},
		CustomerName:   c.Name,
		CustomerEmail:  c.Email,
		Items:          items,
		Subtotal:       subtotal,
		ShippingFee:    shippingFee,
		Total:          subtotal + shippingFee,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: common.IfEmptyStr(req.ShippingMethod, domain.ShippingMethodStandard),
		DeliveryDate:   req.DeliveryDate,
		DeliveryTime:   req.DeliveryTime,
		Recipient:      req.Recipient,
		CardMessage:    req.CardMessage,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.uniqueOrderNumber(tx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := tx.Create(order).Error; err != nil {
			return errors.Wrap(err, "create order")
		}
		return upsertCustomer(tx, order)
	})
	if err != nil {
		return nil, err
	}

	metrics.Incr(metrics.OrdersCreated, 1)
	zap.L().Info("order created",
		zap.String("namespace", "order"),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.Total),
		zap.String("payment_method", order.PaymentMethod))
	s.publish(events.TopicOrderCreated, order)
	return order, nil
}

func (s *Service) uniqueOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		number := NewOrderNumber(now)
		var count int64
		if err := tx.Model(&domain.Order{}).Where("order_number = ?", number).Count(&count).Error; err != nil {
			return "", errors.Wrap(err, "check order number")
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", errors.New("could not allocate a unique order number")
}

// priceItems rebuilds the line snapshots from the catalog
func (s *Service) priceItems(ctx context.Context, lines []LineRequest) ([]domain.OrderItem, error) {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	var products []domain.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	fields := map[string]string{}
	items := make([]domain.OrderItem, 0, len(lines))
	for i, l := range lines {
		p, ok := byID[l.ProductID]
		switch {
		case !ok:
			fields[fmt.Sprintf("items[%d].productId", i)] = "unknown product"
			continue
		case !p.InStock:
			fields[fmt.Sprintf("items[%d].productId", i)] = "out of stock"
			continue
		}
		var image string
		if len(p.Images) > 0 {
			image = p.Images[0]
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Variant:   l.Variant,
			Price:     p.Price,
			Quantity:  l.Quantity,
			Image:     image,
		})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return items, nil
}

func upsertCustomer(tx *gorm.DB, o *domain.Order) error {
	var cust domain.Customer
	err := tx.Where("email = ?", o.CustomerEmail).First(&cust).Error
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "query customer")
	}
	at := o.CreatedAt
	snap := o.Customer
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		cust = domain.Customer{
			ID:          common.UUIDint64(),
			Name:        snap.Name,
			Email:       snap.Email,
			Phone:       snap.Phone,
			Address:     snap.Address,
			City:        snap.City,
			District:    snap.District,
			OrderCount:  1,
			TotalSpent:  o.Total,
			LastOrderAt: &at,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		return errors.Wrap(tx.Create(&cust).Error, "create customer")
	}
	return errors.Wrap(tx.Model(&cust).Updates(map[string]interface{}{
		"name":          snap.Name,
		"phone":         snap.Phone,
		"address":       snap.Address,
		"city":          common.IfEmptyStr(snap.City, cust.City),
		"district":      common.IfEmptyStr(snap.District, cust.District),
		"order_count":   gorm.Expr("order_count + ?", 1),
		"total_spent":   gorm.Expr("total_spent + ?", o.Total),
		"last_order_at": at,
		"updated_at":    at,
	}).Error, "update customer")
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	return &o, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var o domain.Order
	err := s.db.WithContext(ctx).Where("order_number = ?", number).First(&o).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	return &o, nil
}

// Track an order seen by its customer; a wrong email is reported as not found
func (s *Service) Track(ctx context.Context, number, email string) (*domain.Order, error) {
	o, err := s.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), o.CustomerEmail) {
		return nil, ErrNotFound
	}
	return o, nil
}

// UpdateStatus moves the order along the status machine. Only status and
// updatedAt are written; setting the current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to domain.OrderStatus) (*domain.Order, error) {
	if !to.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown status"}}
	}
	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		err := tx.Where("id = ?", id).First(&o).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "query order")
		}
		order, from = &o, o.Status
		if o.Status == to {
			return nil
		}
		if !o.Status.CanTransitionTo(to) {
			return &TransitionError{From: o.Status, To: to}
		}
		now := s.now()
		res := tx.Model(&domain.Order{}).Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{"status": to, "updated_at": now})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update order status")
		}
		if res.RowsAffected == 0 {
			return &TransitionError{From: from, To: to}
		}
		o.Status, o.UpdatedAt = to, now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != to {
		zap.L().Info("order status changed",
			zap.String("namespace", "order"),
			zap.String("order_number", order.OrderNumber),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		s.publish(events.TopicOrderStatusChanged, order, from)
	}
	return order, nil
}

func (s *Service) Cancel(ctx context.Context, id int64) (*domain.Order, error) {
	return s.UpdateStatus(ctx, id, domain.OrderStatusCancelled)
}

// UpdatePaymentStatus manual override by an operator
func (s *Service) UpdatePaymentStatus(ctx context.Context, id int64, ps domain.PaymentStatus) (*domain.Order, error) {
	if !ps.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"paymentStatus": "unknown payment status"}}
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{"payment_status": ps, "updated_at": now}).Error
	if err != nil {
		return nil, errors.Wrap(err, "update payment status")
	}
	o.PaymentStatus, o.UpdatedAt = ps, now
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Order{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete order")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPayment records a verified gateway result. It returns false when the
// order was already paid and nothing changed.
func (s *Service) ApplyPayment(ctx context.Context, out PaymentOutcome) (*domain.Order, bool, error) {
	var (
		order   *domain.Order
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		err := tx.Where("order_number = ?", out.OrderNumber).First(&o).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "query order")
		}
		order = &o
		if o.PaymentStatus == domain.PaymentStatusPaid {
			return nil
		}

		details := out.Details
		if details.ReceivedAt.IsZero() {
			details.ReceivedAt = s.now()
		}
		if out.Success {
			o.PaymentStatus = domain.PaymentStatusPaid
			if o.Status == domain.OrderStatusPending {
				o.Status = domain.OrderStatusConfirmed
			}
		} else {
			o.PaymentStatus = domain.PaymentStatusFailed
		}
		o.PaymentDetails = &details
		o.UpdatedAt = s.now()
		err = tx.Model(&o).Select("status", "payment_status", "payment_details", "updated_at").Updates(&o).Error
		if err != nil {
			return errors.Wrap(err, "apply payment")
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if applied && out.Success {
		metrics.Incr(metrics.PaymentsPaid, 1)
		s.publish(events.TopicPaymentReceived, order)
	} else if applied {
		metrics.Incr(metrics.PaymentsFailed, 1)
	}
	return order, applied, nil
}
