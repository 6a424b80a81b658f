package domain

import (
	"time"
)

// OrderStatus lifecycle of an order, advanced by admin actions
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderFlow is the forward chain; cancelled sits outside it
var orderFlow = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// OrderStatuses every known status, cancelled last
var OrderStatuses = append(append([]OrderStatus{}, orderFlow...), OrderStatusCancelled)

func (s OrderStatus) rank() int {
	for i, v := range orderFlow {
		if v == s {
			return i
		}
	}
	return -1
}

// IsValid checks if the order status is known
func (s OrderStatus) IsValid() bool {
	return s == OrderStatusCancelled || s.rank() >= 0
}

// IsTerminal delivered and cancelled orders accept no further transitions
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo only forward moves along the chain are allowed, cancelled is
// reachable from every non terminal state.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if !s.IsValid() || !to.IsValid() || s.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return to.rank() > s.rank()
}

// PaymentStatus state of the money side of an order
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
)

var PaymentMethods = []string{PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer}

const (
	ShippingMethodStandard = "standard"
	ShippingMethodExpress  = "express"
	ShippingMethodPickup   = "pickup"
)

var ShippingMethods = []string{ShippingMethodStandard, ShippingMethodExpress, ShippingMethodPickup}

// CustomerSnapshot customer data copied into the order at checkout time
type CustomerSnapshot struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	District string `json:"district"`
	Note     string `json:"note,omitempty"`
}

// Recipient the person the wreath is delivered to
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// OrderItem denormalized line item
type OrderItem struct {
	ProductID int64   `json:"productId,string"`
	Name      string  `json:"name"`
	Variant   string  `json:"variant,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

// PaymentDetails filled by the payment gateway callback
type PaymentDetails struct {
	Provider         string    `json:"provider"`
	Status           string    `json:"status"`
	TotalAmount      int64     `json:"totalAmount"` // kuruş
	PaymentAmount    int64     `json:"paymentAmount"`
	PaymentType      string    `json:"paymentType"`
	Currency         string    `json:"currency"`
	InstallmentCount int       `json:"installmentCount"`
	FailedReasonCode string    `json:"failedReasonCode,omitempty"`
	FailedReasonMsg  string    `json:"failedReasonMsg,omitempty"`
	TestMode         bool      `json:"testMode"`
	ReceivedAt       time.Time `json:"receivedAt"`
}

type Order struct {
	ID             int64            `json:"id,string" gorm:"primaryKey"`
	OrderNumber    string           `json:"orderNumber" gorm:"size:32;uniqueIndex"`
	Customer       CustomerSnapshot `json:"customer" gorm:"type:text;serializer:json"`
	CustomerName   string           `json:"-" gorm:"size:200;index"`
	CustomerEmail  string           `json:"-" gorm:"size:200;index"`
	Items          []OrderItem      `json:"items" gorm:"type:text;serializer:json"`
	Subtotal       float64          `json:"subtotal"`
	ShippingFee    float64          `json:"shippingFee"`
	Total          float64          `json:"total"`
	Status         OrderStatus      `json:"status" gorm:"size:20;index"`
	PaymentStatus  PaymentStatus    `json:"paymentStatus" gorm:"size:20;index"`
	PaymentMethod  string           `json:"paymentMethod" gorm:"size:20"`
	ShippingMethod string           `json:"shippingMethod" gorm:"size:20"`
	DeliveryDate   string           `json:"deliveryDate"`
	DeliveryTime   string           `json:"deliveryTime"`
	Recipient      Recipient        `json:"recipient" gorm:"type:text;serializer:json"`
	CardMessage    string           `json:"cardMessage" gorm:"type:text"`
	Notes          string           `json:"notes" gorm:"type:text"`
	PaymentDetails *PaymentDetails  `json:"paymentDetails,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt      time.Time        `json:"createdAt" gorm:"index"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// ItemCount total units in the order
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// PaymentLog one received gateway callback, kept as an audit trail
type PaymentLog struct {
	ID          int64             `json:"id,string" gorm:"primaryKey"`
	OrderNumber string            `json:"orderNumber" gorm:"size:32;index"`
	Provider    string            `json:"provider" gorm:"size:20"`
	Status      string            `json:"status" gorm:"size:20"`
	TotalAmount int64             `json:"totalAmount"`
	HashValid   bool              `json:"hashValid"`
	RemoteAddr  string            `json:"remoteAddr" gorm:"size:64"`
	Result      string            `json:"result" gorm:"size:64"`
	Payload     map[string]string `json:"payload" gorm:"type:text;serializer:json"`
	CreatedAt   time.Time         `json:"createdAt" gorm:"index"`
}

func (PaymentLog) TableName() string {
	return "payment_logs"
}
