// Package notify sends shop owner mail for order and payment events.
package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/domain"
)

// Mail a rendered message
type Mail struct {
	To      string
	Subject string
	Body    string
}

// SendFunc delivers one mail
type SendFunc func(m Mail) error

// Notifier renders mails and delivers them on a bounded worker pool
type Notifier struct {
	cfg  config.SmtpConfig
	pool *ants.Pool
	send SendFunc
	wg   sync.WaitGroup

	custom bool
}

func NewNotifier(cfg config.SmtpConfig) (*Notifier, error) {
	size := cfg.Workers
	if size <= 0 {
		size = 4
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	n := &Notifier{cfg: cfg, pool: pool}
	n.send = n.smtpSend
	return n, nil
}

// SetSender replaces the delivery function
func (n *Notifier) SetSender(fn SendFunc) {
	n.send = fn
	n.custom = true
}

// Enabled smtp host configured or a custom sender installed
func (n *Notifier) Enabled() bool {
	return n.cfg.Host != "" || n.custom
}

func (n *Notifier) smtpSend(m Mail) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.cfg.From)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)
	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	return d.DialAndSend(msg)
}

// Dispatch queues a mail, failures are only logged
func (n *Notifier) Dispatch(m Mail) {
	if !n.Enabled() || strings.TrimSpace(m.To) == "" {
		return
	}
	n.wg.Add(1)
	err := n.pool.Submit(func() {
		defer n.wg.Done()
		if err := n.send(m); err != nil {
			zap.L().Error("send mail failed",
				zap.String("namespace", "notify"),
				zap.String("to", m.To),
				zap.String("subject", m.Subject),
				zap.Error(err))
		}
	})
	if err != nil {
		n.wg.Done()
		zap.L().Error("mail pool submit failed", zap.String("namespace", "notify"), zap.Error(err))
	}
}

// Wait blocks until queued mails are handled
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) Release() {
	n.Wait()
	n.pool.Release()
}

// OrderCreated notify the owner about a new order
func (n *Notifier) OrderCreated(st *domain.SiteSettings, o *domain.Order) {
	if st == nil || !st.Notifications.EmailOnNewOrder {
		return
	}
	n.Dispatch(Mail{
		To:      st.Notifications.NotifyEmail,
		Subject: fmt.Sprintf("Yeni sipariş %s", o.OrderNumber),
		Body:    renderOrder(o),
	})
}

// PaymentReceived notify the owner about a paid order
func (n *Notifier) PaymentReceived(st *domain.SiteSettings, o *domain.Order) {
	if st == nil || !st.Notifications.EmailOnPayment {
		return
	}
	n.Dispatch(Mail{
		To:      st.Notifications.NotifyEmail,
		Subject: fmt.Sprintf("Ödeme alındı %s", o.OrderNumber),
		Body:    renderOrder(o),
	})
}

// StockLow notify the owner about an item under its minimum
func (n *Notifier) StockLow(st *domain.SiteSettings, item *domain.InventoryItem) {
	if st == nil || !st.Notifications.LowStockAlert {
		return
	}
	n.Dispatch(Mail{
		To:      st.Notifications.NotifyEmail,
		Subject: fmt.Sprintf("Düşük stok: %s", item.Name),
		Body: fmt.Sprintf("%s (%s) stok %d %s, minimum %d\n",
			item.Name, item.Sku, item.Quantity, item.Unit, item.MinStock),
	})
}

func renderOrder(o *domain.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sipariş: %s\n", o.OrderNumber)
	fmt.Fprintf(&sb, "Müşteri: %s <%s> %s\n", o.Customer.Name, o.Customer.Email, o.Customer.Phone)
	fmt.Fprintf(&sb, "Adres: %s\n", o.Customer.Address)
	if o.DeliveryDate != "" {
		fmt.Fprintf(&sb, "Teslimat: %s %s\n", o.DeliveryDate, o.DeliveryTime)
	}
	sb.WriteString("\n")
	for _, it := range o.Items {
		fmt.Fprintf(&sb, "- %s %s x%d  %.2f\n", it.Name, it.Variant, it.Quantity, it.Price*float64(it.Quantity))
	}
	fmt.Fprintf(&sb, "\nAra toplam: %.2f\nKargo: %.2f\nToplam: %.2f\n", o.Subtotal, o.ShippingFee, o.Total)
	fmt.Fprintf(&sb, "Ödeme: %s (%s)\n", o.PaymentMethod, o.PaymentStatus)
	return sb.String()
}
