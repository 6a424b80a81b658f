package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/domain"
)

type recorder struct {
	mu    sync.Mutex
	mails []Mail
}

func (r *recorder) send(m Mail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mails = append(r.mails, m)
	return nil
}

func newTestNotifier(t *testing.T) (*Notifier, *recorder) {
	n, err := NewNotifier(config.SmtpConfig{Workers: 2})
	require.NoError(t, err)
	t.Cleanup(n.Release)
	rec := &recorder{}
	n.SetSender(rec.send)
	return n, rec
}

func testOrder() *domain.Order {
	return &domain.Order{
		OrderNumber: "CD202401011200001234",
		Customer:    domain.CustomerSnapshot{Name: "Ayşe", Email: "ayse@example.com"},
		Items:       []domain.OrderItem{{Name: "Açılış Çelengi", Price: 250, Quantity: 1}},
		Subtotal:    250,
		Total:       250,
	}
}

func TestOrderCreatedRespectsSettings(t *testing.T) {
	n, rec := newTestNotifier(t)
	st := &domain.SiteSettings{Notifications: domain.NotificationSettings{
		EmailOnNewOrder: true,
		NotifyEmail:     "owner@example.com",
	}}

	n.OrderCreated(st, testOrder())
	n.PaymentReceived(st, testOrder())
	n.Wait()

	require.Len(t, rec.mails, 1)
	assert.Equal(t, "owner@example.com", rec.mails[0].To)
	assert.Contains(t, rec.mails[0].Subject, "CD202401011200001234")
	assert.Contains(t, rec.mails[0].Body, "Açılış Çelengi")
}

func TestDispatchSkipsWithoutRecipient(t *testing.T) {
	n, rec := newTestNotifier(t)
	st := &domain.SiteSettings{Notifications: domain.NotificationSettings{LowStockAlert: true}}
	n.StockLow(st, &domain.InventoryItem{Name: "Kurdele", Quantity: 1, MinStock: 5})
	n.Wait()
	assert.Empty(t, rec.mails)
}

func TestDisabledWithoutSmtpHost(t *testing.T) {
	n, err := NewNotifier(config.SmtpConfig{})
	require.NoError(t, err)
	defer n.Release()
	assert.False(t, n.Enabled())
	n.Dispatch(Mail{To: "x@example.com"})
	n.Wait()
}
