package paytr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/domain"
)

func testConfig() config.PaytrConfig {
	return config.PaytrConfig{
		MerchantID:     "123456",
		MerchantKey:    "key-abc",
		MerchantSalt:   "salt-xyz",
		Endpoint:       "https://www.paytr.com/odeme/api/get-token",
		IframeURL:      "https://www.paytr.com/odeme/guvenli/",
		MaxInstallment: 0,
		Currency:       "TL",
		TestMode:       true,
		TimeoutLimit:   30,
	}
}

func hmacB64(key, msg string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func testOrder() *domain.Order {
	return &domain.Order{
		OrderNumber: "CD202403051407091234",
		Customer: domain.CustomerSnapshot{
			Name: "Ayşe", Email: "ayse@example.com", Phone: "05551112233", Address: "Kadıköy",
		},
		Items: []domain.OrderItem{
			{Name: "Açılış Çelengi", Price: 100, Quantity: 2},
			{Name: "Buket", Variant: "Büyük", Price: 50, Quantity: 1},
		},
		Subtotal:    250,
		ShippingFee: 19.99,
		Total:       269.99,
	}
}

func TestTokenForm(t *testing.T) {
	c, err := NewClient(testConfig())
	require.NoError(t, err)

	f, err := c.TokenForm(testOrder(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "26999", f["payment_amount"])
	assert.Equal(t, "1", f["test_mode"])
	assert.Equal(t, "0", f["no_installment"])

	raw, err := base64.StdEncoding.DecodeString(f["user_basket"])
	require.NoError(t, err)
	var basket [][]interface{}
	require.NoError(t, json.Unmarshal(raw, &basket))
	require.Len(t, basket, 3)
	assert.Equal(t, []interface{}{"Açılış Çelengi", "100.00", float64(2)}, basket[0])
	assert.Equal(t, "Buket (Büyük)", basket[1][0])
	assert.Equal(t, "19.99", basket[2][1])

	expected := hmacB64("key-abc", "123456"+"10.0.0.1"+"CD202403051407091234"+"ayse@example.com"+
		"26999"+f["user_basket"]+"0"+"0"+"TL"+"1"+"salt-xyz")
	assert.Equal(t, expected, f["paytr_token"])
}

func TestRequestToken(t *testing.T) {
	var got map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","token":"tok123"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	c, err := NewClient(cfg)
	require.NoError(t, err)

	res, err := c.RequestToken(context.Background(), testOrder(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "tok123", res.Token)
	assert.Equal(t, "https://www.paytr.com/odeme/guvenli/tok123", res.IframeURL)
	assert.Equal(t, []string{"CD202403051407091234"}, got["merchant_oid"])
	assert.NotEmpty(t, got["paytr_token"])
}

func TestRequestTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failed","reason":"paytr_token gecersiz"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = c.RequestToken(context.Background(), testOrder(), "10.0.0.1")
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "paytr_token gecersiz", gerr.Reason)

	disabled, err := NewClient(config.PaytrConfig{})
	require.NoError(t, err)
	_, err = disabled.RequestToken(context.Background(), testOrder(), "10.0.0.1")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestVerifyCallback(t *testing.T) {
	c, err := NewClient(testConfig())
	require.NoError(t, err)

	cb := &Callback{MerchantOid: "CD202403051407091234", Status: "success", TotalAmount: "26999"}
	cb.Hash = hmacB64("key-abc", cb.MerchantOid+"salt-xyz"+cb.Status+cb.TotalAmount)
	assert.True(t, c.Verify(cb))

	forged := *cb
	forged.TotalAmount = "1"
	assert.False(t, c.Verify(&forged))

	forged = *cb
	forged.Hash = ""
	assert.False(t, c.Verify(&forged))
}

func TestCallbackOutcome(t *testing.T) {
	at := time.Now()
	cb := &Callback{
		MerchantOid: "CD1", Status: "failed", TotalAmount: "26999",
		FailedReasonCode: "2", FailedReasonMsg: "yetersiz bakiye", TestMode: "1",
	}
	out, err := cb.Outcome(at)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, int64(26999), out.Details.TotalAmount)
	assert.Equal(t, "yetersiz bakiye", out.Details.FailedReasonMsg)
	assert.True(t, out.Details.TestMode)

	cb.Status = "weird"
	_, err = cb.Outcome(at)
	assert.Error(t, err)
}

func TestAllowedSource(t *testing.T) {
	open, err := NewClient(testConfig())
	require.NoError(t, err)
	assert.True(t, open.AllowedSource("203.0.113.9"))

	cfg := testConfig()
	cfg.AllowedCIDRs = []string{"193.192.59.0/24", "10.1.1.1"}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.True(t, c.AllowedSource("193.192.59.14"))
	assert.True(t, c.AllowedSource("10.1.1.1"))
	assert.False(t, c.AllowedSource("10.1.1.2"))
	assert.False(t, c.AllowedSource("garbage"))

	cfg.AllowedCIDRs = []string{"not-a-cidr/99"}
	_, err = NewClient(cfg)
	assert.Error(t, err)
}
