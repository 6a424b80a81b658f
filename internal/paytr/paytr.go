// Package paytr talks to the PayTR iFrame API: token requests on the way out,
// signed notification callbacks on the way in.
package paytr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	iplib "github.com/c-robinson/iplib"
	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/order"
)

const (
	Provider        = "paytr"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	defaultTimeout  = 20 * time.Second
	shippingLineTag = "Kargo"
)

var ErrDisabled = stderrors.New("paytr is not configured")

// GatewayError a refused token request
type GatewayError struct {
	Reason string
}

func (e *GatewayError) Error() string {
	return "paytr: " + e.Reason
}

type Client struct {
	cfg     config.PaytrConfig
	allowed []iplib.Net
	timeout time.Duration
}

func NewClient(cfg config.PaytrConfig) (*Client, error) {
	c := &Client{cfg: cfg, timeout: defaultTimeout}
	for _, s := range cfg.AllowedCIDRs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			if ip := net.ParseIP(s); ip != nil && ip.To4() != nil {
				s += "/32"
			} else {
				s += "/128"
			}
		}
		_, n, err := iplib.ParseCIDR(s)
		if err != nil {
			return nil, errors.Wrapf(err, "paytr allowed cidr %q", s)
		}
		c.allowed = append(c.allowed, n)
	}
	return c, nil
}

func (c *Client) Enabled() bool {
	return c.cfg.Enabled()
}

// AllowedSource an empty allow-list accepts every address
func (c *Client) AllowedSource(addr string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range c.allowed {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (c *Client) sign(parts ...string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.MerchantKey))
	for _, p := range parts {
		mac.Write([]byte(p))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Kurus amount in the smallest currency unit
func Kurus(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Basket base64 JSON [[name, price, qty], ...]
func Basket(o *domain.Order) (string, error) {
	lines := make([][]interface{}, 0, len(o.Items)+1)
	for _, it := range o.Items {
		name := it.Name
		if it.Variant != "" {
			name += " (" + it.Variant + ")"
		}
		lines = append(lines, []interface{}{name, strconv.FormatFloat(it.Price, 'f', 2, 64), it.Quantity})
	}
	if o.ShippingFee > 0 {
		lines = append(lines, []interface{}{shippingLineTag, strconv.FormatFloat(o.ShippingFee, 'f', 2, 64), 1})
	}
	data, err := jsoniter.Marshal(lines)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// TokenForm the iFrame API request fields for an order, signed
func (c *Client) TokenForm(o *domain.Order, userIP string) (map[string]string, error) {
	basket, err := Basket(o)
	if err != nil {
		return nil, err
	}
	f := map[string]string{
		"merchant_id":       c.cfg.MerchantID,
		"user_ip":           userIP,
		"merchant_oid":      o.OrderNumber,
		"email":             o.Customer.Email,
		"payment_amount":    strconv.FormatInt(Kurus(o.Total), 10),
		"user_basket":       basket,
		"no_installment":    flag(c.cfg.NoInstallment),
		"max_installment":   strconv.Itoa(c.cfg.MaxInstallment),
		"currency":          c.cfg.Currency,
		"test_mode":         flag(c.cfg.TestMode),
		"debug_on":          flag(c.cfg.Debug),
		"timeout_limit":     strconv.Itoa(c.cfg.TimeoutLimit),
		"merchant_ok_url":   c.cfg.OkURL,
		"merchant_fail_url": c.cfg.FailURL,
		"user_name":         o.Customer.Name,
		"user_address":      o.Customer.Address,
		"user_phone":        o.Customer.Phone,
		"lang":              "tr",
	}
	f["paytr_token"] = c.sign(
		f["merchant_id"], f["user_ip"], f["merchant_oid"], f["email"], f["payment_amount"],
		f["user_basket"], f["no_installment"], f["max_installment"], f["currency"], f["test_mode"],
		c.cfg.MerchantSalt,
	)
	return f, nil
}

type tokenReply struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// TokenResult what the storefront needs to open the payment iframe
type TokenResult struct {
	Token     string `json:"token"`
	IframeURL string `json:"iframeUrl"`
}

// RequestToken asks PayTR for an iframe token for the order
func (c *Client) RequestToken(ctx context.Context, o *domain.Order, userIP string) (*TokenResult, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	form, err := c.TokenForm(o, userIP)
	if err != nil {
		return nil, err
	}
	body := gout.H{}
	for k, v := range form {
		body[k] = v
	}
	var reply tokenReply
	err = gout.POST(c.cfg.Endpoint).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetWWWForm(body).
		BindJSON(&reply).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "paytr token request")
	}
	if reply.Status != StatusSuccess || reply.Token == "" {
		return nil, &GatewayError{Reason: firstNonEmpty(reply.Reason, "status "+reply.Status)}
	}
	return &TokenResult{
		Token:     reply.Token,
		IframeURL: strings.TrimRight(c.cfg.IframeURL, "/") + "/" + reply.Token,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Callback the notification PayTR posts after a payment attempt
type Callback struct {
	MerchantOid      string `form:"merchant_oid" json:"merchant_oid"`
	Status           string `form:"status" json:"status"`
	TotalAmount      string `form:"total_amount" json:"total_amount"`
	Hash             string `form:"hash" json:"hash"`
	FailedReasonCode string `form:"failed_reason_code" json:"failed_reason_code"`
	FailedReasonMsg  string `form:"failed_reason_msg" json:"failed_reason_msg"`
	TestMode         string `form:"test_mode" json:"test_mode"`
	PaymentType      string `form:"payment_type" json:"payment_type"`
	Currency         string `form:"currency" json:"currency"`
	PaymentAmount    string `form:"payment_amount" json:"payment_amount"`
	InstallmentCount string `form:"installment_count" json:"installment_count"`
}

// CallbackHash expected hash of a notification
func (c *Client) CallbackHash(cb *Callback) string {
	return c.sign(cb.MerchantOid, c.cfg.MerchantSalt, cb.Status, cb.TotalAmount)
}

// Verify compares the posted hash in constant time
func (c *Client) Verify(cb *Callback) bool {
	if !c.Enabled() || cb.Hash == "" {
		return false
	}
	return hmac.Equal([]byte(c.CallbackHash(cb)), []byte(cb.Hash))
}

// Payload flattened callback for the audit log, hash excluded
func (cb *Callback) Payload() map[string]string {
	return map[string]string{
		"merchant_oid":       cb.MerchantOid,
		"status":             cb.Status,
		"total_amount":       cb.TotalAmount,
		"failed_reason_code": cb.FailedReasonCode,
		"failed_reason_msg":  cb.FailedReasonMsg,
		"test_mode":          cb.TestMode,
		"payment_type":       cb.PaymentType,
		"currency":           cb.Currency,
		"payment_amount":     cb.PaymentAmount,
		"installment_count":  cb.InstallmentCount,
	}
}

// Outcome converts a verified callback for the order service
func (cb *Callback) Outcome(receivedAt time.Time) (order.PaymentOutcome, error) {
	switch cb.Status {
	case StatusSuccess, StatusFailed:
	default:
		return order.PaymentOutcome{}, fmt.Errorf("unknown paytr status %q", cb.Status)
	}
	total, _ := strconv.ParseInt(cb.TotalAmount, 10, 64)
	amount, _ := strconv.ParseInt(cb.PaymentAmount, 10, 64)
	installments, _ := strconv.Atoi(cb.InstallmentCount)
	return order.PaymentOutcome{
		OrderNumber: cb.MerchantOid,
		Success:     cb.Status == StatusSuccess,
		Details: domain.PaymentDetails{
			Provider:         Provider,
			Status:           cb.Status,
			TotalAmount:      total,
			PaymentAmount:    amount,
			PaymentType:      cb.PaymentType,
			Currency:         cb.Currency,
			InstallmentCount: installments,
			FailedReasonCode: cb.FailedReasonCode,
			FailedReasonMsg:  cb.FailedReasonMsg,
			TestMode:         cb.TestMode == "1",
			ReceivedAt:       receivedAt,
		},
	}, nil
}
