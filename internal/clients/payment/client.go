package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"purchases/internal/clients"
)

const StatusCompleted = "COMPLETED"

type Client struct {
	base *clients.Client
}

func NewClient(base *clients.Client) *Client {
	return &Client{base: base}
}

type ChargeRequest struct {
	PurchaseID    string          `json:"purchaseId"`
	Username      string          `json:"username"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	Details       map[string]any  `json:"details,omitempty"`
}

type Charge struct {
	PaymentID string
	Status    string
	Raw       json.RawMessage
}

func (c Charge) Completed() bool {
	return c.Status == StatusCompleted
}

type PaymentStatus struct {
	PaymentID  string          `json:"id"`
	PurchaseID string          `json:"purchaseId"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
}

type paymentPayload struct {
	ID        string `json:"id"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

// Charge asks the payment service to collect the order amount. It is a write:
// a 5xx answer is OutcomeFailed because the charge may or may not exist.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) clients.Result[Charge] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodPost,
		Path:   "/api/payments",
		Body:   req,
	})
	r := clients.Classify[Charge](resp, err, clients.Write)
	if !r.IsOK() {
		return r
	}

	var p paymentPayload
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return clients.Malformed[Charge](resp, "invalid payment response: "+err.Error())
	}
	id := p.ID
	if id == "" {
		id = p.PaymentID
	}
	if id == "" || p.Status == "" {
		return clients.Malformed[Charge](resp, "payment response lacks id or status")
	}

	r.Value = Charge{PaymentID: id, Status: p.Status, Raw: r.Payload}
	return r
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, purchaseID, status string) clients.Result[json.RawMessage] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodPatch,
		Path:   "/api/payments/" + url.PathEscape(purchaseID),
		Body:   map[string]string{"status": status},
	})
	r := clients.Classify[json.RawMessage](resp, err, clients.Write)
	if r.IsOK() {
		r.Value = r.Payload
	}
	return r
}

func (c *Client) GetPaymentStatus(ctx context.Context, purchaseID string) clients.Result[PaymentStatus] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/api/payments",
		Query:  url.Values{"purchaseId": {purchaseID}},
	})
	r := clients.Classify[PaymentStatus](resp, err, clients.Read)
	if !r.IsOK() {
		return r
	}

	// The service answers either a single payment or a list of them.
	var list []PaymentStatus
	if json.Unmarshal(resp.Body, &list) == nil {
		if len(list) == 0 {
			r.Outcome = clients.OutcomeNotFound
			r.Detail = "no payment for purchase " + purchaseID
			return r
		}
		r.Value = list[len(list)-1]
		return r
	}

	var single PaymentStatus
	if err := json.Unmarshal(resp.Body, &single); err != nil || single.Status == "" {
		return clients.Malformed[PaymentStatus](resp, "invalid payment status response")
	}
	r.Value = single
	return r
}
