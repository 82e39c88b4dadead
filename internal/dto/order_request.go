package dto

type CreateOrderRequest struct {
	Items []CreateOrderItem `json:"items"`
}

type CreateOrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ConfirmOrderRequest struct {
	PaymentMethod string         `json:"paymentMethod"`
	Currency      string         `json:"currency"`
	Details       map[string]any `json:"details"`
}
