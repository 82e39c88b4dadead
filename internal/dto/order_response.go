package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"purchases/internal/domain"
)

type BuyerDTO struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type SellerDTO struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Pfp      string `json:"pfp"`
}

type OrderItemResponse struct {
	PublicID    string          `json:"publicId"`
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	ImageSrc    string          `json:"imageSrc"`
	Description string          `json:"description"`
	Seller      SellerDTO       `json:"seller"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type OrderResponse struct {
	PublicID  string              `json:"publicId"`
	MadeBy    BuyerDTO            `json:"madeBy"`
	Items     []OrderItemResponse `json:"items"`
	Status    string              `json:"status"`
	Total     decimal.Decimal     `json:"total"`
	PaymentID *string             `json:"paymentId"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type OrderPageResponse struct {
	Content       []OrderResponse `json:"content"`
	TotalElements int             `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
}

type PaymentStatusResponse struct {
	OrderID   string          `json:"orderId"`
	PaymentID string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

func FromOrder(order *domain.Order) OrderResponse {
	name := order.BuyerName
	if name == "" {
		name = order.BuyerUsername
	}

	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			PublicID:    item.PublicID,
			ProductID:   item.ProductPublicID,
			Name:        item.Name,
			ImageSrc:    item.ImageSrc,
			Description: item.Description,
			Seller: SellerDTO{
				Username: item.SellerUsername,
				Name:     item.SellerName,
				Pfp:      item.SellerPfp,
			},
			Quantity: item.Quantity,
			Price:    item.Price,
			Total:    item.Total,
		}
	}

	return OrderResponse{
		PublicID:  order.PublicID,
		MadeBy:    BuyerDTO{Username: order.BuyerUsername, Name: name},
		Items:     items,
		Status:    string(order.Status),
		Total:     order.Total,
		PaymentID: order.PaymentID,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

func FromOrderPage(page *domain.OrderPage) OrderPageResponse {
	content := make([]OrderResponse, len(page.Orders))
	for i := range page.Orders {
		content[i] = FromOrder(&page.Orders[i])
	}
	return OrderPageResponse{
		Content:       content,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Page:          page.Page,
		Size:          page.Size,
	}
}

// StockCommitFailure is the details payload of a confirmation whose payment
// went through but whose stock could not be committed.
type StockCommitFailure struct {
	OrderID            string `json:"orderId"`
	PaymentID          string `json:"paymentId"`
	Failed             any    `json:"failed"`
	Reason             string `json:"reason"`
	Committed          any    `json:"committed"`
	Compensated        any    `json:"compensated"`
	CompensationFailed any    `json:"compensationFailed"`
}
