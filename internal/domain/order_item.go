package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places money columns keep.
const MoneyScale = 2

// OrderItem keeps a copy of the product and seller data as it was when the
// order was placed. Later catalog changes never reach stored items.
type OrderItem struct {
	ID              uint64
	PublicID        string
	OrderID         uint64
	Position        int
	ProductPublicID string
	Name            string
	ImageSrc        string
	Description     string
	SellerUsername  string
	SellerName      string
	SellerPfp       string
	Price           decimal.Decimal
	Quantity        int
	Total           decimal.Decimal
}

// NewOrderItem rounds the price to MoneyScale before computing the line total,
// so the stored order total always equals the sum of the stored item totals.
func NewOrderItem(publicID string, position int, product ProductSnapshot, quantity int) OrderItem {
	price := product.Price.Round(MoneyScale)
	return OrderItem{
		PublicID:        publicID,
		Position:        position,
		ProductPublicID: product.PublicID,
		Name:            product.Name,
		ImageSrc:        product.ImageSrc,
		Description:     product.Description,
		SellerUsername:  product.Seller.Username,
		SellerName:      product.Seller.Name,
		SellerPfp:       product.Seller.Pfp,
		Price:           price,
		Quantity:        quantity,
		Total:           price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}
