package domain

import "github.com/shopspring/decimal"

type Seller struct {
	Username string
	Name     string
	Pfp      string
}

// ProductSnapshot is the catalog view of a product at the moment an order is
// created.
type ProductSnapshot struct {
	PublicID    string
	Name        string
	Description string
	ImageSrc    string
	Price       decimal.Decimal
	Seller      Seller
}

type Profile struct {
	Username string
	Name     string
	Pfp      string
}

func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}
