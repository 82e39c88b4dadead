package domain

import "time"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderFilter conditions are combined with AND. DateTo is inclusive up to the
// end of that day.
type OrderFilter struct {
	Seller   string
	Status   *OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

func (f OrderFilter) IsEmpty() bool {
	return f.Seller == "" && f.Status == nil && f.DateFrom == nil && f.DateTo == nil
}

// EndOfDay returns the last instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, t.Location())
}

type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type OrderPage struct {
	Orders        []Order
	TotalElements int
	TotalPages    int
	Page          int
	Size          int
}

func NewOrderPage(orders []Order, total int, req PageRequest) *OrderPage {
	return &OrderPage{
		Orders:        orders,
		TotalElements: total,
		TotalPages:    TotalPages(total, req.Size),
		Page:          req.Page,
		Size:          req.Size,
	}
}

func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
