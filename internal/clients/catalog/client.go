package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"purchases/internal/clients"
	"purchases/internal/domain"
)

type Client struct {
	base *clients.Client
}

func NewClient(base *clients.Client) *Client {
	return &Client{base: base}
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type artistPayload struct {
	Username       string `json:"username"`
	Name           string `json:"name"`
	ArtisticName   string `json:"artisticName"`
	Pfp            string `json:"pfp"`
	ProfilePicture string `json:"profilePicture"`
}

type productPayload struct {
	PublicID           string           `json:"publicId"`
	Name               string           `json:"name"`
	ProductName        string           `json:"product_name"`
	Description        string           `json:"description"`
	ProductDescription string           `json:"product_description"`
	ImageSrc           string           `json:"imageSrc"`
	ProductImageSrc    string           `json:"product_image_src"`
	Images             []string         `json:"images"`
	Price              *decimal.Decimal `json:"price"`
	Stock              *int             `json:"stock"`
	Artist             *artistPayload   `json:"artist"`
}

func (p productPayload) snapshot(id string) domain.ProductSnapshot {
	s := domain.ProductSnapshot{
		PublicID:    firstNonEmpty(p.PublicID, id),
		Name:        firstNonEmpty(p.Name, p.ProductName),
		Description: firstNonEmpty(p.Description, p.ProductDescription),
		ImageSrc:    firstNonEmpty(p.ImageSrc, p.ProductImageSrc),
	}
	if s.ImageSrc == "" && len(p.Images) > 0 {
		s.ImageSrc = p.Images[0]
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Artist != nil {
		s.Seller = domain.Seller{
			Username: p.Artist.Username,
			Name:     firstNonEmpty(p.Artist.ArtisticName, p.Artist.Name, p.Artist.Username),
			Pfp:      firstNonEmpty(p.Artist.Pfp, p.Artist.ProfilePicture),
		}
	}
	return s
}

// Product is the catalog's answer for one product. HasPrice is false when the
// catalog did not report a price.
type Product struct {
	domain.ProductSnapshot
	HasPrice bool
	Stock    *int
}

// GetProductByID fetches the public view of a product.
func (c *Client) GetProductByID(ctx context.Context, id string) clients.Result[Product] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/products/public/" + url.PathEscape(id),
	})
	r := clients.Classify[Product](resp, err, clients.Read)
	if !r.IsOK() {
		return r
	}

	payload, bad := decodeProduct(resp)
	if bad != "" {
		return clients.Malformed[Product](resp, bad)
	}

	r.Value = Product{
		ProductSnapshot: payload.snapshot(id),
		HasPrice:        payload.Price != nil,
		Stock:           payload.Stock,
	}
	return r
}

// GetProductStock reports the current stock of a product. A product whose
// payload has no numeric stock yields OutcomeMalformed.
func (c *Client) GetProductStock(ctx context.Context, id string) clients.Result[int] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/products/public/" + url.PathEscape(id),
	})
	r := clients.Classify[int](resp, err, clients.Read)
	if !r.IsOK() {
		return r
	}

	payload, bad := decodeProduct(resp)
	if bad != "" {
		return clients.Malformed[int](resp, bad)
	}
	if payload.Stock == nil {
		return clients.Malformed[int](resp, "product "+id+" has no stock field")
	}

	r.Value = *payload.Stock
	return r
}

// AdjustStock applies a signed delta to the product stock: negative to take
// units out, positive to put them back.
func (c *Client) AdjustStock(ctx context.Context, id string, delta int) clients.Result[json.RawMessage] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodPatch,
		Path:   "/products/" + url.PathEscape(id) + "/stock",
		Query:  url.Values{"delta": {strconv.Itoa(delta)}},
	})
	r := clients.Classify[json.RawMessage](resp, err, clients.Write)
	if !r.IsOK() {
		return r
	}

	var env envelope
	if json.Unmarshal(resp.Body, &env) == nil && env.Success != nil && !*env.Success {
		r.Outcome = clients.OutcomeRejected
		r.Detail = firstNonEmpty(env.Message, "stock update refused")
		return r
	}

	r.Value = r.Payload
	return r
}

func decodeProduct(resp *clients.Response) (productPayload, string) {
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return productPayload{}, "invalid product response: " + err.Error()
	}
	if env.Success != nil && !*env.Success {
		return productPayload{}, firstNonEmpty(env.Message, "catalog reported failure")
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return productPayload{}, "product response has no data"
	}

	var p productPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return productPayload{}, "invalid product data: " + err.Error()
	}
	return p, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
