package validation

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"purchases/internal/domain"
	"purchases/internal/dto"
	apperrors "purchases/internal/errors"
)

const (
	MaxItems    = 50
	MinQuantity = 1
	MaxQuantity = 100

	DateLayout = "2006-01-02"
)

// CreateOrder checks a creation request before any downstream call is made.
func CreateOrder(req dto.CreateOrderRequest) error {
	var details []apperrors.ValidationDetail

	if len(req.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items must not be empty",
		})
	}

	if len(req.Items) > MaxItems {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items exceeds maximum of " + strconv.Itoa(MaxItems),
		})
	}

	seen := make(map[string]bool, len(req.Items))
	for idx, item := range req.Items {
		prefix := "items[" + strconv.Itoa(idx) + "]"
		productID := strings.TrimSpace(item.ProductID)

		if productID == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   prefix + ".productId",
				Message: "productId is required",
			})
		} else if seen[productID] {
			details = append(details, apperrors.ValidationDetail{
				Field:   prefix + ".productId",
				Message: "productId must not be duplicated",
			})
		}
		seen[productID] = true

		if item.Quantity < MinQuantity || item.Quantity > MaxQuantity {
			details = append(details, apperrors.ValidationDetail{
				Field:   prefix + ".quantity",
				Message: "quantity must be between 1 and 100",
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func PublicID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid order id", apperrors.ValidationDetail{
			Field:   "publicId",
			Message: "publicId must be a UUID",
		})
	}
	return nil
}

// ListQuery reads the listing filters and pagination from query parameters.
// page defaults to 0 and size to 20.
func ListQuery(q url.Values) (domain.OrderFilter, domain.PageRequest, error) {
	var (
		details []apperrors.ValidationDetail
		filter  domain.OrderFilter
		page    = domain.PageRequest{Page: 0, Size: domain.DefaultPageSize}
	)

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			details = append(details, apperrors.ValidationDetail{Field: "page", Message: "page must be an integer"})
		case n < 0:
			details = append(details, apperrors.ValidationDetail{Field: "page", Message: "page must be greater or equal to 0"})
		default:
			page.Page = n
		}
	}

	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			details = append(details, apperrors.ValidationDetail{Field: "size", Message: "size must be an integer"})
		case n < 1 || n > domain.MaxPageSize:
			details = append(details, apperrors.ValidationDetail{Field: "size", Message: "size must be between 1 and 100"})
		default:
			page.Size = n
		}
	}

	filter.Seller = strings.TrimSpace(q.Get("seller"))

	if v := q.Get("status"); v != "" {
		status, ok := domain.ParseOrderStatus(strings.ToUpper(v))
		if !ok {
			details = append(details, apperrors.ValidationDetail{
				Field:   "status",
				Message: "status must be one of PENDING, PAID, SHIPPED, CANCELLED",
			})
		} else {
			filter.Status = &status
		}
	}

	filter.DateFrom, details = parseDate(q.Get("dateFrom"), "dateFrom", details)
	filter.DateTo, details = parseDate(q.Get("dateTo"), "dateTo", details)

	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		details = append(details, apperrors.ValidationDetail{
			Field:   "dateFrom",
			Message: "dateFrom must not be after dateTo",
		})
	}

	if len(details) > 0 {
		return domain.OrderFilter{}, domain.PageRequest{}, apperrors.NewValidationError("invalid query parameters", details...)
	}
	return filter, page, nil
}

func parseDate(v, field string, details []apperrors.ValidationDetail) (*time.Time, []apperrors.ValidationDetail) {
	if v == "" {
		return nil, details
	}
	t, err := time.ParseInLocation(DateLayout, v, time.UTC)
	if err != nil {
		return nil, append(details, apperrors.ValidationDetail{
			Field:   field,
			Message: field + " must use the YYYY-MM-DD format",
		})
	}
	return &t, details
}

// UpdateOrder decodes a partial update body. Only status can be changed;
// any other key is rejected.
func UpdateOrder(body []byte) (domain.OrderUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return domain.OrderUpdate{}, apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be a JSON object",
		})
	}

	var details []apperrors.ValidationDetail
	var update domain.OrderUpdate

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key != "status" {
			details = append(details, apperrors.ValidationDetail{
				Field:   key,
				Message: "field cannot be updated",
			})
			continue
		}

		var value string
		if err := json.Unmarshal(raw[key], &value); err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "status", Message: "status must be a string"})
			continue
		}
		status, ok := domain.ParseOrderStatus(strings.ToUpper(value))
		if !ok {
			details = append(details, apperrors.ValidationDetail{
				Field:   "status",
				Message: "status must be one of PENDING, PAID, SHIPPED, CANCELLED",
			})
			continue
		}
		update.Status = &status
	}

	if len(details) == 0 && update.IsEmpty() {
		details = append(details, apperrors.ValidationDetail{
			Field:   "body",
			Message: "at least one updatable field is required",
		})
	}

	if len(details) > 0 {
		return domain.OrderUpdate{}, apperrors.NewValidationError("validation failed", details...)
	}
	return update, nil
}
