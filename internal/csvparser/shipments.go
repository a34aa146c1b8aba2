package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ShopPulse/internal/models"
)

const (
	DefaultMaxRows = 1000
	dateLayout     = "2006-01-02"
)

var (
	ErrEmptyHeader   = errors.New("csv header row is empty")
	ErrMissingColumn = errors.New("csv is missing a required column")
	ErrNoRows        = errors.New("csv must contain at least one data row")
)

// Column names, matched case-insensitively.
const (
	ColEmail             = "email"
	ColName              = "name"
	ColUserID            = "userid"
	ColOrderID           = "orderid"
	ColOrderNumber       = "ordernumber"
	ColCarrier           = "carrier"
	ColTrackingNumber    = "trackingnumber"
	ColTrackingURL       = "trackingurl"
	ColEstimatedDelivery = "estimateddelivery"
)

var requiredColumns = []string{ColEmail, ColCarrier, ColTrackingNumber}

// Shipment is one row of a bulk shipping-update upload.
type Shipment struct {
	Line     int
	User     models.User
	Order    models.Order
	Tracking models.TrackingInfo
}

// RowError describes a data row that was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseShipments reads a CSV with a header row. Email, Carrier and
// TrackingNumber columns are required; either OrderID or OrderNumber must be
// present. Rows that cannot be used are reported in skipped rather than
// failing the whole upload. At most maxRows data rows are read.
func ParseShipments(r io.Reader, maxRows int) (shipments []Shipment, skipped []RowError, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, ErrEmptyHeader
		}
		return nil, nil, err
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalize(h)
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	if len(index) == 0 {
		return nil, nil, ErrEmptyHeader
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	_, hasID := index[ColOrderID]
	_, hasNumber := index[ColOrderNumber]
	if !hasID && !hasNumber {
		return nil, nil, fmt.Errorf("%w: OrderID or OrderNumber", ErrMissingColumn)
	}

	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	line := 1
	for len(shipments)+len(skipped) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped = append(skipped, RowError{Line: line, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, nil, err
		}

		if len(record) != len(headers) {
			skipped = append(skipped, RowError{
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(headers), len(record)),
			})
			continue
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		s := Shipment{
			Line: line,
			User: models.User{
				ID:    get(ColUserID),
				Name:  get(ColName),
				Email: get(ColEmail),
			},
			Order: models.Order{
				ID:          get(ColOrderID),
				OrderNumber: get(ColOrderNumber),
			},
			Tracking: models.TrackingInfo{
				Carrier:        get(ColCarrier),
				TrackingNumber: get(ColTrackingNumber),
				TrackingURL:    get(ColTrackingURL),
			},
		}

		if reason := validate(s); reason != "" {
			skipped = append(skipped, RowError{Line: line, Reason: reason})
			continue
		}

		if eta := get(ColEstimatedDelivery); eta != "" {
			t, err := time.Parse(dateLayout, eta)
			if err != nil {
				skipped = append(skipped, RowError{Line: line, Reason: "invalid EstimatedDelivery, want YYYY-MM-DD"})
				continue
			}
			s.Tracking.EstimatedDelivery = t
		}

		shipments = append(shipments, s)
	}

	if len(shipments) == 0 && len(skipped) == 0 {
		return nil, nil, ErrNoRows
	}

	return shipments, skipped, nil
}

func validate(s Shipment) string {
	switch {
	case s.User.Email == "":
		return "missing Email"
	case !strings.Contains(s.User.Email, "@"):
		return "invalid Email"
	case s.Order.ID == "" && s.Order.OrderNumber == "":
		return "missing OrderID and OrderNumber"
	case s.Tracking.Carrier == "":
		return "missing Carrier"
	case s.Tracking.TrackingNumber == "":
		return "missing TrackingNumber"
	}
	return ""
}

func normalize(header string) string {
	h := strings.TrimPrefix(header, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(h)
}
