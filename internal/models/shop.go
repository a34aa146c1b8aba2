package models

import (
	"strings"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"order_number"`
	Items       []OrderItem `json:"items"`
	Total       float64     `json:"total"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Reference is the customer-facing order number. Orders without one fall
// back to the last eight characters of the internal id.
func (o *Order) Reference() string {
	if o == nil {
		return ""
	}
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	id := o.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

type TrackingInfo struct {
	Carrier           string    `json:"carrier"`
	TrackingNumber    string    `json:"tracking_number"`
	TrackingURL       string    `json:"tracking_url,omitempty"`
	EstimatedDelivery time.Time `json:"estimated_delivery,omitempty"`
}
