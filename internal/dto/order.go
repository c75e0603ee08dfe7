package dto

import "time"

// OrderResponse represents a purchase order as exposed via transport layers.
type OrderResponse struct {
	ID        int64     `json:"id"`
	Item      string    `json:"articulo"`
	Quantity  float64   `json:"cantidad"`
	UnitPrice float64   `json:"precio_por_unidad"`
	Total     float64   `json:"total"`
	Supplier  string    `json:"proveedor"`
	OrderDate string    `json:"fecha_de_orden"`
	Status    string    `json:"estado"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusChangeResponse reports an executed status change.
type StatusChangeResponse struct {
	ID                   int64  `json:"id"`
	PreviousStatus       string `json:"previousStatus"`
	Status               string `json:"estado"`
	AffectedRows         int64  `json:"affectedRows"`
	RequiresConfirmation bool   `json:"requiresConfirmation"`
}

// TransitionsResponse lists the statuses the caller may move an order to.
type TransitionsResponse struct {
	ID                   int64    `json:"id"`
	Status               string   `json:"estado"`
	Allowed              []string `json:"allowed"`
	RequiresConfirmation []string `json:"requiresConfirmation"`
	Final                bool     `json:"final"`
}

// RoleResponse is the resolved caller role.
type RoleResponse struct {
	Role string `json:"role"`
}
