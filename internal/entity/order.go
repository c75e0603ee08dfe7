package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// PurchaseOrder represents a purchase order stored in the relational database.
// Column names match the existing purchase_orders schema.
type PurchaseOrder struct {
	bun.BaseModel `bun:"table:purchase_orders"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Item      string    `bun:"articulo,notnull"`
	Quantity  float64   `bun:"cantidad,notnull"`
	UnitPrice float64   `bun:"precio_por_unidad,notnull"`
	Supplier  string    `bun:"proveedor,notnull"`
	OrderDate time.Time `bun:"fecha_de_orden,type:date,notnull"`
	Status    string    `bun:"estado,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// Total is the line total of the order.
func (o *PurchaseOrder) Total() float64 {
	return o.Quantity * o.UnitPrice
}
