package models

import "time"

// Order is the slice of the orders table the analytics provider aggregates
// over. The wider ordering workflow is owned by other services; this model
// exists for read-only reporting queries.
type Order struct {
	ID            string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	TenantID      string    `gorm:"column:tenant_id;size:36;index:idx_orders_tenant_created,priority:1" json:"tenant_id"`
	BranchID      string    `gorm:"column:branch_id;size:36;index:idx_orders_branch" json:"branch_id"`
	StaffID       string    `gorm:"column:staff_id;size:36" json:"staff_id"`
	CustomerID    string    `gorm:"column:customer_id;size:36" json:"customer_id"`
	OrderType     string    `gorm:"column:order_type;size:20" json:"order_type"`
	Status        string    `gorm:"column:status;size:20" json:"status"`
	PaymentMethod string    `gorm:"column:payment_method;size:20" json:"payment_method"`
	ItemCount     int       `gorm:"column:item_count;default:0" json:"item_count"`
	TotalAmount   int64     `gorm:"column:total_amount;default:0" json:"total_amount"` // minor currency units
	TaxAmount     int64     `gorm:"column:tax_amount;default:0" json:"tax_amount"`
	CreatedAt     time.Time `gorm:"column:created_at;index:idx_orders_tenant_created,priority:2" json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}
