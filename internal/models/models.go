package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobType identifies a catalog pipeline stage
type JobType string

const (
	JobTypeRaw         JobType = "RAW"
	JobTypeNormalize   JobType = "NORMALIZE"
	JobTypeEnrich      JobType = "ENRICH"
	JobTypeSyncProduct JobType = "SYNC_PRODUCT"
	JobTypeSyncStock   JobType = "SYNC_STOCK"
)

// AllJobTypes lists every pipeline stage a worker can claim
var AllJobTypes = []JobType{
	JobTypeRaw,
	JobTypeNormalize,
	JobTypeEnrich,
	JobTypeSyncProduct,
	JobTypeSyncStock,
}

// ValidJobType reports whether t names a known pipeline stage
func ValidJobType(t string) bool {
	for _, jt := range AllJobTypes {
		if string(jt) == t {
			return true
		}
	}
	return false
}

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed out of s
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobParams carries per-job stage options, stored as JSONB
type JobParams struct {
	Force        bool `json:"force,omitempty"`
	SkipExisting bool `json:"skip_existing,omitempty"`
	ActiveOnly   bool `json:"active_only,omitempty"`
}

// Value implements driver.Valuer
func (p JobParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *JobParams) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = JobParams{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported job params type %T", src)
	}
}

// Job is one unit of asynchronous catalog pipeline work
type Job struct {
	ID         int64      `db:"id" json:"id"`
	Type       JobType    `db:"type" json:"type"`
	Status     JobStatus  `db:"status" json:"status"`
	Processed  int        `db:"processed" json:"processed"`
	Total      int        `db:"total" json:"total"`
	Checkpoint int        `db:"checkpoint" json:"checkpoint"`
	Attempts   int        `db:"attempts" json:"attempts"`
	Params     JobParams  `db:"params" json:"params"`
	LastError  string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// RawProduct is an unmodified supplier feed record, keyed by supplier id
type RawProduct struct {
	SupplierID string          `db:"supplier_id" json:"supplier_id"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// CatalogItem is a normalized product
type CatalogItem struct {
	ID          int64     `db:"id" json:"id"`
	SupplierID  string    `db:"supplier_id" json:"supplier_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Active      bool      `db:"active" json:"active"`
	Published   bool      `db:"published" json:"published"`
	Enriched    bool      `db:"enriched" json:"enriched"`
	OrderCount  int64     `db:"order_count" json:"order_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CatalogVariant is a purchasable variant of a catalog item
type CatalogVariant struct {
	ID                int64     `db:"id" json:"id"`
	ItemID            int64     `db:"item_id" json:"item_id"`
	SupplierVariantID string    `db:"supplier_variant_id" json:"supplier_variant_id"`
	SKU               string    `db:"sku" json:"sku"`
	BasePrice         int64     `db:"base_price" json:"base_price"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// VariantStock is a per-warehouse stock count for a variant
type VariantStock struct {
	VariantID int64     `db:"variant_id" json:"variant_id"`
	Warehouse string    `db:"warehouse" json:"warehouse"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// VariantMapping links a local variant to the fulfillment provider's
// product/variation identifiers. Populated at SYNC_PRODUCT time.
type VariantMapping struct {
	VariantID           int64     `db:"variant_id" json:"variant_id"`
	ExternalProductID   string    `db:"external_product_id" json:"external_product_id"`
	ExternalVariationID string    `db:"external_variation_id" json:"external_variation_id"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Address is a reusable shipping address for a user
type Address struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Name       string    `db:"name" json:"name"`
	Phone      string    `db:"phone" json:"phone"`
	Line1      string    `db:"line1" json:"line1"`
	City       string    `db:"city" json:"city"`
	State      string    `db:"state" json:"state"`
	PostalCode string    `db:"postal_code" json:"postal_code"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Payment statuses
const (
	PaymentStatusNotPaid  = "not_paid"
	PaymentStatusAwaiting = "awaiting"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
)

// PaymentSuccess reports whether status is a terminal success state.
// The gateway reports either "captured" or "paid" depending on the
// method; both map to paid locally.
func PaymentSuccess(status string) bool {
	return status == "paid" || status == "captured"
}

// Payment methods
const (
	PaymentMethodCOD          = "cod"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodEwallet      = "ewallet"
	PaymentMethodCard         = "card"
)

// KnownPaymentMethod reports whether m is an accepted payment method
func KnownPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodEwallet, PaymentMethodCard:
		return true
	}
	return false
}

// PayOnDelivery reports whether m settles after shipment
func PayOnDelivery(m string) bool {
	return m == PaymentMethodCOD
}

// Order statuses
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCancelled = "CANCELLED"
)

// Order is a checkout's resulting record. The ship_* fields are a
// snapshot taken at order time; AddressID only records which stored
// address the snapshot came from.
type Order struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	CartID        string    `db:"cart_id" json:"cart_id,omitempty"`
	Status        string    `db:"status" json:"status"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	ExternalTxID  string    `db:"external_tx_id" json:"external_tx_id,omitempty"`
	Subtotal      int64     `db:"subtotal" json:"subtotal"`
	ShippingTotal int64     `db:"shipping_total" json:"shipping_total"`
	Total         int64     `db:"total" json:"total"`
	AddressID     int64     `db:"address_id" json:"address_id"`
	ShipName      string    `db:"ship_name" json:"ship_name"`
	ShipPhone     string    `db:"ship_phone" json:"ship_phone"`
	ShipLine1     string    `db:"ship_line1" json:"ship_line1"`
	ShipCity      string    `db:"ship_city" json:"ship_city"`
	ShipState     string    `db:"ship_state" json:"ship_state"`
	ShipPostal    string    `db:"ship_postal" json:"ship_postal"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// External fulfillment item statuses
const (
	ExternalStatusPendingTracking = "PENDING_TRACKING"
)

// OrderItem is one order line. FinalPrice is frozen at creation; the
// external linkage fields are write-once, set only by a successful
// fulfillment submission.
type OrderItem struct {
	ID                 int64   `db:"id" json:"id"`
	OrderID            int64   `db:"order_id" json:"order_id"`
	ItemID             int64   `db:"item_id" json:"item_id"`
	VariantID          int64   `db:"variant_id" json:"variant_id"`
	Quantity           int     `db:"quantity" json:"quantity"`
	BasePrice          int64   `db:"base_price" json:"base_price"`
	FinalPrice         int64   `db:"final_price" json:"final_price"`
	ExternalOrderID    *string `db:"external_order_id" json:"external_order_id,omitempty"`
	ExternalShipping   *int64  `db:"external_shipping" json:"external_shipping,omitempty"`
	ExternalCommission *int64  `db:"external_commission" json:"external_commission,omitempty"`
	ExternalStatus     *string `db:"external_status" json:"external_status,omitempty"`
}

// Linked reports whether the item already has an external fulfillment order
func (it *OrderItem) Linked() bool {
	return it.ExternalOrderID != nil && *it.ExternalOrderID != ""
}
