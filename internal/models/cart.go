package models

// CartLine is one selected line in a shopping cart
type CartLine struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

// Cart is the selection a checkout consumes. Carts live in Redis and
// are owned by the storefront; this service only reads them and removes
// lines after a successful pay-on-delivery fulfillment.
type Cart struct {
	UserID int64      `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}
