package models

// All lists every model owned by the storefront schema, in dependency order.
func All() []any {
	return []any{
		&SiteSetting{},
		&Category{},
		&Product{},
		&ProductVariant{},
		&ProductImage{},
		&DiscountCode{},
		&CheckoutSession{},
		&StockReservation{},
		&Order{},
		&OrderItem{},
		&OrderEvent{},
		&ShippingZone{},
		&ShippingRate{},
		&Redirect{},
	}
}
