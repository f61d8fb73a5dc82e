package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/email"
)

var (
	confirmedHTML = template.Must(template.New("order_confirmed").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h1>Thanks for your order</h1>
<p>Order <strong>{{.OrderNumber}}</strong> is confirmed and being prepared.</p>
<table cellpadding="4">
{{range .Items}}<tr><td>{{.Quantity}} &times; {{.Name}}</td><td align="right">{{.LineTotal}}</td></tr>
{{end}}<tr><td>Subtotal</td><td align="right">{{.Subtotal}}</td></tr>
{{if .HasDiscount}}<tr><td>Discount{{if .DiscountCode}} ({{.DiscountCode}}){{end}}</td><td align="right">-{{.Discount}}</td></tr>
{{end}}<tr><td>Shipping</td><td align="right">{{.Shipping}}</td></tr>
{{if .HasTax}}<tr><td>Tax</td><td align="right">{{.Tax}}</td></tr>
{{end}}<tr><td><strong>Total</strong></td><td align="right"><strong>{{.Total}}</strong></td></tr>
</table>
{{if .TrackURL}}<p><a href="{{.TrackURL}}">Track your order</a></p>{{end}}
</body></html>`))

	shippedHTML = template.Must(template.New("order_shipped").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h1>Your order is on its way</h1>
<p>Order <strong>{{.OrderNumber}}</strong> has shipped.</p>
<ul>
{{range .Items}}<li>{{.Quantity}} &times; {{.Name}}</li>
{{end}}</ul>
{{if .TrackURL}}<p><a href="{{.TrackURL}}">Track your order</a></p>{{end}}
</body></html>`))
)

type itemView struct {
	Name      string
	Quantity  int
	LineTotal string
}

type orderView struct {
	OrderNumber  string
	Items        []itemView
	Subtotal     string
	Discount     string
	DiscountCode string
	HasDiscount  bool
	Shipping     string
	Tax          string
	HasTax       bool
	Total        string
	TrackURL     string
}

func newOrderView(order models.Order, publicURL string) orderView {
	view := orderView{
		OrderNumber: order.OrderNumber,
		Subtotal:    order.Subtotal.StringFixed(2),
		Discount:    order.DiscountTotal.StringFixed(2),
		HasDiscount: order.DiscountTotal.IsPositive(),
		Shipping:    order.ShippingTotal.StringFixed(2),
		Tax:         order.TaxTotal.StringFixed(2),
		HasTax:      order.TaxTotal.IsPositive(),
		Total:       order.Total.StringFixed(2),
		TrackURL:    trackURL(publicURL, order),
	}
	if order.DiscountCode != nil {
		view.DiscountCode = *order.DiscountCode
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, itemView{
			Name:      item.Name,
			Quantity:  item.Quantity,
			LineTotal: item.Price.Mul(decimalFromInt(item.Quantity)).StringFixed(2),
		})
	}
	return view
}

func trackURL(publicURL string, order models.Order) string {
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if base == "" {
		return ""
	}
	q := url.Values{}
	q.Set("orderNumber", order.OrderNumber)
	q.Set("email", order.Email)
	return base + "/orders/track?" + q.Encode()
}

func render(tpl *template.Template, view orderView) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OrderConfirmedMessage builds the order confirmation email.
func OrderConfirmedMessage(order models.Order, publicURL string) (email.Message, error) {
	view := newOrderView(order, publicURL)
	html, err := render(confirmedHTML, view)
	if err != nil {
		return email.Message{}, fmt.Errorf("render order confirmation: %w", err)
	}
	var text strings.Builder
	fmt.Fprintf(&text, "Thanks for your order %s.\n\n", view.OrderNumber)
	for _, item := range view.Items {
		fmt.Fprintf(&text, "%d x %s  %s\n", item.Quantity, item.Name, item.LineTotal)
	}
	fmt.Fprintf(&text, "\nTotal: %s\n", view.Total)
	if view.TrackURL != "" {
		fmt.Fprintf(&text, "Track your order: %s\n", view.TrackURL)
	}
	return email.Message{
		To:      []string{order.Email},
		Subject: fmt.Sprintf("Order %s confirmed", order.OrderNumber),
		HTML:    html,
		Text:    text.String(),
	}, nil
}

// OrderShippedMessage builds the shipping confirmation email.
func OrderShippedMessage(order models.Order, publicURL string) (email.Message, error) {
	view := newOrderView(order, publicURL)
	html, err := render(shippedHTML, view)
	if err != nil {
		return email.Message{}, fmt.Errorf("render shipping confirmation: %w", err)
	}
	text := fmt.Sprintf("Your order %s has shipped.\n", view.OrderNumber)
	if view.TrackURL != "" {
		text += "Track your order: " + view.TrackURL + "\n"
	}
	return email.Message{
		To:      []string{order.Email},
		Subject: fmt.Sprintf("Order %s has shipped", order.OrderNumber),
		HTML:    html,
		Text:    text,
	}, nil
}
