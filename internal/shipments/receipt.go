package shipments

import (
	"fmt"
	"io"
	"text/template"

	"github.com/shopspring/decimal"
)

// ReceiptGenerator renders a customer-facing receipt for a shipment.
type ReceiptGenerator interface {
	Generate(w io.Writer, sh Shipment) error
}

// TextReceipt renders a plain-text receipt.
type TextReceipt struct {
	tmpl *template.Template
}

var receiptFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"kg": func(d *decimal.Decimal) string {
		if d == nil {
			return "-"
		}
		return d.StringFixed(2) + " kg"
	},
	"dkg": func(d decimal.Decimal) string { return d.StringFixed(2) + " kg" },
}

const receiptText = `SHIPMENT RECEIPT
Tracking number: {{.TrackingNumber}}
Date:            {{.CreatedAt.Format "2006-01-02 15:04 MST"}}
Status:          {{.Status}}
Payment:         {{.PaymentMethod}} ({{.PaymentStatus}})

From: {{.Sender.Name}}
      {{.Sender.Address}}
To:   {{.Recipient.Name}}
      {{.Recipient.Address}}

Service: {{.Cost.Route.ServiceName}}{{with .Cost.Route.DeliveryTime}} ({{.}}){{end}}
Zone:    {{.Cost.Route.ZoneName}}

Actual weight:     {{kg .Cost.Weight.ActualWeight}}
Volumetric weight: {{kg .Cost.Weight.VolumetricWeight}}
Chargeable weight: {{dkg .Cost.Weight.ChargeableWeight}}
{{with .Cost.Breakdown}}
Service price                {{money .ServicePrice}}
Weight charge ({{money .PerKgRate}}/kg)    {{money .WeightCharge}}
{{- range .AdditionalCharges}}
  {{.Name}}{{if eq .Type "PERCENTAGE"}} ({{.Value}}%){{end}}    {{money .Amount}}
{{- end}}
{{- range .Extras}}
  {{.Name}} x{{.Quantity}}    {{money .Amount}}
{{- end}}
{{- if .CityDeliveryCharge.IsPositive}}
City delivery                {{money .CityDeliveryCharge}}
{{- end}}
{{- if .CODAmount.IsPositive}}
COD fee ({{.CODPercent}}%)    {{money .CODAmount}}
{{- end}}
{{- end}}

Subtotal                     {{money .Cost.Totals.Subtotal}}
TOTAL                        {{money .Cost.Totals.TotalCost}}
`

func NewTextReceipt() (*TextReceipt, error) {
	tmpl, err := template.New("receipt").Funcs(receiptFuncs).Parse(receiptText)
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	return &TextReceipt{tmpl: tmpl}, nil
}

func (r *TextReceipt) Generate(w io.Writer, sh Shipment) error {
	if err := r.tmpl.Execute(w, sh); err != nil {
		return fmt.Errorf("render receipt for %s: %w", sh.TrackingNumber, err)
	}
	return nil
}
