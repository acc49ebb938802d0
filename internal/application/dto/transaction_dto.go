package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateTransactionRequest contenido entregado por la capa de pedidos/pagos.
// Los tres desgloses llegan ya calculados; el motor no los recalcula.
type CreateTransactionRequest struct {
	DeviceID          string                     `json:"device_id"`
	Type              string                     `json:"type"`
	ProcessType       string                     `json:"process_type"`
	SourceRef         string                     `json:"source_ref"`
	GrossAmount       decimal.Decimal            `json:"gross_amount"`
	AmountsByTaxRate  map[string]decimal.Decimal `json:"amounts_by_tax_rate,omitempty"`
	AmountsByPayment  map[string]decimal.Decimal `json:"amounts_by_payment,omitempty"`
	AmountsByCategory map[string]decimal.Decimal `json:"amounts_by_category,omitempty"`
}

// SignTransactionRequest campos de firma producidos por el dispositivo/sesión.
type SignTransactionRequest struct {
	Signature        string `json:"signature"`
	SignatureCounter uint64 `json:"signature_counter"`
	CertSerial       string `json:"cert_serial"`
	QRCodeData       string `json:"qr_code_data"`
	RawPayload       string `json:"raw_payload"`
}

// TransactionResponse snapshot de la transacción fiscal.
type TransactionResponse struct {
	ID                string                     `json:"id"`
	SiteID            string                     `json:"site_id"`
	DeviceID          string                     `json:"device_id"`
	Type              string                     `json:"type"`
	ProcessType       string                     `json:"process_type"`
	SourceRef         string                     `json:"source_ref"`
	GrossAmount       decimal.Decimal            `json:"gross_amount"`
	AmountsByTaxRate  map[string]decimal.Decimal `json:"amounts_by_tax_rate,omitempty"`
	AmountsByPayment  map[string]decimal.Decimal `json:"amounts_by_payment,omitempty"`
	AmountsByCategory map[string]decimal.Decimal `json:"amounts_by_category,omitempty"`
	Status            string                     `json:"status"`
	Signature         string                     `json:"signature,omitempty"`
	SignatureCounter  uint64                     `json:"signature_counter,omitempty"`
	CertSerial        string                     `json:"cert_serial,omitempty"`
	QRCodeData        string                     `json:"qr_code_data,omitempty"`
	SignedAt          *time.Time                 `json:"signed_at,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
}
