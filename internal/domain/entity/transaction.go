package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// Estados de la transacción fiscal: CREATED → SIGNED (terminal).
const (
	TransactionStatusCreated = "CREATED"
	TransactionStatusSigned  = "SIGNED"
)

// Tipos de transacción fiscal en punto de venta.
const (
	TransactionTypeReceipt  = "RECEIPT"
	TransactionTypeVoid     = "VOID"
	TransactionTypeTraining = "TRAINING"
)

// FiscalTransaction es un evento de punto de venta que debe firmarse exactamente
// una vez. Los montos se desglosan en tres dimensiones (tarifa de impuesto,
// medio de pago y categoría); la capa de pedidos los entrega ya calculados.
type FiscalTransaction struct {
	ID          string
	OrgID       string
	SiteID      string
	DeviceID    string
	Type        string
	ProcessType string
	SourceRef   string // referencia al pedido/pago origen

	GrossAmount       decimal.Decimal
	AmountsByTaxRate  map[string]decimal.Decimal
	AmountsByPayment  map[string]decimal.Decimal
	AmountsByCategory map[string]decimal.Decimal

	Status string

	// Campos de firma, poblados únicamente en la transición a SIGNED.
	Signature        string
	SignatureCounter uint64
	CertSerial       string
	QRCodeData       string
	RawPayload       string
	SignedAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplySignature realiza la transición CREATED → SIGNED. Una segunda llamada
// retorna ErrAlreadySigned sin tocar el estado ni los campos ya almacenados.
func (t *FiscalTransaction) ApplySignature(signature string, signatureCounter uint64, certSerial, qrCode, rawPayload string, now time.Time) error {
	if t.Status == TransactionStatusSigned {
		return domain.ErrAlreadySigned
	}
	if t.Status != TransactionStatusCreated {
		return domain.ErrConflict
	}
	t.Status = TransactionStatusSigned
	t.Signature = signature
	t.SignatureCounter = signatureCounter
	t.CertSerial = certSerial
	t.QRCodeData = qrCode
	t.RawPayload = rawPayload
	t.SignedAt = &now
	t.UpdatedAt = now
	return nil
}
