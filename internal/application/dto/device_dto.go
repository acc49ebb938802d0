package dto

import "time"

// RegisterDeviceRequest alta de un dispositivo fiscal en el sitio del token.
type RegisterDeviceRequest struct {
	Type          string     `json:"type"`
	SerialNumber  string     `json:"serial_number"`
	PublicKey     string     `json:"public_key,omitempty"`
	CertExpiresAt *time.Time `json:"cert_expires_at,omitempty"`
}

// ActivateDeviceRequest activación con referencia tributaria para auditoría.
type ActivateDeviceRequest struct {
	TaxRegistrationRef string `json:"tax_registration_ref"`
}

// DeactivateDeviceRequest decomiso/desactivación con motivo auditable.
type DeactivateDeviceRequest struct {
	Reason string `json:"reason"`
}

// SelfTestResponse resultado del auto-test. Un certificado vencido llega aquí
// como passed=false, no como error HTTP.
type SelfTestResponse struct {
	Passed       bool      `json:"passed"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// CounterResponse valor emitido por la emisión durable de contadores.
type CounterResponse struct {
	Counter uint64 `json:"counter"`
}

// DeviceResponse snapshot del dispositivo fiscal.
type DeviceResponse struct {
	ID                 string            `json:"id"`
	SiteID             string            `json:"site_id"`
	Type               string            `json:"type"`
	SerialNumber       string            `json:"serial_number"`
	Status             string            `json:"status"`
	PublicKey          string            `json:"public_key,omitempty"`
	CertSerial         string            `json:"cert_serial,omitempty"`
	CertExpiresAt      *time.Time        `json:"cert_expires_at,omitempty"`
	TransactionCounter uint64            `json:"transaction_counter"`
	SignatureCounter   uint64            `json:"signature_counter"`
	LastSelfTest       *SelfTestResponse `json:"last_self_test,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}
