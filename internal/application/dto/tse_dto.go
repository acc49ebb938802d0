package dto

import "time"

// InitializeSessionRequest inicializa una sesión de firma TSE para un clientID.
type InitializeSessionRequest struct {
	ClientID string `json:"client_id"`
}

// StartTransactionRequest abre el sobre de una transacción TSE.
type StartTransactionRequest struct {
	ClientID    string `json:"client_id"`
	ProcessType string `json:"process_type"`
	ProcessData string `json:"process_data"`
}

// StartTransactionResponse número reservado por el TSE.
type StartTransactionResponse struct {
	TransactionNumber uint64    `json:"transaction_number"`
	StartTime         time.Time `json:"start_time"`
}

// FinishTransactionRequest cierra el sobre y produce el recibo firmado.
type FinishTransactionRequest struct {
	ClientID          string `json:"client_id"`
	TransactionNumber uint64 `json:"transaction_number"`
	ProcessType       string `json:"process_type"`
	ProcessData       string `json:"process_data"`
}

// FinishTransactionResponse artefacto firmado del sobre start/finish.
type FinishTransactionResponse struct {
	TransactionNumber  uint64    `json:"transaction_number"`
	SignatureCounter   uint64    `json:"signature_counter"`
	Signature          string    `json:"signature"`
	CertificateSerial  string    `json:"certificate_serial"`
	SignatureAlgorithm string    `json:"signature_algorithm"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	PublicKeyBase64    string    `json:"public_key_base64"`
	QRCodeData         string    `json:"qr_code_data"`
}

// SessionSnapshotResponse estado observable de la sesión (consistencia entre llamadas).
type SessionSnapshotResponse struct {
	ClientID           string            `json:"client_id"`
	Status             string            `json:"status"`
	Algorithm          string            `json:"algorithm"`
	CertificateSerial  string            `json:"certificate_serial"`
	PublicKeyBase64    string            `json:"public_key_base64"`
	TransactionCounter uint64            `json:"transaction_counter"`
	SignatureCounter   uint64            `json:"signature_counter"`
	LastSelfTest       *SelfTestResponse `json:"last_self_test,omitempty"`
}
