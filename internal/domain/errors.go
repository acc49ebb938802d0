package domain

import "errors"

// Errores de dominio del motor fiscal (sin dependencias externas).
// Los mensajes son parte del contrato: los consumidores distinguen la taxonomía
// por fragmentos estables ("expired", "already signed", "not found or inactive").
var (
	ErrNotFound           = errors.New("resource not found")
	ErrDeviceNotFound     = errors.New("fiscal device not found or inactive")
	ErrDuplicateSerial    = errors.New("serial number already registered")
	ErrAlreadySigned      = errors.New("fiscal transaction already signed")
	ErrNotStarted         = errors.New("tse transaction was not started")
	ErrAlreadyFinished    = errors.New("tse transaction already finished")
	ErrNotInitialized     = errors.New("signing session not initialized")
	ErrAlreadyInitialized = errors.New("signing session already initialized")
	ErrUnknownAlgorithm   = errors.New("unknown signature algorithm")
	ErrTerminalState      = errors.New("export job already in terminal state")
	ErrConflict           = errors.New("conflict with current state")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
)
