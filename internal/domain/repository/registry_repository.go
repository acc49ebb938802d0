package repository

import "context"

// DeviceRegistryRepository mapea número de serie ↔ identificador de dispositivo,
// con alcance (org, site). No valida existencia del dispositivo contra
// DeviceRepository: esa verificación pertenece al caller.
type DeviceRegistryRepository interface {
	// Register falla con domain.ErrDuplicateSerial si el serial ya está ligado a
	// OTRO dispositivo dentro del alcance; re-registrar el mismo par es idempotente.
	Register(ctx context.Context, orgID, siteID, serialNumber, deviceID string) error
	// FindBySerial devuelve "" si el serial no está registrado.
	FindBySerial(ctx context.Context, orgID, siteID, serialNumber string) (string, error)
	// Unregister elimina el vínculo; sin error si no existe.
	Unregister(ctx context.Context, orgID, siteID, deviceID string) error
	// ListDeviceIDs devuelve los identificadores en orden estable de registro.
	ListDeviceIDs(ctx context.Context, orgID, siteID string) ([]string, error)
}
