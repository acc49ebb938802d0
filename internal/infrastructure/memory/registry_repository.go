package memory

import (
	"context"
	"sync"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.DeviceRegistryRepository = (*RegistryRepo)(nil)

type registryBinding struct {
	serialNumber string
	deviceID     string
}

// RegistryRepo implementación en memoria de DeviceRegistryRepository.
// Mantiene el orden de registro para ListDeviceIDs.
type RegistryRepo struct {
	mu       sync.Mutex
	bindings map[string][]registryBinding // clave: org + "/" + site
}

// NewRegistryRepository construye el adaptador.
func NewRegistryRepository() *RegistryRepo {
	return &RegistryRepo{bindings: make(map[string][]registryBinding)}
}

func registryScope(orgID, siteID string) string { return orgID + "/" + siteID }

// Register liga serial ↔ deviceID. Idempotente para el mismo par; conflicto si
// el serial ya pertenece a otro dispositivo del alcance.
func (r *RegistryRepo) Register(_ context.Context, orgID, siteID, serialNumber, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scope := registryScope(orgID, siteID)
	for _, b := range r.bindings[scope] {
		if b.serialNumber == serialNumber {
			if b.deviceID == deviceID {
				return nil
			}
			return domain.ErrDuplicateSerial
		}
	}
	r.bindings[scope] = append(r.bindings[scope], registryBinding{serialNumber: serialNumber, deviceID: deviceID})
	return nil
}

// FindBySerial devuelve el deviceID ligado al serial, o "" si no existe.
func (r *RegistryRepo) FindBySerial(_ context.Context, orgID, siteID, serialNumber string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings[registryScope(orgID, siteID)] {
		if b.serialNumber == serialNumber {
			return b.deviceID, nil
		}
	}
	return "", nil
}

// Unregister elimina el vínculo del dispositivo; sin error si no existe.
func (r *RegistryRepo) Unregister(_ context.Context, orgID, siteID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scope := registryScope(orgID, siteID)
	kept := r.bindings[scope][:0]
	for _, b := range r.bindings[scope] {
		if b.deviceID != deviceID {
			kept = append(kept, b)
		}
	}
	r.bindings[scope] = kept
	return nil
}

// ListDeviceIDs devuelve los identificadores en orden de registro.
func (r *RegistryRepo) ListDeviceIDs(_ context.Context, orgID, siteID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.bindings[registryScope(orgID, siteID)] {
		out = append(out, b.deviceID)
	}
	return out, nil
}
