// Package memory implementa los puertos de persistencia sobre estructuras en
// memoria protegidas por mutex. Se usa en modo development (sin PostgreSQL) y
// en los tests herméticos de los casos de uso. Replica exactamente la semántica
// de los adaptadores postgres: emisión atómica de contadores, diario solo-insert
// y lecturas por copia (el caller nunca recibe referencias al estado interno).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.DeviceRepository = (*DeviceRepo)(nil)

// DeviceRepo implementación en memoria de DeviceRepository.
type DeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*entity.FiscalDevice
}

// NewDeviceRepository construye el adaptador.
func NewDeviceRepository() *DeviceRepo {
	return &DeviceRepo{devices: make(map[string]*entity.FiscalDevice)}
}

// Create persiste el dispositivo.
func (r *DeviceRepo) Create(_ context.Context, device *entity.FiscalDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.ID]; ok {
		return domain.ErrConflict
	}
	cp := *device
	r.devices[device.ID] = &cp
	return nil
}

// GetByID devuelve una copia del dispositivo, o nil, nil si no existe.
func (r *DeviceRepo) GetByID(_ context.Context, id string) (*entity.FiscalDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// Update persiste estado, certificado y auto-test. No toca contadores: el valor
// durable de los contadores solo avanza por las operaciones de emisión.
func (r *DeviceRepo) Update(_ context.Context, device *entity.FiscalDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.devices[device.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *device
	cp.TransactionCounter = stored.TransactionCounter
	cp.SignatureCounter = stored.SignatureCounter
	r.devices[device.ID] = &cp
	return nil
}

// List devuelve los dispositivos del sitio, orden estable por fecha de alta.
func (r *DeviceRepo) List(_ context.Context, orgID, siteID string) ([]*entity.FiscalDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalDevice
	for _, d := range r.devices {
		if d.OrgID == orgID && d.SiteID == siteID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// NextTransactionCounter emite previo+1 bajo el mutex del repo: el incremento y
// la "persistencia" son una sola operación, nadie observa valores repetidos.
func (r *DeviceRepo) NextTransactionCounter(_ context.Context, id string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	d.TransactionCounter++
	return d.TransactionCounter, nil
}

// NextSignatureCounter análogo al contador de transacción.
func (r *DeviceRepo) NextSignatureCounter(_ context.Context, id string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	d.SignatureCounter++
	return d.SignatureCounter, nil
}
