package fiscal

import (
	"context"
	"sync"
)

// IdentityLocker serializa todas las mutaciones de una misma identidad
// (dispositivo, sesión, transacción, diario): el modelo es un solo escritor por
// identidad, sin exponer locks al caller. La implementación en proceso es
// KeyedLocker; infrastructure/redislock aporta la variante distribuida para
// despliegues multi-instancia.
type IdentityLocker interface {
	// WithLock ejecuta fn con exclusión mutua sobre key. Las llamadas sobre la
	// misma key se procesan de a una hasta completarse (linealizable por
	// entidad, no necesariamente FIFO entre callers).
	WithLock(ctx context.Context, key string, fn func() error) error
}

// KeyedLocker serializador en proceso: un mutex por identidad, creado bajo
// demanda. Los mutex no se liberan del mapa; el número de identidades vivas de
// un proceso (dispositivos y sesiones del sitio) es acotado.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLocker construye el serializador.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*sync.Mutex)}
}

// WithLock implementa IdentityLocker.
func (l *KeyedLocker) WithLock(_ context.Context, key string, fn func() error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn()
}
