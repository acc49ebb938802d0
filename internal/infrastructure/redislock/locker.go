// Paquete redislock implementa el serializador de identidad sobre Redis, para
// despliegues con más de una instancia del motor detrás del mismo almacén.
package redislock

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
)

const (
	lockTTL       = 30 * time.Second
	retryInterval = 50 * time.Millisecond
	retryLimit    = 100
)

var _ appfiscal.IdentityLocker = (*Locker)(nil)

// Locker serializa secciones críticas por clave mediante bsm/redislock. A
// diferencia del mutex en proceso, la exclusión vale entre instancias.
type Locker struct {
	client *redislock.Client
}

// New construye el locker sobre un cliente Redis ya conectado.
func New(rdb *redis.Client) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

// WithLock obtiene el lock distribuido de la clave, ejecuta fn y lo libera.
// Espera con backoff lineal; si tras los reintentos el lock sigue tomado,
// devuelve redislock.ErrNotObtained sin ejecutar fn.
func (l *Locker) WithLock(ctx context.Context, key string, fn func() error) error {
	lock, err := l.client.Obtain(ctx, "fiscal:lock:"+key, lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), retryLimit),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	return fn()
}
