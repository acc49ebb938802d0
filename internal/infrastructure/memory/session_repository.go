package memory

import (
	"context"
	"sync"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.TseSessionRepository = (*SessionRepo)(nil)

type envelopeKey struct {
	sessionID string
	number    uint64
}

// SessionRepo implementación en memoria de TseSessionRepository.
type SessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*entity.TseSession // clave: ID
	byClient  map[string]string             // org/site/client -> ID
	envelopes map[envelopeKey]*entity.TseTransaction
}

// NewSessionRepository construye el adaptador.
func NewSessionRepository() *SessionRepo {
	return &SessionRepo{
		sessions:  make(map[string]*entity.TseSession),
		byClient:  make(map[string]string),
		envelopes: make(map[envelopeKey]*entity.TseTransaction),
	}
}

func sessionClientKey(orgID, siteID, clientID string) string {
	return orgID + "/" + siteID + "/" + clientID
}

// Create persiste la sesión; conflicto si el clientID ya tiene una.
func (r *SessionRepo) Create(_ context.Context, session *entity.TseSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionClientKey(session.OrgID, session.SiteID, session.ClientID)
	if _, ok := r.byClient[key]; ok {
		return domain.ErrAlreadyInitialized
	}
	cp := *session
	cp.KeyMaterial = append([]byte(nil), session.KeyMaterial...)
	r.sessions[session.ID] = &cp
	r.byClient[key] = session.ID
	return nil
}

// GetByClientID devuelve una copia de la sesión, o nil, nil si no existe.
func (r *SessionRepo) GetByClientID(_ context.Context, orgID, siteID, clientID string) (*entity.TseSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byClient[sessionClientKey(orgID, siteID, clientID)]
	if !ok {
		return nil, nil
	}
	cp := *r.sessions[id]
	cp.KeyMaterial = append([]byte(nil), r.sessions[id].KeyMaterial...)
	return &cp, nil
}

// Update persiste estado y auto-test sin tocar contadores ni clave.
func (r *SessionRepo) Update(_ context.Context, session *entity.TseSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Status = session.Status
	stored.LastSelfTest = session.LastSelfTest
	stored.UpdatedAt = session.UpdatedAt
	return nil
}

// NextTransactionCounter emisión atómica, mismo contrato que DeviceRepo.
func (r *SessionRepo) NextTransactionCounter(_ context.Context, sessionID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	s.TransactionCounter++
	return s.TransactionCounter, nil
}

// NextSignatureCounter emisión atómica del contador de firma.
func (r *SessionRepo) NextSignatureCounter(_ context.Context, sessionID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	s.SignatureCounter++
	return s.SignatureCounter, nil
}

// CreateEnvelope persiste el sobre abierto por Start.
func (r *SessionRepo) CreateEnvelope(_ context.Context, envelope *entity.TseTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := envelopeKey{sessionID: envelope.SessionID, number: envelope.Number}
	if _, ok := r.envelopes[key]; ok {
		return domain.ErrConflict
	}
	cp := *envelope
	r.envelopes[key] = &cp
	return nil
}

// GetEnvelope devuelve una copia del sobre, o nil, nil si nunca fue iniciado.
func (r *SessionRepo) GetEnvelope(_ context.Context, sessionID string, number uint64) (*entity.TseTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.envelopes[envelopeKey{sessionID: sessionID, number: number}]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// UpdateEnvelope persiste el cierre del sobre.
func (r *SessionRepo) UpdateEnvelope(_ context.Context, envelope *entity.TseTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := envelopeKey{sessionID: envelope.SessionID, number: envelope.Number}
	if _, ok := r.envelopes[key]; !ok {
		return domain.ErrNotFound
	}
	cp := *envelope
	r.envelopes[key] = &cp
	return nil
}
