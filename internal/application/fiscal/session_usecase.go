package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

// SessionUseCase implementa el protocolo start/finish del TSE simulado. La
// identidad criptográfica (serial de certificado, clave pública, algoritmo) se
// fija en Initialize y no cambia durante la vida de la sesión; toda mutación de
// un clientID se serializa detrás del serializador de identidad.
type SessionUseCase struct {
	sessions  repository.TseSessionRepository
	locker    IdentityLocker
	algorithm string
	now       func() time.Time
}

// NewSessionUseCase construye el caso de uso. El algoritmo viene validado desde
// la configuración (fiscal.ParseAlgorithm al cargar), aquí se asume correcto.
func NewSessionUseCase(sessions repository.TseSessionRepository, locker IdentityLocker, algorithm string) *SessionUseCase {
	return &SessionUseCase{sessions: sessions, locker: locker, algorithm: algorithm, now: time.Now}
}

// Initialize crea la sesión del clientID: genera el par de claves, fija el
// serial de certificado y deja la sesión INITIALIZED con contadores en 0.
// Re-inicializar un clientID existente es ErrAlreadyInitialized.
func (uc *SessionUseCase) Initialize(ctx context.Context, orgID, siteID, clientID string) (*dto.SessionSnapshotResponse, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id requerido", domain.ErrInvalidInput)
	}

	var session *entity.TseSession
	err := uc.locker.WithLock(ctx, sessionLockKey(orgID, siteID, clientID), func() error {
		existing, err := uc.sessions.GetByClientID(ctx, orgID, siteID, clientID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyInitialized
		}

		signer, keyMaterial, err := fiscal.NewSigner(uc.algorithm)
		if err != nil {
			return err
		}
		now := uc.now().UTC()
		session = &entity.TseSession{
			ID:          uuid.New().String(),
			OrgID:       orgID,
			SiteID:      siteID,
			ClientID:    clientID,
			Status:      entity.TseSessionInitialized,
			Algorithm:   signer.Algorithm(),
			CertSerial:  fiscal.NewCertSerial(),
			PublicKey:   signer.PublicKeyBase64(),
			KeyMaterial: keyMaterial,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return uc.sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return toSessionSnapshot(session), nil
}

// StartTransaction reserva el siguiente número de transacción y abre el sobre.
// El número es durable antes de responder: una caída después de Start nunca
// reutiliza el número.
func (uc *SessionUseCase) StartTransaction(ctx context.Context, orgID, siteID string, in dto.StartTransactionRequest) (*dto.StartTransactionResponse, error) {
	var resp *dto.StartTransactionResponse
	err := uc.locker.WithLock(ctx, sessionLockKey(orgID, siteID, in.ClientID), func() error {
		session, err := uc.requireSession(ctx, orgID, siteID, in.ClientID)
		if err != nil {
			return err
		}

		number, err := uc.sessions.NextTransactionCounter(ctx, session.ID)
		if err != nil {
			return err
		}
		started := uc.now().UTC()
		envelope := &entity.TseTransaction{
			SessionID:   session.ID,
			Number:      number,
			ProcessType: in.ProcessType,
			ProcessData: in.ProcessData,
			StartedAt:   started,
		}
		if err := uc.sessions.CreateEnvelope(ctx, envelope); err != nil {
			return err
		}
		resp = &dto.StartTransactionResponse{TransactionNumber: number, StartTime: started}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// FinishTransaction cierra el sobre: asigna el contador de firma, firma el
// payload canónico y arma el QR. Cerrar un número nunca iniciado es
// ErrNotStarted; cerrarlo dos veces es ErrAlreadyFinished.
func (uc *SessionUseCase) FinishTransaction(ctx context.Context, orgID, siteID string, in dto.FinishTransactionRequest) (*dto.FinishTransactionResponse, error) {
	var resp *dto.FinishTransactionResponse
	err := uc.locker.WithLock(ctx, sessionLockKey(orgID, siteID, in.ClientID), func() error {
		session, err := uc.requireSession(ctx, orgID, siteID, in.ClientID)
		if err != nil {
			return err
		}
		envelope, err := uc.sessions.GetEnvelope(ctx, session.ID, in.TransactionNumber)
		if err != nil {
			return err
		}
		if envelope == nil {
			return domain.ErrNotStarted
		}
		if envelope.Finished() {
			return domain.ErrAlreadyFinished
		}

		signer, err := fiscal.SignerFromKey(session.Algorithm, session.KeyMaterial)
		if err != nil {
			return err
		}
		sigCounter, err := uc.sessions.NextSignatureCounter(ctx, session.ID)
		if err != nil {
			return err
		}

		// Datos finales del proceso: Finish puede traer la versión definitiva.
		processType := in.ProcessType
		if processType == "" {
			processType = envelope.ProcessType
		}
		processData := in.ProcessData
		if processData == "" {
			processData = envelope.ProcessData
		}

		end := uc.now().UTC()
		if !end.After(envelope.StartedAt) {
			end = envelope.StartedAt.Add(time.Nanosecond)
		}

		payload := fiscal.SignaturePayload(in.ClientID, envelope.Number, envelope.StartedAt, end, processType, processData, sigCounter)
		signature, err := signer.Sign(payload)
		if err != nil {
			return err
		}

		envelope.ProcessType = processType
		envelope.ProcessData = processData
		envelope.FinishedAt = &end
		envelope.SignatureCounter = sigCounter
		envelope.Signature = signature
		envelope.QRCodeData = fiscal.BuildQRPayload(in.ClientID, envelope.Number, envelope.StartedAt, end, processType, processData, sigCounter, signature)
		if err := uc.sessions.UpdateEnvelope(ctx, envelope); err != nil {
			return err
		}

		resp = &dto.FinishTransactionResponse{
			TransactionNumber:  envelope.Number,
			SignatureCounter:   sigCounter,
			Signature:          signature,
			CertificateSerial:  session.CertSerial,
			SignatureAlgorithm: session.Algorithm,
			StartTime:          envelope.StartedAt,
			EndTime:            end,
			PublicKeyBase64:    session.PublicKey,
			QRCodeData:         envelope.QRCodeData,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SelfTest ejecuta el auto-test de la sesión. ErrNotInitialized si el clientID
// nunca fue inicializado.
func (uc *SessionUseCase) SelfTest(ctx context.Context, orgID, siteID, clientID string) (*dto.SelfTestResponse, error) {
	var result entity.SelfTestResult
	err := uc.locker.WithLock(ctx, sessionLockKey(orgID, siteID, clientID), func() error {
		session, err := uc.requireSession(ctx, orgID, siteID, clientID)
		if err != nil {
			return err
		}
		result = entity.SelfTestResult{Passed: true, CheckedAt: uc.now().UTC()}
		session.LastSelfTest = &result
		session.UpdatedAt = result.CheckedAt
		return uc.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return &dto.SelfTestResponse{Passed: result.Passed, CheckedAt: result.CheckedAt}, nil
}

// Snapshot devuelve el estado observable de la sesión.
func (uc *SessionUseCase) Snapshot(ctx context.Context, orgID, siteID, clientID string) (*dto.SessionSnapshotResponse, error) {
	session, err := uc.sessions.GetByClientID(ctx, orgID, siteID, clientID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotInitialized
	}
	return toSessionSnapshot(session), nil
}

func (uc *SessionUseCase) requireSession(ctx context.Context, orgID, siteID, clientID string) (*entity.TseSession, error) {
	session, err := uc.sessions.GetByClientID(ctx, orgID, siteID, clientID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != entity.TseSessionInitialized {
		return nil, domain.ErrNotInitialized
	}
	return session, nil
}

func sessionLockKey(orgID, siteID, clientID string) string {
	return "tse/" + orgID + "/" + siteID + "/" + clientID
}

func toSessionSnapshot(s *entity.TseSession) *dto.SessionSnapshotResponse {
	resp := &dto.SessionSnapshotResponse{
		ClientID:           s.ClientID,
		Status:             s.Status,
		Algorithm:          s.Algorithm,
		CertificateSerial:  s.CertSerial,
		PublicKeyBase64:    s.PublicKey,
		TransactionCounter: s.TransactionCounter,
		SignatureCounter:   s.SignatureCounter,
	}
	if s.LastSelfTest != nil {
		resp.LastSelfTest = &dto.SelfTestResponse{
			Passed:       s.LastSelfTest.Passed,
			ErrorMessage: s.LastSelfTest.ErrorMessage,
			CheckedAt:    s.LastSelfTest.CheckedAt,
		}
	}
	return resp
}
