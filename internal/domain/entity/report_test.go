package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

func newPendingExport() *entity.AuditExport {
	return &entity.AuditExport{
		ID:     "exp-001",
		Status: entity.ExportStatusPending,
	}
}

func TestAuditExport_CicloNormal(t *testing.T) {
	e := newPendingExport()
	now := time.Now().UTC()

	require.NoError(t, e.MarkProcessing())
	require.NoError(t, e.MarkCompleted(500, "/exports/export.zip", "https://files.test/exp-001.zip", now))

	assert.Equal(t, entity.ExportStatusCompleted, e.Status)
	assert.Equal(t, 500, e.TransactionCount)
	assert.Equal(t, "/exports/export.zip", e.FilePath)
	require.NotNil(t, e.CompletedAt)
}

func TestAuditExport_CompletadoNoPuedeFallar(t *testing.T) {
	e := newPendingExport()
	now := time.Now().UTC()
	require.NoError(t, e.MarkProcessing())
	require.NoError(t, e.MarkCompleted(500, "/exports/export.zip", "https://files.test/exp-001.zip", now))

	err := e.MarkFailed("tarde", now)

	assert.ErrorIs(t, err, domain.ErrTerminalState)
	assert.Equal(t, entity.ExportStatusCompleted, e.Status)
	assert.Empty(t, e.ErrorMessage)
}

func TestAuditExport_FallidoNoPuedeCompletarse(t *testing.T) {
	e := newPendingExport()
	now := time.Now().UTC()
	require.NoError(t, e.MarkProcessing())
	require.NoError(t, e.MarkFailed("disco lleno", now))

	err := e.MarkCompleted(1, "/x.zip", "https://files.test/x.zip", now)

	assert.ErrorIs(t, err, domain.ErrTerminalState)
	assert.Equal(t, entity.ExportStatusFailed, e.Status)
	assert.Equal(t, "disco lleno", e.ErrorMessage)
}

func TestAuditExport_ProcesarDosVecesRechazado(t *testing.T) {
	e := newPendingExport()
	require.NoError(t, e.MarkProcessing())

	err := e.MarkProcessing()

	assert.ErrorIs(t, err, domain.ErrConflict)
}
