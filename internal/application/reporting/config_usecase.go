package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

// ConfigUseCase administra la configuración fiscal por sitio (jurisdicción,
// algoritmo de firma, moneda). Sin ella el cierre diario es NOT_CONFIGURED.
type ConfigUseCase struct {
	repo repository.SiteConfigRepository
	now  func() time.Time
}

// NewConfigUseCase construye el caso de uso.
func NewConfigUseCase(repo repository.SiteConfigRepository) *ConfigUseCase {
	return &ConfigUseCase{repo: repo, now: time.Now}
}

// Set vincula la jurisdicción del sitio. Jurisdicción y algoritmo pertenecen a
// listas cerradas; cualquier valor fuera de ellas es ErrInvalidInput.
func (uc *ConfigUseCase) Set(ctx context.Context, orgID, siteID string, in dto.SetFiscalConfigRequest) error {
	if !entity.ValidJurisdiction(in.Jurisdiction) {
		return fmt.Errorf("%w: jurisdicción %q", domain.ErrInvalidInput, in.Jurisdiction)
	}
	algorithm, err := fiscal.ParseAlgorithm(in.Algorithm)
	if err != nil {
		return err
	}
	return uc.repo.Set(ctx, &entity.SiteFiscalConfig{
		OrgID:        orgID,
		SiteID:       siteID,
		Jurisdiction: in.Jurisdiction,
		Algorithm:    algorithm,
		Currency:     in.Currency,
		UpdatedAt:    uc.now().UTC(),
	})
}

// Get devuelve la configuración del sitio, o nil sin error si no está configurado.
func (uc *ConfigUseCase) Get(ctx context.Context, orgID, siteID string) (*entity.SiteFiscalConfig, error) {
	return uc.repo.Get(ctx, orgID, siteID)
}
