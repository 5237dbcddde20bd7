package openbanking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tavola/internal/domain/institution"
	ofclient "tavola/internal/infrastructure/openbanking"
)

// InstitutionSyncResult summarizes a catalogue refresh.
type InstitutionSyncResult struct {
	Country  string `json:"country"`
	Found    int    `json:"found"`
	Upserted int    `json:"upserted"`
	Failed   int    `json:"failed"`
}

// InstitutionSynchronizer keeps the local institution catalogue in step with the provider.
type InstitutionSynchronizer struct {
	tokens TokenSource
	client ofclient.ClientInterface
	repo   institution.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewInstitutionSynchronizer(tokens TokenSource, client ofclient.ClientInterface, repo institution.Repository, logger *zap.Logger) *InstitutionSynchronizer {
	return &InstitutionSynchronizer{
		tokens: tokens,
		client: client,
		repo:   repo,
		logger: logger.Named("institution_sync"),
		now:    time.Now,
	}
}

// RefreshInstitutions fully upserts the provider's institutions for a country.
func (s *InstitutionSynchronizer) RefreshInstitutions(ctx context.Context, country string) (*InstitutionSyncResult, error) {
	country = strings.ToUpper(strings.TrimSpace(country))

	ctx, span := syncTracer.Start(ctx, "institutions.refresh")
	defer span.End()

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.client.ListInstitutions(ctx, token, country)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}

	result := &InstitutionSyncResult{Country: country, Found: len(list)}
	now := s.now()
	for _, p := range list {
		inst := institution.Institution{
			ID:                      p.ID,
			Name:                    p.Name,
			BIC:                     p.BIC,
			LogoURL:                 p.Logo,
			Countries:               p.Countries,
			SupportedFeatures:       p.SupportedFeatures,
			SupportedPayments:       p.SupportedPayments,
			HistoricalDaysSupported: p.HistoricalDays(),
			UpdatedAt:               now,
		}
		if err := inst.Validate(); err != nil {
			result.Failed++
			s.logger.Warn("skipping institution", zap.String("institution_id", p.ID), zap.Error(err))
			continue
		}
		if err := s.repo.Upsert(ctx, inst); err != nil {
			result.Failed++
			s.logger.Error("failed to upsert institution", zap.String("institution_id", p.ID), zap.Error(err))
			continue
		}
		result.Upserted++
	}

	s.logger.Info("institutions refreshed",
		zap.String("country", country),
		zap.Int("found", result.Found),
		zap.Int("upserted", result.Upserted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ListInstitutions reads the local catalogue.
func (s *InstitutionSynchronizer) ListInstitutions(ctx context.Context, country string) ([]*institution.Institution, error) {
	return s.repo.ListByCountry(ctx, strings.ToUpper(strings.TrimSpace(country)))
}
