package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotel_rates/internal/domain"
	"hotel_rates/internal/rateplan"
)

type ConfigService struct {
	repo      domain.ConfigRepository
	pms       domain.PMS
	cache     domain.Cache
	heuristic rateplan.Heuristic
}

func NewConfigService(r domain.ConfigRepository, pms domain.PMS, cache domain.Cache) *ConfigService {
	return &ConfigService{repo: r, pms: pms, cache: cache, heuristic: rateplan.Default}
}

func (s *ConfigService) GetConfig(ctx context.Context, hotelID string) (domain.HotelPricingConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, hotelID)
	if err != nil {
		return domain.HotelPricingConfig{}, err
	}
	return cfg.WithDefaults(), nil
}

// SaveConfig validates and stores the whole config as one unit. The rate_id_map
// belongs to SyncRatePlans: a save that carries no map keeps the stored one.
func (s *ConfigService) SaveConfig(ctx context.Context, cfg domain.HotelPricingConfig) error {
	keepMap := len(cfg.RateIDMap) == 0
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := s.repo.UpdateConfig(ctx, cfg.HotelID, func(cur *domain.HotelPricingConfig) error {
		m := cur.RateIDMap
		*cur = cfg
		if keepMap {
			cur.RateIDMap = m
		}
		return nil
	})
	if errors.Is(err, domain.ErrConfigMissing) {
		err = s.repo.SaveConfig(ctx, cfg)
	}
	if err != nil {
		return fmt.Errorf("save config %s: %w", cfg.HotelID, err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, ContextCacheKey(cfg.HotelID))
	}
	return nil
}

// SyncRatePlans rebuilds the hotel's rate_id_map from the PMS catalog inside one
// config transaction. Room types the resolver cannot map are logged and left out.
func (s *ConfigService) SyncRatePlans(ctx context.Context, hotelID, pmsPropertyID string) (map[string]string, error) {
	var (
		rooms []domain.RoomType
		plans []domain.RatePlan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rooms, err = s.pms.GetRoomTypes(gctx, pmsPropertyID)
		return err
	})
	g.Go(func() (err error) {
		plans, err = s.pms.GetRatePlans(gctx, pmsPropertyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch pms catalog: %w", err)
	}

	m := s.heuristic.BuildRateIDMap(rooms, plans)
	for _, rt := range rooms {
		if _, ok := m[rt.ID]; !ok {
			log.Warn().Str("hotel_id", hotelID).Str("room_type_id", rt.ID).Str("room_type", rt.Name).
				Msg("no sellable rate plan for room type; pushes for it will be skipped")
		}
	}

	err := s.repo.UpdateConfig(ctx, hotelID, func(cfg *domain.HotelPricingConfig) error {
		cfg.RateIDMap = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, ContextCacheKey(hotelID))
	}
	log.Info().Str("hotel_id", hotelID).Int("room_types", len(rooms)).Int("mapped", len(m)).Msg("rate plans synced")
	return m, nil
}
