package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const guardrailCacheTTL = 5 * time.Minute

// GuardrailService reads and updates per-account guardrail configuration,
// with a redis read-through cache in front of postgres.
type GuardrailService struct {
	repo      *repositories.GuardrailRepo
	rdb       *redis.Client
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewGuardrailService(
	repo *repositories.GuardrailRepo,
	rdb *redis.Client,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *GuardrailService {
	return &GuardrailService{
		repo:      repo,
		rdb:       rdb,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

func cacheKey(accountID string) string {
	return "guardrails:" + accountID
}

// Get returns the account's config, falling back to process defaults when
// none is stored yet.
func (s *GuardrailService) Get(ctx context.Context, accountID string) (*models.GuardrailConfig, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey(accountID)).Bytes(); err == nil {
			var cached models.GuardrailConfig
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	cfg, err := s.repo.Get(ctx, accountID)
	if errors.Is(err, repositories.ErrConfigNotFound) {
		cfg = s.cfg.DefaultGuardrails(accountID)
	} else if err != nil {
		return nil, err
	}

	s.cache(ctx, cfg)
	return cfg, nil
}

// Update stores new settings, invalidating the cache and notifying
// connected sessions.
func (s *GuardrailService) Update(ctx context.Context, cfg *models.GuardrailConfig) error {
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return err
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey(cfg.AccountID)).Err(); err != nil {
			s.log.Warn("failed to invalidate guardrail cache",
				zap.String("account_id", cfg.AccountID), zap.Error(err))
		}
	}
	s.cache(ctx, cfg)

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.StreamGuardrails, events.Event{
			Type: events.EventGuardrailConfigUpdated,
			Payload: map[string]any{
				"account_id": cfg.AccountID,
				"enabled":    cfg.Enabled,
			},
		})
	}

	s.log.Info("guardrail config updated",
		zap.String("account_id", cfg.AccountID),
		zap.Bool("enabled", cfg.Enabled),
	)
	return nil
}

func (s *GuardrailService) cache(ctx context.Context, cfg *models.GuardrailConfig) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(cfg.AccountID), raw, guardrailCacheTTL).Err(); err != nil {
		s.log.Warn("failed to cache guardrail config",
			zap.String("account_id", cfg.AccountID), zap.Error(err))
	}
}
