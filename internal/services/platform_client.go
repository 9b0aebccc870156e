package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adpilot/backend/internal/models"
	"go.uber.org/zap"
)

// PlatformClient talks to the entity mutation service and the snapshot
// provider in front of the ads platform. Mutations are not assumed
// idempotent, so callers must not retry on their own.
type PlatformClient struct {
	mutationURL string
	snapshotURL string
	httpClient  *http.Client
	log         *zap.Logger
}

func NewPlatformClient(mutationURL, snapshotURL string, log *zap.Logger) *PlatformClient {
	return &PlatformClient{
		mutationURL: strings.TrimRight(mutationURL, "/"),
		snapshotURL: strings.TrimRight(snapshotURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type mutateRequest struct {
	EntityType string             `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Field      string             `json:"field"`
	NewValue   models.ActionValue `json:"new_value"`
}

type mutateResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Mutate applies one field change. A transport error and an explicit
// failure response are both returned as errors; the pipeline records them
// identically.
func (c *PlatformClient) Mutate(ctx context.Context, accountID, entityType, entityID, field string, newValue models.ActionValue) error {
	body, err := json.Marshal(mutateRequest{
		EntityType: entityType,
		EntityID:   entityID,
		Field:      field,
		NewValue:   newValue,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/internal/accounts/%s/mutate", c.mutationURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mutation service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mutation service returned %d: %s", resp.StatusCode, string(b))
	}

	var result mutateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("mutation service response unreadable: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%s: %s", result.Code, result.Message)
	}
	return nil
}

type snapshotResponse struct {
	Entities []models.EntitySnapshot `json:"entities"`
}

// FetchSnapshot returns current entity state for guardrail evaluation.
// The provider is eventually consistent with the platform.
func (c *PlatformClient) FetchSnapshot(ctx context.Context, accountID string, entityKeys []string) (*models.Snapshot, error) {
	body, _ := json.Marshal(map[string]any{"entity_keys": entityKeys})

	url := fmt.Sprintf("%s/internal/accounts/%s/snapshot", c.snapshotURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("snapshot provider returned %d: %s", resp.StatusCode, string(b))
	}

	var result snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	snap := &models.Snapshot{Entities: make(map[string]models.EntitySnapshot, len(result.Entities))}
	for _, e := range result.Entities {
		snap.Entities[e.EntityType+":"+e.EntityID] = e
	}
	return snap, nil
}
