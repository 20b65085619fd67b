// Package entitlement answers whether an actor's subscription includes a
// feature. The billing system owns the data; this package only asks.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FeatureDischargeWizard gates discharge output generation.
const FeatureDischargeWizard = "discharge_wizard"

type Checker interface {
	HasFeature(ctx context.Context, actorID uuid.UUID, feature string) (bool, error)
}

// Static grants a fixed feature set to every actor. Development only.
type Static map[string]bool

func (s Static) HasFeature(_ context.Context, _ uuid.UUID, feature string) (bool, error) {
	return s[feature], nil
}

// RemoteChecker queries the billing service's entitlement endpoint.
type RemoteChecker struct {
	client *resty.Client
}

type featureResponse struct {
	Enabled bool `json:"enabled"`
}

func NewRemoteChecker(baseURL, apiKey string) *RemoteChecker {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &RemoteChecker{client: client}
}

func (r *RemoteChecker) HasFeature(ctx context.Context, actorID uuid.UUID, feature string) (bool, error) {
	var out featureResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"actor":   actorID.String(),
			"feature": feature,
		}).
		SetResult(&out).
		Get("/v1/users/{actor}/features/{feature}")
	if err != nil {
		return false, fmt.Errorf("entitlement request: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, fmt.Errorf("entitlement service returned status %d", resp.StatusCode())
	}
	return out.Enabled, nil
}

// CachedChecker keeps answers from next in redis for ttl. Cache failures
// degrade to a direct lookup.
type CachedChecker struct {
	next   Checker
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedChecker(next Checker, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedChecker {
	return &CachedChecker{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(actorID uuid.UUID, feature string) string {
	return "entitlement:" + actorID.String() + ":" + feature
}

func (c *CachedChecker) HasFeature(ctx context.Context, actorID uuid.UUID, feature string) (bool, error) {
	key := cacheKey(actorID, feature)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("feature", feature).Msg("entitlement cache read failed")
	}

	ok, err := c.next.HasFeature(ctx, actorID, feature)
	if err != nil {
		return false, err
	}

	stored := "0"
	if ok {
		stored = "1"
	}
	if err := c.rdb.Set(ctx, key, stored, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("feature", feature).Msg("entitlement cache write failed")
	}
	return ok, nil
}

// Invalidate drops a cached answer, e.g. after a billing webhook.
func (c *CachedChecker) Invalidate(ctx context.Context, actorID uuid.UUID, feature string) error {
	return c.rdb.Del(ctx, cacheKey(actorID, feature)).Err()
}
