package unisphere

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

var errStillPresent = errors.New("resource still present")

// WaitConfig bounds the poll that follows an accepted delete.
type WaitConfig struct {
	MaxAttempts     int           // GET attempts, at least 1
	InitialInterval time.Duration // First backoff
	MaxInterval     time.Duration // Backoff cap
	Multiplier      float64       // Backoff multiplier
	Timeout         time.Duration // Overall budget
}

// DefaultWaitConfig returns sensible defaults for the delete wait.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		MaxAttempts:     5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		Timeout:         2 * time.Minute,
	}
}

// WaitGone polls a resource until the API reports 404.
//
// 200 means the resource is still being removed and the poll continues with
// exponential backoff. Any other status stops the poll with an APIError.
// Running out of attempts or time yields ErrDeleteTimeout; transport errors
// are retried within the same budget.
func (c *Client) WaitGone(ctx context.Context, symmID, collection, id string, cfg WaitConfig) (*Response, error) {
	def := DefaultWaitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier

	attempts := 0
	poll := func() (*Response, error) {
		attempts++
		resp, err := c.Get(waitCtx, symmID, collection, id)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return resp, nil
		case http.StatusOK:
			return resp, errStillPresent
		default:
			return resp, backoff.Permanent(NewAPIError(fmt.Sprintf("wait for %s %s removal", collection, id), resp))
		}
	}

	resp, err := backoff.Retry(waitCtx, poll,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(cfg.Timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().
				Err(err).
				Str("collection", collection).
				Str("id", id).
				Int("attempt", attempts).
				Dur("backoff", next).
				Msg("Resource not gone yet")
		}),
	)
	if err == nil {
		return resp, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resp, apiErr
	}
	if ctx.Err() != nil {
		return resp, ctx.Err()
	}
	if waitCtx.Err() != nil || errors.Is(err, errStillPresent) || errors.Is(err, context.DeadlineExceeded) {
		return resp, fmt.Errorf("%w: %s %s still present after %d attempts", ErrDeleteTimeout, collection, id, attempts)
	}
	return resp, fmt.Errorf("wait for %s %s removal: %w", collection, id, err)
}

// WaitHostGone waits for a deleted host to disappear
func (c *Client) WaitHostGone(ctx context.Context, symmID, hostID string, cfg WaitConfig) (*Response, error) {
	return c.WaitGone(ctx, symmID, CollectionHost, hostID, cfg)
}

// WaitStorageGroupGone waits for a deleted storage group to disappear
func (c *Client) WaitStorageGroupGone(ctx context.Context, symmID, sgID string, cfg WaitConfig) (*Response, error) {
	return c.WaitGone(ctx, symmID, CollectionStorageGroup, sgID, cfg)
}
