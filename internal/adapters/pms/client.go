package pms

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/domain"
)

type Client struct {
	base  string
	hc    *http.Client
	token string
	rl    *rate.Limiter
}

var _ domain.PMS = (*Client)(nil)

func New(base, token string, rps int) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("PMS token is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		hc:    &http.Client{Timeout: 20 * time.Second},
		token: token,
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

// PostRate sets one rate for a rate plan on a date and returns the PMS job reference.
func (c *Client) PostRate(ctx context.Context, propertyID, ratePlanID, date string, r float64) (string, error) {
	body := map[string]any{"ratePlanId": ratePlanID, "date": date, "rate": r}
	u := fmt.Sprintf("%s/properties/%s/rates", c.base, url.PathEscape(propertyID))
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, "post_rate", u, body, &out); err != nil {
		return "", err
	}
	if ok, set := out["success"].(bool); set && !ok {
		return "", fmt.Errorf("%w: %s", ErrRejected, lookupStr(out, "message"))
	}
	return mapJobReference(out), nil
}

func (c *Client) GetRates(ctx context.Context, propertyID, roomTypeID, start, end string) ([]domain.LiveRate, error) {
	q := url.Values{}
	q.Set("roomTypeId", roomTypeID)
	q.Set("start", start)
	q.Set("end", end)
	u := fmt.Sprintf("%s/properties/%s/rates?%s", c.base, url.PathEscape(propertyID), q.Encode())
	var out any
	if err := c.do(ctx, http.MethodGet, "get_rates", u, nil, &out); err != nil {
		return nil, err
	}
	return mapLiveRates(listOf(out)), nil
}

func (c *Client) GetRoomTypes(ctx context.Context, propertyID string) ([]domain.RoomType, error) {
	u := fmt.Sprintf("%s/properties/%s/room-types", c.base, url.PathEscape(propertyID))
	var out any
	if err := c.do(ctx, http.MethodGet, "get_room_types", u, nil, &out); err != nil {
		return nil, err
	}
	return mapRoomTypes(listOf(out)), nil
}

func (c *Client) GetRatePlans(ctx context.Context, propertyID string) ([]domain.RatePlan, error) {
	u := fmt.Sprintf("%s/properties/%s/rate-plans", c.base, url.PathEscape(propertyID))
	var out any
	if err := c.do(ctx, http.MethodGet, "get_rate_plans", u, nil, &out); err != nil {
		return nil, err
	}
	return mapRatePlans(listOf(out)), nil
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("pms: not found")
	ErrUnauthorized = errors.New("pms: unauthorized")
	ErrForbidden    = errors.New("pms: forbidden")
	ErrRejected     = errors.New("pms: rejected")
)

// do performs a request with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided. A rate post
// sets an absolute value, so replaying it is safe.
func (c *Client) do(ctx context.Context, method, endpoint, u string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hotel-rates/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("pms", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("pms", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("pms: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("pms: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
