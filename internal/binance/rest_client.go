package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"binance-backtest-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	spotBaseURL           = "https://api.binance.com/api/v3"
	spotTestnetBaseURL    = "https://testnet.binance.vision/api/v3"
	futuresBaseURL        = "https://fapi.binance.com/fapi/v1"
	futuresTestnetBaseURL = "https://testnet.binancefuture.com/fapi/v1"

	// MaxKlineLimit is the largest page size the klines endpoints accept.
	MaxKlineLimit = 1000
)

// ClientInterface defines the slice of the Binance REST API this project
// consumes. Callers depend on this interface so tests can substitute doubles.
type ClientInterface interface {
	GetServerTime(ctx context.Context) (int64, error)
	GetHistoricalKlines(ctx context.Context, symbol string, interval Interval, startMs, endMs int64, limit int, market MarketType) ([]Kline, error)
	GetEarliestValidTimestamp(ctx context.Context, symbol string, interval Interval, market MarketType) (int64, error)
}

// RestClient is a client for the Binance REST API, one resty client per
// market so each request hits the right base URL.
type RestClient struct {
	spot    *resty.Client
	futures *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure RestClient implements the interface
var _ ClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client. No credentials are
// needed; all consumed endpoints are public market data.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	spotURL, futURL := spotBaseURL, futuresBaseURL
	if cfg.Testnet {
		spotURL, futURL = spotTestnetBaseURL, futuresTestnetBaseURL
		logger.Warn("Using Binance Testnet")
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		spot:    resty.New().SetBaseURL(spotURL),
		futures: resty.New().SetBaseURL(futURL),
		logger:  logger,
		limiter: limiter,
	}
}

func (c *RestClient) clientFor(market MarketType) *resty.Client {
	if market == MarketFutures {
		return c.futures
	}
	return c.spot
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, client *resty.Client, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	client := c.clientFor(MarketSpot)
	req := client.R().
		SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, client, "GET", "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// klinesPage fetches a single page of klines starting at startMs.
func (c *RestClient) klinesPage(ctx context.Context, symbol string, interval Interval, startMs, endMs int64, limit int, market MarketType) ([]Kline, error) {
	var rows [][]interface{}

	client := c.clientFor(market)
	req := client.R().
		SetResult(&rows).
		SetQueryParam("symbol", symbol).
		SetQueryParam("interval", string(interval)).
		SetQueryParam("startTime", strconv.FormatInt(startMs, 10)).
		SetQueryParam("limit", strconv.Itoa(limit))
	if endMs > 0 {
		req.SetQueryParam("endTime", strconv.FormatInt(endMs, 10))
	}

	resp, err := c.doRequest(ctx, client, "GET", "/klines", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	result := resp.Result().(*[][]interface{})
	klines := make([]Kline, 0, len(*result))
	for _, row := range *result {
		k, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("malformed kline row for %s: %w", symbol, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// GetHistoricalKlines fetches klines in [startMs, endMs] in limit-sized pages
// until the range is exhausted. endMs == 0 means "up to the latest bar".
func (c *RestClient) GetHistoricalKlines(ctx context.Context, symbol string, interval Interval, startMs, endMs int64, limit int, market MarketType) ([]Kline, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}
	step := interval.Duration().Milliseconds()

	var all []Kline
	cursor := startMs
	for {
		batch, err := c.klinesPage(ctx, symbol, interval, cursor, endMs, limit, market)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < limit {
			break
		}
		cursor = batch[len(batch)-1].OpenTime + step
		if endMs > 0 && cursor > endMs {
			break
		}
	}

	c.logger.Debug("Fetched historical klines",
		zap.String("symbol", symbol),
		zap.String("interval", string(interval)),
		zap.Int("bars", len(all)),
	)
	return all, nil
}

// GetEarliestValidTimestamp returns the open time of the very first kline
// Binance has for the symbol/interval/market, in epoch milliseconds. It asks
// for a single kline starting at epoch zero.
func (c *RestClient) GetEarliestValidTimestamp(ctx context.Context, symbol string, interval Interval, market MarketType) (int64, error) {
	klines, err := c.klinesPage(ctx, symbol, interval, 0, 0, 1, market)
	if err != nil {
		return 0, err
	}
	if len(klines) == 0 {
		return 0, fmt.Errorf("no klines available for %s %s on %s", symbol, interval, market)
	}
	return klines[0].OpenTime, nil
}
