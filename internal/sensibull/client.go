// Package sensibull fetches option chains from the Sensibull instruments API.
package sensibull

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rewired-gh/putscout/internal/models"
)

// Client provides access to the Sensibull option chain API
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Chain is the full option chain of one underlying.
type Chain struct {
	Underlying string
	Options    []models.Option
}

type chainResponse struct {
	Data []models.Option `json:"data"`
}

// NewClient creates a new Sensibull client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// FetchChain retrieves every listed option of the underlying.
func (c *Client) FetchChain(ctx context.Context, ticker string) (*Chain, error) {
	body, err := c.doRequest(ctx, c.baseURL+"/v1/instruments/"+url.PathEscape(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option chain for %s: %w", ticker, err)
	}

	var resp chainResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode option chain for %s: %w", ticker, err)
	}

	for i := range resp.Data {
		if resp.Data[i].UnderlyingInstrument == "" {
			resp.Data[i].UnderlyingInstrument = ticker
		}
	}

	return &Chain{Underlying: ticker, Options: resp.Data}, nil
}

// OptionLastPrice re-reads the chain and returns the current price of one
// option. The boolean is false when the chain no longer lists it.
func (c *Client) OptionLastPrice(ctx context.Context, tradingSymbol, underlying string) (float64, bool, error) {
	chain, err := c.FetchChain(ctx, underlying)
	if err != nil {
		return 0, false, err
	}
	for _, o := range chain.Options {
		if o.TradingSymbol == tradingSymbol {
			return o.LastPrice, true, nil
		}
	}
	return 0, false, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("invalid response code found: %d, expected: 200", resp.StatusCode)
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
