package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultBaseUrl = "https://pro-api.coingecko.com/api/v3"

var ErrPriceNotFound = errors.New("price not found")

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *zap.Logger
}

// simplePriceResponse maps a coin id to its prices keyed by currency.
type simplePriceResponse map[string]map[string]json.Number

func NewClient(apiKey string, baseUrl string, logger *zap.Logger) *Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseUrl, "/"),
		logger:  logger,
	}
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

// GetSimplePrice fetches the current price of coinID in the given currency, e.g. "usd".
func (c *Client) GetSimplePrice(ctx context.Context, coinID string, currency string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("ids", coinID)
	q.Add("vs_currencies", currency)
	q.Add("precision", "full")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	c.logger.Sugar().Debugw("Making CoinGecko request",
		zap.String("url", req.URL.String()),
		zap.String("coinID", coinID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var prices simplePriceResponse
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	price, ok := prices[coinID][currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrPriceNotFound, coinID, currency)
	}
	d, err := decimal.NewFromString(price.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price '%s' for %s: %w", price.String(), coinID, err)
	}
	return d, nil
}
