package paymentExecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrSettlementNotFound     = errors.New("settlement reference not found")
	ErrSettlementNotConfirmed = errors.New("settlement is not confirmed")
	ErrExecutorUnavailable    = errors.New("payment executor unavailable")
)

type SettlementStatus string

const (
	SettlementStatus_Pending   SettlementStatus = "pending"
	SettlementStatus_Confirmed SettlementStatus = "confirmed"
	SettlementStatus_Failed    SettlementStatus = "failed"
)

type Settlement struct {
	Reference     string           `json:"reference"`
	Status        SettlementStatus `json:"status"`
	WalletAddress string           `json:"walletAddress"`
	Amount        string           `json:"amount"`
	SettledAt     *time.Time       `json:"settledAt"`
}

// Client talks to the service that actually moves funds. The engine never pays
// out itself; it only asks whether a settlement reference it was handed is real.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

func NewClient(baseUrl string, apiKey string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: strings.TrimRight(baseUrl, "/"),
		apiKey:  apiKey,
		logger:  l,
	}
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) GetSettlement(ctx context.Context, reference string) (*Settlement, error) {
	endpoint := fmt.Sprintf("%s/v1/settlements/%s", c.baseURL, url.PathEscape(reference))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: '%s'", ErrSettlementNotFound, reference)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrExecutorUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var settlement Settlement
	if err := json.Unmarshal(body, &settlement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &settlement, nil
}

// VerifySettlement returns nil only if the executor reports reference as confirmed.
func (c *Client) VerifySettlement(ctx context.Context, reference string) error {
	settlement, err := c.GetSettlement(ctx, reference)
	if err != nil {
		c.logger.Sugar().Warnw("Failed to verify settlement",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return err
	}
	if settlement.Status != SettlementStatus_Confirmed {
		return fmt.Errorf("%w: '%s' is %s", ErrSettlementNotConfirmed, reference, settlement.Status)
	}
	return nil
}
