package paymentExecutor

import (
	"context"
	"net/http"
	"testing"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

const testBaseUrl = "https://payments.test"

func Test_PaymentExecutorClient(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	transport := httpmock.NewMockTransport()
	client := NewClient(testBaseUrl+"/", "secret", l)
	client.SetHttpClient(&http.Client{Transport: transport})

	transport.RegisterResponder("GET", testBaseUrl+"/v1/settlements/tx-confirmed",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer secret", req.Header.Get("authorization"))
			return httpmock.NewStringResponse(200, `{"reference":"tx-confirmed","status":"confirmed","walletAddress":"0xabc","amount":"1.5"}`), nil
		},
	)
	transport.RegisterResponder("GET", testBaseUrl+"/v1/settlements/tx-pending",
		httpmock.NewStringResponder(200, `{"reference":"tx-pending","status":"pending"}`))
	transport.RegisterResponder("GET", testBaseUrl+"/v1/settlements/tx-missing",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))
	transport.RegisterResponder("GET", testBaseUrl+"/v1/settlements/tx-down",
		httpmock.NewStringResponder(503, `upstream unavailable`))

	ctx := context.Background()

	t.Run("Should accept a confirmed settlement", func(t *testing.T) {
		assert.Nil(t, client.VerifySettlement(ctx, "tx-confirmed"))

		settlement, err := client.GetSettlement(ctx, "tx-confirmed")
		assert.Nil(t, err)
		assert.Equal(t, "0xabc", settlement.WalletAddress)
	})

	t.Run("Should reject a settlement that is not confirmed", func(t *testing.T) {
		assert.ErrorIs(t, client.VerifySettlement(ctx, "tx-pending"), ErrSettlementNotConfirmed)
	})

	t.Run("Should report unknown references", func(t *testing.T) {
		assert.ErrorIs(t, client.VerifySettlement(ctx, "tx-missing"), ErrSettlementNotFound)
	})

	t.Run("Should treat server errors as the executor being unavailable", func(t *testing.T) {
		assert.ErrorIs(t, client.VerifySettlement(ctx, "tx-down"), ErrExecutorUnavailable)
	})
}
