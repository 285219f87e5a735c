package authorize

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/constants"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// BankingClient confirms payment submissions and cancellations against the
// core banking settlement backend.
type BankingClient struct {
	httpClient *http.Client
	cfg        *config.PaymentsConfig
	logger     *log.Logger
}

// NewBankingClient creates a settlement backend client.
func NewBankingClient(cfg *config.PaymentsConfig) *BankingClient {
	return &BankingClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     log.GetLogger().With(log.String(log.LoggerKeyComponentName, "BankingClient")),
	}
}

// SubmitPayment hands a fully authorised payment over for settlement. The
// backend acknowledges acceptance with 202.
func (c *BankingClient) SubmitPayment(ctx context.Context, paymentID, receipt string) error {
	return c.post(ctx, c.cfg.GetSubmissionURL(paymentID), paymentID, receipt, "submission")
}

// CancelPayment asks the settlement backend to cancel a payment. The backend
// acknowledges acceptance with 202.
func (c *BankingClient) CancelPayment(ctx context.Context, paymentID, receipt string) error {
	return c.post(ctx, c.cfg.GetCancellationURL(paymentID), paymentID, receipt, "cancellation")
}

func (c *BankingClient) post(ctx context.Context, url, paymentID, receipt, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(receipt))
	if err != nil {
		return fmt.Errorf("failed to build payment %s request: %w", operation, err)
	}
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Payment backend call failed",
			log.String("operation", operation), log.String("payment_id", paymentID), log.Error(err))
		return fmt.Errorf("payment %s call failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		c.logger.Error("Payment backend declined the request",
			log.String("operation", operation),
			log.String("payment_id", paymentID),
			log.Int("status_code", resp.StatusCode))
		return fmt.Errorf("payment %s declined with status %d", operation, resp.StatusCode)
	}

	c.logger.Info("Payment backend accepted the request",
		log.String("operation", operation), log.String("payment_id", paymentID))
	return nil
}
