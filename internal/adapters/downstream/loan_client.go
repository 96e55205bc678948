// Package downstream holds clients for calls from one service into another.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bes-loan/internal/core/domain"
	"bes-loan/internal/core/services"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const contentType = "application/json"

// LoanClient implements services.LoanLedger over the loan service's HTTP API
type LoanClient struct {
	baseURL    string
	issuer     services.CredentialIssuer
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewLoanClient creates a client for the loan service at baseURL.
// Each call authenticates with a short-lived token minted for the paying user.
func NewLoanClient(baseURL string, issuer services.CredentialIssuer, timeout time.Duration, log logrus.FieldLogger) *LoanClient {
	return &LoanClient{
		baseURL: baseURL,
		issuer:  issuer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type applyPaymentRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	IdempotencyToken string          `json:"idempotency_token"`
}

type loanBalance struct {
	ID              uint            `json:"id"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	Replayed        bool            `json:"replayed"`
}

// envelope mirrors response.Response with a raw payload
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

// ApplyPayment asks the loan service to apply a payment. AlreadyApplied answers
// count as success; anything that did not complete is a TransientNetworkError.
func (c *LoanClient) ApplyPayment(ctx context.Context, req services.LedgerApplyRequest) (*domain.LoanBalance, error) {
	body, err := json.Marshal(applyPaymentRequest{
		Amount:           req.Amount,
		IdempotencyToken: req.IdempotencyToken,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal apply payment request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/loans/%d/payment", c.baseURL, req.LoanID)
	status, env, err := c.do(ctx, http.MethodPut, endpoint, req.Caller, body)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		return decodeBalance(env)
	case status == http.StatusConflict && domain.ErrorKind(env.Kind) == domain.KindAlreadyApplied:
		balance, err := decodeBalance(env)
		if err != nil {
			return nil, err
		}
		balance.Replayed = true
		return balance, nil
	default:
		return nil, remoteError(status, env)
	}
}

// IsPaymentApplied checks whether token was applied to the loan. A 404 means no.
func (c *LoanClient) IsPaymentApplied(ctx context.Context, caller domain.CallerIdentity, loanID uint, token string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/loans/%d/payments/%s", c.baseURL, loanID, url.PathEscape(token))
	status, env, err := c.do(ctx, http.MethodGet, endpoint, caller, nil)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, remoteError(status, env)
	}
}

// do sends one request and decodes the envelope. 5xx responses and transport
// failures come back as errors; other statuses are left to the caller.
func (c *LoanClient) do(ctx context.Context, method, endpoint string, caller domain.CallerIdentity, body []byte) (int, *envelope, error) {
	token, err := c.issuer.IssueOnBehalfOf(caller)
	if err != nil {
		return 0, nil, fmt.Errorf("issue service token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build loan service request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", contentType)
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}

	entry := c.log.WithFields(logrus.Fields{"method": method, "url": endpoint})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		entry.WithError(err).Warn("loan service call failed")
		return 0, nil, domain.NewTransientError("call loan service", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			entry.WithError(cerr).Warn("failed to close loan service response body")
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.NewTransientError("read loan service response", err)
	}
	entry.WithField("status", resp.StatusCode).Debug("loan service responded")

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return 0, nil, domain.NewTransientError("call loan service",
			fmt.Errorf("loan service returned %d", resp.StatusCode))
	}

	env := &envelope{}
	if len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, env); err != nil {
			return 0, nil, &domain.Error{
				Kind:    domain.KindInternal,
				Message: "decode loan service response",
				Err:     err,
			}
		}
	}
	return resp.StatusCode, env, nil
}

func decodeBalance(env *envelope) (*domain.LoanBalance, error) {
	var dto loanBalance
	if err := json.Unmarshal(env.Data, &dto); err != nil {
		return nil, &domain.Error{Kind: domain.KindInternal, Message: "decode loan balance", Err: err}
	}
	return &domain.LoanBalance{
		LoanID:          dto.ID,
		RemainingAmount: dto.RemainingAmount,
		Status:          domain.LoanStatus(dto.Status),
		Replayed:        dto.Replayed,
	}, nil
}

// remoteError rebuilds the loan service's rejection as a domain error
func remoteError(status int, env *envelope) error {
	kind := domain.ErrorKind(env.Kind)
	if kind == "" {
		kind = kindForStatus(status)
	}
	msg := env.Error
	if msg == "" {
		msg = fmt.Sprintf("loan service returned %d", status)
	}
	return &domain.Error{Kind: kind, Message: msg}
}

func kindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindUnauthenticated
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusConflict:
		return domain.KindInvalidState
	default:
		return domain.KindInternal
	}
}
