// README: Payment gateway HTTP client (orders, fund accounts, payouts). Explicit timeout, no retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"carryhub/internal/config"
)

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type FundAccountRequest struct {
	Name          string
	Email         string
	Phone         string
	IFSC          string
	AccountNumber string
	ReferenceID   string
}

type PayoutRequest struct {
	FundAccountID string
	AmountMinor   int64
	Currency      string
	ReferenceID   string
	Notes         map[string]string
}

type Payout struct {
	ID            string `json:"id"`
	FundAccountID string `json:"fund_account_id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
}

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL       string
	keyID         string
	keySecret     string
	accountNumber string
	http          *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		accountNumber: cfg.AccountNumber,
		http:          &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := map[string]any{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Notes,
	}
	var out Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFundAccount registers a contact and its bank account; the returned id is used for payouts.
func (c *Client) CreateFundAccount(ctx context.Context, req FundAccountRequest) (string, error) {
	var contact struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/contacts", map[string]any{
		"name":         req.Name,
		"email":        req.Email,
		"contact":      req.Phone,
		"type":         "vendor",
		"reference_id": req.ReferenceID,
	}, &contact)
	if err != nil {
		return "", err
	}

	var account struct {
		ID string `json:"id"`
	}
	err = c.do(ctx, http.MethodPost, "/fund_accounts", map[string]any{
		"contact_id":   contact.ID,
		"account_type": "bank_account",
		"bank_account": map[string]string{
			"name":           req.Name,
			"ifsc":           req.IFSC,
			"account_number": req.AccountNumber,
		},
	}, &account)
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	body := map[string]any{
		"account_number":       c.accountNumber,
		"fund_account_id":      req.FundAccountID,
		"amount":               req.AmountMinor,
		"currency":             req.Currency,
		"mode":                 "IMPS",
		"purpose":              "payout",
		"queue_if_low_balance": true,
		"reference_id":         req.ReferenceID,
		"notes":                req.Notes,
	}
	var out Payout
	if err := c.do(ctx, http.MethodPost, "/payouts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return json.Unmarshal(data, out)
}
