package rail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/retry"
)

// Client is an HTTP adapter for a Stripe-shaped rail API: form-encoded
// requests, bearer authentication, JSON responses. Reads are retried with
// backoff; funds-moving writes are issued exactly once.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
	retryCfg   retry.Config
}

// NewClient creates a rail client.
func NewClient(baseURL, apiKey string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log,
		retryCfg:   retry.DefaultConfig(),
	}
}

// CreateCheckout opens a hosted checkout session.
func (c *Client) CreateCheckout(ctx context.Context, amountCents int64, successURL, cancelURL string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/checkout/sessions", form, &resp); err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	return resp.ID, nil
}

// RetrieveCheckout fetches a session's payment state.
func (c *Client) RetrieveCheckout(ctx context.Context, sessionRef string) (*Checkout, error) {
	var resp struct {
		ID             string            `json:"id"`
		PaymentStatus  string            `json:"payment_status"`
		AmountTotal    int64             `json:"amount_total"`
		Metadata       map[string]string `json:"metadata"`
		CustomerEmail  string            `json:"customer_email"`
		CustomerDetail struct {
			Email string `json:"email"`
		} `json:"customer_details"`
	}
	if err := c.get(ctx, "/checkout/sessions/"+url.PathEscape(sessionRef), &resp); err != nil {
		return nil, fmt.Errorf("retrieve checkout: %w", err)
	}

	email := resp.CustomerDetail.Email
	if email == "" {
		email = resp.CustomerEmail
	}
	return &Checkout{
		Ref:         resp.ID,
		Paid:        resp.PaymentStatus == "paid",
		AmountCents: resp.AmountTotal,
		BuyerEmail:  email,
		Metadata:    resp.Metadata,
	}, nil
}

// CreateConnectedAccount opens a seller account on the rail.
func (c *Client) CreateConnectedAccount(ctx context.Context, identity Identity, bankToken string) (string, error) {
	form := url.Values{}
	form.Set("type", "custom")
	form.Set("email", identity.Email)
	form.Set("business_type", "individual")
	form.Set("individual[first_name]", firstName(identity.LegalName))
	form.Set("individual[last_name]", lastName(identity.LegalName))
	form.Set("individual[dob]", identity.DateOfBirth)
	form.Set("individual[phone]", identity.Phone)
	form.Set("individual[address][line1]", identity.AddressLine)
	form.Set("individual[address][city]", identity.City)
	form.Set("individual[address][postal_code]", identity.PostalCode)
	form.Set("individual[address][state]", identity.State)
	form.Set("capabilities[transfers][requested]", "true")
	if bankToken != "" {
		form.Set("external_account", bankToken)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/accounts", form, &resp); err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}
	return resp.ID, nil
}

// UpdateAccount patches fields on a connected account.
func (c *Client) UpdateAccount(ctx context.Context, accountRef string, fields map[string]string) error {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	if err := c.post(ctx, "/accounts/"+url.PathEscape(accountRef), form, nil); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// RetrieveAccountRequirements reports a connected account's payout readiness.
func (c *Client) RetrieveAccountRequirements(ctx context.Context, accountRef string) (*AccountRequirements, error) {
	var resp struct {
		PayoutsEnabled bool `json:"payouts_enabled"`
		Requirements   struct {
			CurrentlyDue []string `json:"currently_due"`
		} `json:"requirements"`
	}
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountRef), &resp); err != nil {
		return nil, fmt.Errorf("retrieve account requirements: %w", err)
	}
	return &AccountRequirements{
		PayoutsEnabled: resp.PayoutsEnabled,
		Missing:        resp.Requirements.CurrentlyDue,
	}, nil
}

// CreateTransfer moves funds from the platform pool to the connected
// account. Issued exactly once; an ambiguous failure surfaces to the caller.
func (c *Client) CreateTransfer(ctx context.Context, accountRef string, amountCents int64, method Method) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	form.Set("destination", accountRef)
	form.Set("metadata[payout_method]", string(method))

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/transfers", form, &resp); err != nil {
		return "", fmt.Errorf("create transfer: %w", err)
	}
	return resp.ID, nil
}

// CreatePayout pushes funds from the connected account to the seller's bank.
func (c *Client) CreatePayout(ctx context.Context, accountRef string, amountCents int64, method Method) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	form.Set("method", string(method))

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postOnBehalfOf(ctx, "/payouts", accountRef, form, &resp); err != nil {
		return "", fmt.Errorf("create payout: %w", err)
	}
	return resp.ID, nil
}

// TokenizeBankAccount turns raw bank details into a single-use token.
func (c *Client) TokenizeBankAccount(ctx context.Context, routing, account, holderType string) (string, error) {
	form := url.Values{}
	form.Set("bank_account[country]", "US")
	form.Set("bank_account[currency]", "usd")
	form.Set("bank_account[routing_number]", routing)
	form.Set("bank_account[account_number]", account)
	form.Set("bank_account[account_holder_type]", holderType)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/tokens", form, &resp); err != nil {
		return "", fmt.Errorf("tokenize bank account: %w", err)
	}
	return resp.ID, nil
}

// AttachExternalAccount attaches a tokenized bank account as the default
// payout destination.
func (c *Client) AttachExternalAccount(ctx context.Context, accountRef, bankToken string) (string, error) {
	form := url.Values{}
	form.Set("external_account", bankToken)
	form.Set("default_for_currency", "true")

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/accounts/"+url.PathEscape(accountRef)+"/external_accounts", form, &resp); err != nil {
		return "", fmt.Errorf("attach external account: %w", err)
	}
	return resp.ID, nil
}

// ListExternalAccounts returns the account's payout destinations, default first.
func (c *Client) ListExternalAccounts(ctx context.Context, accountRef string) ([]string, error) {
	var resp struct {
		Data []struct {
			ID                 string `json:"id"`
			DefaultForCurrency bool   `json:"default_for_currency"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountRef)+"/external_accounts", &resp); err != nil {
		return nil, fmt.Errorf("list external accounts: %w", err)
	}

	refs := make([]string, 0, len(resp.Data))
	for _, ea := range resp.Data {
		if ea.DefaultForCurrency {
			refs = append([]string{ea.ID}, refs...)
			continue
		}
		refs = append(refs, ea.ID)
	}
	return refs, nil
}

// DeleteExternalAccount removes a payout destination.
func (c *Client) DeleteExternalAccount(ctx context.Context, accountRef, externalRef string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/accounts/"+url.PathEscape(accountRef)+"/external_accounts/"+url.PathEscape(externalRef), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if doErr := c.do(req, nil); doErr != nil {
		return fmt.Errorf("delete external account: %w", doErr)
	}
	return nil
}

// get issues a GET with retry; reads are idempotent.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		return c.do(req, out)
	})
}

// post issues a single form-encoded POST with no retry.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	return c.postOnBehalfOf(ctx, path, "", form, out)
}

func (c *Client) postOnBehalfOf(ctx context.Context, path, accountRef string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accountRef != "" {
		req.Header.Set("Stripe-Account", accountRef)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseAPIError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseAPIError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &Error{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &Error{
		StatusCode: status,
		Code:       payload.Error.Code,
		Message:    payload.Error.Message,
	}
}

func firstName(legalName string) string {
	parts := strings.Fields(legalName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func lastName(legalName string) string {
	parts := strings.Fields(legalName)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}
