package protect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/arko-chat/protect/internal/bridge"
)

// Client talks to the insurance backend through the host's httpRequest
// handler, so requests leave from the native app rather than the page.
type Client struct {
	host     func() bridge.Host
	baseURL  string
	basePath string
	apiKey   string
	logger   *slog.Logger
}

// NewClient splits apiURL into a scheme-less host and a base path the way
// the native host expects them. host is consulted on every request.
func NewClient(host func() bridge.Host, apiURL, apiKey string, logger *slog.Logger) (*Client, error) {
	if host == nil {
		return nil, errors.New("protect: client needs a host")
	}
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return nil, fmt.Errorf("protect: parse api url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("protect: api url %q has no host", apiURL)
	}

	return &Client{
		host:     host,
		baseURL:  u.Host,
		basePath: strings.TrimRight(u.Path, "/"),
		apiKey:   apiKey,
		logger:   logger.With("component", "protect_api"),
	}, nil
}

func (c *Client) BaseURL() string  { return c.baseURL }
func (c *Client) BasePath() string { return c.basePath }

func (c *Client) headers(jsonBody bool) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if jsonBody {
		h["Content-Type"] = "application/json"
	}
	return h
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	query map[string]string,
	body any,
	out any,
) error {
	req := bridge.HTTPRequest{
		Method:  method,
		BaseURL: c.baseURL,
		Path:    c.basePath + path,
		Query:   query,
		Headers: c.headers(method != "GET"),
		Body:    body,
	}

	c.logger.Debug("api request", "method", method, "path", req.Path)
	resp, err := c.host().HTTPRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("protect: %s %s: %w", method, req.Path, err)
	}
	if err := resp.DecodeBody(out); err != nil {
		return fmt.Errorf("protect: %s %s: %w", method, req.Path, err)
	}
	return nil
}

func (c *Client) CreateApplication(ctx context.Context, email string) (Application, error) {
	var app Application
	err := c.do(ctx, "POST", "/applications", nil, map[string]any{
		"country":     Country,
		"products":    []string{ProductCode},
		"external_id": email,
	}, &app)
	return app, err
}

func (c *Client) UpdateApplication(ctx context.Context, id bridge.ID, cards []Applicant) (Application, error) {
	if cards == nil {
		cards = []Applicant{}
	}
	var app Application
	err := c.do(ctx, "PUT", "/applications/"+url.PathEscape(string(id)), nil, map[string]any{
		"country":  Country,
		"products": []string{ProductCode},
		"params": map[string]any{
			"products":          []string{ProductCode},
			"beep_card_details": cards,
		},
	}, &app)
	return app, err
}

func (c *Client) CreateSubmission(ctx context.Context, applicationID bridge.ID) (Submission, error) {
	var sub Submission
	err := c.do(ctx, "POST", "/submissions", nil, map[string]any{
		"application_id": applicationID,
	}, &sub)
	return sub, err
}

func (c *Client) GenerateQuotes(ctx context.Context, submissionID bridge.ID) (Quotes, error) {
	var q Quotes
	err := c.do(ctx, "GET", "/submissions/"+url.PathEscape(string(submissionID))+"/generate-quotes", nil, nil, &q)
	return q, err
}

func (c *Client) MarkQuoteAsPaid(ctx context.Context, quoteID bridge.ID, p Payment) (QuoteStatus, error) {
	var st QuoteStatus
	err := c.do(ctx, "POST", "/quotes/"+url.PathEscape(string(quoteID))+"/payments", nil, map[string]any{
		"amount": map[string]any{
			"currency": Currency,
			"value":    p.Amount,
		},
		"status":         QuotePaid,
		"provider":       PaymentProvider,
		"transaction_id": p.TransactionID,
		"payment_mode":   PaymentMode,
		"payment_data": map[string]any{
			"referenceNumber":        p.ReferenceNumber,
			"paymentReferenceNumber": p.TransactionID,
		},
	}, &st)
	return st, err
}

func (c *Client) BindQuote(ctx context.Context, quoteID bridge.ID) (QuoteStatus, error) {
	var st QuoteStatus
	err := c.do(ctx, "POST", "/quotes/"+url.PathEscape(string(quoteID))+"/bind", nil, nil, &st)
	return st, err
}

func (c *Client) GetPolicies(ctx context.Context, email string) ([]Policy, error) {
	var p Policies
	if err := c.do(ctx, "GET", "/policies", map[string]string{"external_id": email}, nil, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}
