package xero

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hiltonbrown/ledgerbot/connections"
	"github.com/hiltonbrown/ledgerbot/ratelimit"
)

const (
	// Xero expects If-Modified-Since in UTC without an offset suffix.
	modifiedSinceLayout = "2006-01-02T15:04:05"

	defaultBaseURL = "https://api.xero.com/api.xro/2.0"
)

// Client makes authenticated calls against one tenant connection. Every call
// passes through the injected governor: budget check, slot admission, then
// snapshot recording from the response headers, success or failure alike.
// Safe for concurrent use: the rate snapshot on the bound connection is the
// only field a call mutates, and it is guarded.
type Client struct {
	httpClient *http.Client
	baseURL    string
	governor   *ratelimit.Governor
	log        zerolog.Logger
	nowFunc    func() time.Time

	mu   sync.Mutex // guards conn.RateLimit
	conn *connections.Connection
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func NewClient(conn *connections.Connection, governor *ratelimit.Governor, log zerolog.Logger, options ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultBaseURL,
		governor:   governor,
		log:        log.With().Str("tenant_id", conn.TenantID).Logger(),
		conn:       conn,
		nowFunc:    time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Connection returns a point-in-time copy of the connection this client is
// bound to.
func (c *Client) Connection() *connections.Connection {
	return c.connView()
}

func (c *Client) connView() *connections.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := *c.conn
	return &view
}

// Invoices fetches one page of invoices modified since the given watermark.
// A nil watermark fetches everything.
func (c *Client) Invoices(ctx context.Context, page, pageSize int, modifiedSince *time.Time) ([]Invoice, error) {
	var envelope invoicesEnvelope
	if err := c.get(ctx, "/Invoices", pageQuery(page, pageSize), modifiedSince, &envelope); err != nil {
		return nil, err
	}
	return envelope.Invoices, nil
}

func (c *Client) Contacts(ctx context.Context, page, pageSize int, modifiedSince *time.Time) ([]Contact, error) {
	var envelope contactsEnvelope
	if err := c.get(ctx, "/Contacts", pageQuery(page, pageSize), modifiedSince, &envelope); err != nil {
		return nil, err
	}
	return envelope.Contacts, nil
}

func (c *Client) Payments(ctx context.Context, page, pageSize int, modifiedSince *time.Time) ([]Payment, error) {
	var envelope paymentsEnvelope
	if err := c.get(ctx, "/Payments", pageQuery(page, pageSize), modifiedSince, &envelope); err != nil {
		return nil, err
	}
	return envelope.Payments, nil
}

func (c *Client) CreditNotes(ctx context.Context, page, pageSize int, modifiedSince *time.Time) ([]CreditNote, error) {
	var envelope creditNotesEnvelope
	if err := c.get(ctx, "/CreditNotes", pageQuery(page, pageSize), modifiedSince, &envelope); err != nil {
		return nil, err
	}
	return envelope.CreditNotes, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, modifiedSince *time.Time, out any) error {
	if err := c.governor.CheckBudget(ctx, c.connView()); err != nil {
		return err
	}

	release, err := c.governor.Acquire(ctx, c.conn.ID)
	if err != nil {
		return err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	req.Header.Set("Authorization", "Bearer "+c.conn.AccessToken)
	req.Header.Set("Xero-Tenant-Id", c.conn.TenantID)
	req.Header.Set("Accept", "application/json")
	if modifiedSince != nil {
		req.Header.Set("If-Modified-Since", modifiedSince.UTC().Format(modifiedSinceLayout))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	snap := parseRateHeaders(resp.Header, c.nowFunc())
	c.governor.RecordResponse(ctx, c.conn.ID, snap)
	c.mu.Lock()
	c.conn.RateLimit = snap
	c.mu.Unlock()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s response", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp, body)
		c.log.Warn().
			Int("status", apiErr.StatusCode).
			Str("path", path).
			Str("correlation_id", apiErr.CorrelationID).
			Msg("xero api error")
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decoding %s response", path)
	}

	return nil
}

func pageQuery(page, pageSize int) url.Values {
	return url.Values{
		"page":     []string{strconv.Itoa(page)},
		"pageSize": []string{strconv.Itoa(pageSize)},
	}
}
