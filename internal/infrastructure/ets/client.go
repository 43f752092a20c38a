// Package ets implements the external ticketing system port over its
// form-encoded REST webservice.
package ets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
)

// Operation names reported in IntegrationError.Op and logs
const (
	opListTickets    = "list_tickets"
	opFetchTicket    = "fetch_ticket"
	opFetchCustomer  = "fetch_customer"
	opPushCompletion = "push_completion"
	opTestConnection = "test_connection"
)

// errorBodySnippet limits how much of an error body is kept in messages
const errorBodySnippet = 256

// Client talks to one tenant's ticketing webservice
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	authHeader string
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for the given configuration
func NewClient(cfg ClientConfig, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimitQPS > 0 {
		limit = rate.Limit(cfg.RateLimitQPS)
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.RateLimitBurst),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Token)),
		logger:     logger.With(zap.String("component", "ets_client"), zap.String("base_url", cfg.BaseURL)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TicketingSystem
// ---------------------------------------------------------------------------

// ListTicketsForTechnician implements integration.TicketingSystem
func (c *Client) ListTicketsForTechnician(ctx context.Context, externalTechnicianID string) ([]integration.ExternalTicket, error) {
	externalTechnicianID = strings.TrimSpace(externalTechnicianID)
	if externalTechnicianID == "" {
		return nil, integration.NewIntegrationError(integration.ErrorKindRejected, opListTickets, errors.New("external technician id is empty"))
	}

	ctx, span := telemetry.StartSpan(ctx, "ets.list_tickets",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrExternalTechnicianID, externalTechnicianID),
	)
	defer span.End()

	tickets := make([]integration.ExternalTicket, 0)
	fetched := 0
	for page := 1; ; page++ {
		if page > c.config.MaxPages {
			c.logger.Warn("ETS pagination stopped at page limit",
				zap.String("external_technician_id", externalTechnicianID),
				zap.Int("max_pages", c.config.MaxPages),
				zap.Int("fetched", fetched),
			)
			err := fmt.Errorf("%w: %d tickets read in %d pages", integration.ErrListingTruncated, fetched, c.config.MaxPages)
			telemetry.RecordError(span, err)
			return tickets, err
		}

		q := technicianTicketsQuery(externalTechnicianID, page, c.config.PageSize)
		resp, err := c.listWithRetry(ctx, opListTickets, resourceTicket, q)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if len(resp.Registros) == 0 {
			break
		}

		for _, raw := range resp.Registros {
			var rec ticketRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				err = integration.NewIntegrationError(integration.ErrorKindMalformedResponse, opListTickets, fmt.Errorf("decode ticket: %w", err))
				telemetry.RecordError(span, err)
				return nil, err
			}
			ticket := rec.toDomain(raw)
			if ticket.ID == "" {
				c.logger.Warn("ETS ticket without id ignored",
					zap.String("external_technician_id", externalTechnicianID),
				)
				continue
			}
			tickets = append(tickets, ticket)
		}

		// A missing total decodes as zero and means unknown; only a short
		// page ends the listing then.
		fetched += len(resp.Registros)
		if len(resp.Registros) < q.RP || (resp.Total > 0 && int64(fetched) >= int64(resp.Total)) {
			break
		}
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrTicketCount, len(tickets))
	telemetry.SetOK(span)
	return tickets, nil
}

// FetchTicket implements integration.TicketingSystem
func (c *Client) FetchTicket(ctx context.Context, externalTicketID string) (*integration.ExternalTicket, error) {
	externalTicketID = strings.TrimSpace(externalTicketID)
	if externalTicketID == "" {
		return nil, integration.ErrTicketNotFound
	}

	ctx, span := telemetry.StartSpan(ctx, "ets.fetch_ticket",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrExternalID, externalTicketID),
	)
	defer span.End()

	resp, err := c.listWithRetry(ctx, opFetchTicket, resourceTicket, byIDQuery(resourceTicket, externalTicketID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(resp.Registros) == 0 {
		return nil, integration.ErrTicketNotFound
	}

	var rec ticketRecord
	if err := json.Unmarshal(resp.Registros[0], &rec); err != nil {
		err = integration.NewIntegrationError(integration.ErrorKindMalformedResponse, opFetchTicket, fmt.Errorf("decode ticket: %w", err))
		telemetry.RecordError(span, err)
		return nil, err
	}
	ticket := rec.toDomain(resp.Registros[0])
	return &ticket, nil
}

// FetchCustomer implements integration.TicketingSystem. Failures are logged
// at debug level and reported as nil.
func (c *Client) FetchCustomer(ctx context.Context, externalCustomerID string) *integration.ExternalCustomer {
	externalCustomerID = strings.TrimSpace(externalCustomerID)
	if externalCustomerID == "" || externalCustomerID == "0" {
		return nil
	}

	resp, err := c.list(ctx, opFetchCustomer, resourceCustomer, byIDQuery(resourceCustomer, externalCustomerID))
	if err != nil {
		c.logger.Debug("ETS customer lookup failed",
			zap.String("external_customer_id", externalCustomerID),
			zap.Error(err),
		)
		return nil
	}
	if len(resp.Registros) == 0 {
		return nil
	}

	var rec customerRecord
	if err := json.Unmarshal(resp.Registros[0], &rec); err != nil {
		c.logger.Debug("ETS customer record undecodable",
			zap.String("external_customer_id", externalCustomerID),
			zap.Error(err),
		)
		return nil
	}
	return rec.toDomain()
}

// PushCompletion implements integration.TicketingSystem
func (c *Client) PushCompletion(ctx context.Context, push integration.CompletionPush) error {
	ticketID := strings.TrimSpace(push.TicketID)
	if ticketID == "" {
		return integration.NewIntegrationError(integration.ErrorKindRejected, opPushCompletion, errors.New("ticket id is empty"))
	}

	ctx, span := telemetry.StartSpan(ctx, "ets.push_completion",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrExternalID, ticketID),
	)
	defer span.End()

	form := url.Values{}
	form.Set("id_chamado", ticketID)
	form.Set("status", integration.TicketStatusClosed)
	form.Set("id_tecnico", push.TechnicianExternalID)
	form.Set("mensagem_resposta", push.Note)
	form.Set("materiais_utilizados", push.MaterialsUsed)
	if !push.CompletedAt.IsZero() {
		form.Set("data_fechamento", push.CompletedAt.Format(openedAtLayout))
	}

	body, err := c.do(ctx, opPushCompletion, resourceCloseTicket, form, false)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	var resp mutationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = integration.NewIntegrationError(integration.ErrorKindMalformedResponse, opPushCompletion, err)
		telemetry.RecordError(span, err)
		return err
	}
	if strings.EqualFold(resp.Type, "error") {
		err = integration.NewIntegrationError(integration.ErrorKindRejected, opPushCompletion, errors.New(strings.TrimSpace(resp.Message)))
		telemetry.RecordError(span, err)
		return err
	}

	c.logger.Info("ETS ticket closed",
		zap.String("external_id", ticketID),
		zap.String("external_technician_id", push.TechnicianExternalID),
	)
	telemetry.SetOK(span)
	return nil
}

// TestConnection implements integration.TicketingSystem
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.list(ctx, opTestConnection, resourceTicket, probeQuery())
	if err != nil {
		c.logger.Info("ETS connection test failed", zap.Error(err))
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// listWithRetry runs a listing call under the retry policy
func (c *Client) listWithRetry(ctx context.Context, op, resource string, q listQuery) (*listResponse, error) {
	var resp *listResponse
	err := c.config.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.list(ctx, op, resource, q)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("ETS call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("page", q.Page),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	return resp, err
}

// list performs one listing call and decodes the envelope
func (c *Client) list(ctx context.Context, op, resource string, q listQuery) (*listResponse, error) {
	body, err := c.do(ctx, op, resource, q.form(), true)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, integration.NewIntegrationError(integration.ErrorKindMalformedResponse, op, err)
	}
	if strings.EqualFold(resp.Type, "error") {
		return nil, integration.NewIntegrationError(integration.ErrorKindRejected, op, errors.New(strings.TrimSpace(resp.Message)))
	}
	return &resp, nil
}

// do performs one HTTP call bounded by the configured timeout
func (c *Client) do(ctx context.Context, op, resource string, form url.Values, listing bool) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(callCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, integration.NewIntegrationError(integration.ErrorKindNetwork, op, err)
		}
		// Wait fails early when the token would arrive after the deadline
		return nil, integration.NewIntegrationError(integration.ErrorKindTimeout, op, err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.config.endpoint(resource), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, integration.NewIntegrationError(integration.ErrorKindNetwork, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	if listing {
		req.Header.Set(headerListFlag, headerListValue)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes+1))
	if err != nil {
		return nil, classifyTransportError(op, err)
	}

	c.logger.Debug("ETS call completed",
		zap.String("op", op),
		zap.String("resource", resource),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(op, resp.StatusCode, body)
	}
	if int64(len(body)) > c.config.MaxResponseBytes {
		return nil, integration.NewIntegrationError(integration.ErrorKindMalformedResponse, op,
			fmt.Errorf("response exceeds %d bytes", c.config.MaxResponseBytes))
	}
	return body, nil
}

// classifyTransportError maps a transport failure to timeout or network
func classifyTransportError(op string, err error) *integration.IntegrationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return integration.NewIntegrationError(integration.ErrorKindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return integration.NewIntegrationError(integration.ErrorKindTimeout, op, err)
	}
	return integration.NewIntegrationError(integration.ErrorKindNetwork, op, err)
}

// statusError maps an HTTP error status to an IntegrationError
func statusError(op string, status int, body []byte) *integration.IntegrationError {
	var kind integration.ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = integration.ErrorKindAuth
	case status == http.StatusTooManyRequests:
		kind = integration.ErrorKindRateLimited
	case status >= http.StatusInternalServerError:
		kind = integration.ErrorKindNetwork
	default:
		kind = integration.ErrorKindRejected
	}

	return &integration.IntegrationError{
		Kind:       kind,
		Op:         op,
		StatusCode: status,
		Err:        fmt.Errorf("HTTP %d: %s", status, bodySnippet(body)),
	}
}

// bodySnippet returns at most errorBodySnippet bytes of body as valid UTF-8,
// cut on a rune boundary
func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > errorBodySnippet {
		cut := errorBodySnippet
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Ensure Client implements TicketingSystem
var _ integration.TicketingSystem = (*Client)(nil)
