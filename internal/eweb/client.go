// Package eweb talks to the vendor's eWebService SOAP endpoint. This file
// implements the HTTP client: envelope construction, the all-or-nothing
// GetAllActiveItems call, and its retry policy.
package eweb

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/retailpulse/go-inventory-backend/internal/config"
)

// serviceNS is the eWebService target namespace; it prefixes the SOAPAction
// header and the body element.
const serviceNS = "http://www.retailedgeconsultants.com/"

// soapEnvelopeNS is the SOAP 1.1 envelope namespace.
const soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

// FetchError marks a failure to retrieve or decode the vendor catalog.
// The coordinator treats it as "no data this run": the run is recorded as
// failed and no snapshot rows are written.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("eweb: %s: %v", e.Op, e.Err) }

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches the vendor catalog over SOAP 1.1. The zero value is not
// usable; construct with NewClient.
type Client struct {
	cfg  config.CatalogConfig
	http *http.Client

	// retryPause separates the two attempts of the heavy call. Variable so
	// tests do not sleep.
	retryPause time.Duration
}

// NewClient builds a Client from the catalog configuration.
func NewClient(cfg config.CatalogConfig) *Client {
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		retryPause: 2 * time.Second,
	}
}

// FetchAllItems retrieves the complete active-item catalog. The call is
// all-or-nothing: either the full normalized slice is returned, or a
// *FetchError and no partial data. Transport and fault failures are retried
// up to the configured attempt count with a fresh transport each time, since
// the vendor service is known to drop long-running connections.
func (c *Client) FetchAllItems(ctx context.Context) ([]CatalogItem, error) {
	attempts := c.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for a := 1; a <= attempts; a++ {
		items, err := c.fetchOnce(ctx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", a).Int("attempts", attempts).Msg("catalog fetch failed")

		if a < attempts {
			select {
			case <-time.After(c.retryPause):
			case <-ctx.Done():
				return nil, &FetchError{Op: "fetch", Err: ctx.Err()}
			}
			// Rebuild the transport before retrying.
			c.http = &http.Client{Timeout: c.cfg.Timeout}
		}
	}
	return nil, &FetchError{Op: "fetch", Err: lastErr}
}

// fetchOnce performs a single GetAllActiveItems round trip.
func (c *Client) fetchOnce(ctx context.Context) ([]CatalogItem, error) {
	var env getAllActiveItemsRequest
	env.SoapNS = soapEnvelopeNS
	env.Body.Call.NS = serviceNS
	env.Body.Call.Auth = authenticationInfo{
		ClientNum:    c.cfg.ClientNum,
		Password:     c.cfg.Password,
		SecurityCode: c.cfg.SecurityCode,
	}

	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	body := append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", serviceNS+"IEWebService/GetAllActiveItems")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out getAllActiveItemsResponse
	if err := xml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if f := out.Body.Fault; f != nil {
		return nil, fmt.Errorf("soap fault %s: %s", f.Code, f.Reason)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	wire := out.Body.Response.Result.Items
	items := make([]CatalogItem, 0, len(wire))
	skipped := 0
	for _, w := range wire {
		item, ok := w.normalize()
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("catalog rows without SKU skipped")
	}
	return items, nil
}
