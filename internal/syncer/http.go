package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/models"
)

// HTTPDeliverer posts record batches as JSON to a remote collection
// endpoint. Any transport error or non-2xx status is reported as
// common.ErrDeliveryFailed and retried by the engine.
type HTTPDeliverer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDeliverer targets the given endpoint URL. A nil client selects
// http.DefaultClient; per-attempt timeouts come from the engine's context.
func NewHTTPDeliverer(endpoint string, client *http.Client) *HTTPDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDeliverer{endpoint: endpoint, client: client}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, records []models.Client) error {
	body, err := json.Marshal(records)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", common.ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
