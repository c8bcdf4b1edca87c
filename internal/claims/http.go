package claims

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jensholdgaard/claim-market/internal/world"
)

// HTTP is a Registry served by the game host over HTTP.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP returns a client for the registry at baseURL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ClaimAt calls GET /claims/at.
func (h *HTTP) ClaimAt(ctx context.Context, loc world.Location) (Claim, bool, error) {
	q := url.Values{}
	q.Set("world", loc.World)
	q.Set("x", strconv.Itoa(loc.X))
	q.Set("y", strconv.Itoa(loc.Y))
	q.Set("z", strconv.Itoa(loc.Z))
	return h.getClaim(ctx, "/claims/at?"+q.Encode())
}

// Claim calls GET /claims/{id}.
func (h *HTTP) Claim(ctx context.Context, id string) (Claim, bool, error) {
	return h.getClaim(ctx, "/claims/"+url.PathEscape(id))
}

// TransferOwnership calls POST /claims/{id}/owner.
func (h *HTTP) TransferOwnership(ctx context.Context, claimID, newOwnerID string) error {
	status, err := h.post(ctx, "/claims/"+url.PathEscape(claimID)+"/owner", map[string]string{"owner_id": newOwnerID})
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, claimID)
	case status >= 300:
		return fmt.Errorf("%w: registry answered %d", ErrTransferRejected, status)
	}
	return nil
}

// GrantBonusCapacity calls POST /players/{id}/bonus-capacity.
func (h *HTTP) GrantBonusCapacity(ctx context.Context, playerID string, delta int) error {
	status, err := h.post(ctx, "/players/"+url.PathEscape(playerID)+"/bonus-capacity", map[string]int{"delta": delta})
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("granting bonus capacity: registry answered %d", status)
	}
	return nil
}

func (h *HTTP) getClaim(ctx context.Context, path string) (Claim, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return Claim{}, false, fmt.Errorf("building request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Claim{}, false, fmt.Errorf("querying claim registry: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Claim{}, false, nil
	case resp.StatusCode != http.StatusOK:
		return Claim{}, false, fmt.Errorf("claim registry answered %d", resp.StatusCode)
	}

	var c Claim
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return Claim{}, false, fmt.Errorf("decoding claim: %w", err)
	}
	return c, true, nil
}

func (h *HTTP) post(ctx context.Context, path string, body any) (int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling claim registry: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
