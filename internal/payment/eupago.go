package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const (
	eupagoSandboxBase = "https://sandbox.eupago.pt"
	eupagoLiveBase    = "https://clientes.eupago.pt"
)

var errEndpointUnavailable = errors.New("eupago endpoint unavailable")

// eupagoClient talks to EuPago's REST API. There is no Go SDK; requests are
// plain JSON POSTs behind a circuit breaker so a flapping provider doesn't
// tie up checkout requests.
type eupagoClient struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	baseURL    string
	apiKey     string
}

func newEuPagoClient(apiKey string, sandbox bool) *eupagoClient {
	base := eupagoLiveBase
	if sandbox {
		base = eupagoSandboxBase
	}
	return &eupagoClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "eupago",
			Timeout: 30 * time.Second,
		}),
		baseURL: base,
		apiKey:  apiKey,
	}
}

// eupagoResponse covers both API generations: some fields arrive as strings,
// some as numbers, depending on endpoint.
type eupagoResponse struct {
	Sucesso       bool            `json:"sucesso"`
	Entidade      json.RawMessage `json:"entidade"`
	Referencia    json.RawMessage `json:"referencia"`
	TransactionID json.RawMessage `json:"transactionID"`
	Resposta      string          `json:"resposta"`
	Estado        json.RawMessage `json:"estado"`
}

func (c *eupagoClient) postJSON(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal eupago payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
			return nil, fmt.Errorf("%w: %s returned %d", errEndpointUnavailable, path, resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("eupago %s returned %d: %s", path, resp.StatusCode, truncate(data))
		}
		return data, nil
	})
}

func (c *eupagoClient) CreateMultibancoReference(ctx context.Context, orderID string, amount decimal.Decimal) (*MultibancoRef, error) {
	data, err := c.postJSON(ctx, "/clientes/rest_api/multibanco/create", map[string]any{
		"chave": c.apiKey,
		"valor": amount.StringFixed(2),
		"id":    orderID,
	})
	if err != nil {
		return nil, err
	}

	var resp eupagoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode multibanco response: %w", err)
	}
	if !resp.Sucesso {
		return nil, fmt.Errorf("multibanco rejected: %s", resp.Resposta)
	}

	ref := &MultibancoRef{
		Entity:    rawString(resp.Entidade),
		Reference: rawString(resp.Referencia),
	}
	if ref.Entity == "" || ref.Reference == "" {
		return nil, fmt.Errorf("multibanco response missing entity/reference: %s", truncate(data))
	}
	return ref, nil
}

// mbwayStrategy is one named way of phrasing the request-to-pay call. EuPago
// runs two API generations with different endpoints and field spellings; the
// dispatch rule below tries them in order instead of probing field names ad
// hoc.
type mbwayStrategy struct {
	name    string
	path    string
	payload func(apiKey, orderID, amount, phone string) map[string]any
}

var mbwayStrategies = []mbwayStrategy{
	{
		name: "rest_api",
		path: "/clientes/rest_api/mbway/create",
		payload: func(apiKey, orderID, amount, phone string) map[string]any {
			return map[string]any{
				"chave": apiKey,
				"valor": amount,
				"id":    orderID,
				"alias": phone,
			}
		},
	},
	{
		name: "v1.02",
		path: "/api/v1.02/mbway/create",
		payload: func(apiKey, orderID, amount, phone string) map[string]any {
			return map[string]any{
				"chave":         apiKey,
				"valor":         amount,
				"identificador": orderID,
				"telemovel":     phone,
			}
		},
	},
}

// CreateMBWayRequest sends the request-to-pay, falling back to the next
// strategy when the endpoint variant is absent. A logical rejection from a
// reachable endpoint is final: the provider understood us and said no.
func (c *eupagoClient) CreateMBWayRequest(ctx context.Context, orderID string, amount decimal.Decimal, phone string) (*MBWayRequest, error) {
	var lastErr error
	for _, strategy := range mbwayStrategies {
		data, err := c.postJSON(ctx, strategy.path, strategy.payload(c.apiKey, orderID, amount.StringFixed(2), phone))
		if errors.Is(err, errEndpointUnavailable) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		var resp eupagoResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode mbway response (%s): %w", strategy.name, err)
		}
		if !resp.Sucesso {
			return nil, fmt.Errorf("mbway rejected (%s): %s", strategy.name, resp.Resposta)
		}

		req := &MBWayRequest{
			TransactionID: rawString(resp.TransactionID),
			Reference:     rawString(resp.Referencia),
		}
		if req.TransactionID == "" {
			req.TransactionID = req.Reference
		}
		if req.TransactionID == "" {
			return nil, fmt.Errorf("mbway response missing transaction id (%s): %s", strategy.name, truncate(data))
		}
		return req, nil
	}
	return nil, fmt.Errorf("mbway request failed on all endpoints: %w", lastErr)
}

// NormalizeMBWayPhone keeps digits only and strips a leading 351 country
// code. MBWay aliases are nine-digit national numbers.
func NormalizeMBWayPhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "351") && len(digits) > 9 {
		digits = digits[3:]
	}
	if len(digits) != 9 {
		return "", fmt.Errorf("invalid mbway phone number %q", raw)
	}
	return digits, nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func truncate(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
