package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPOperator executes operations against the external vault service over
// its JSON API. On-chain encoding stays on the service side; this client
// only sees confirmed references or reverts.
type HTTPOperator struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPOperator(baseURL, token string) *HTTPOperator {
	return &HTTPOperator{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type operationRequest struct {
	Kind     string `json:"kind"`
	VaultRef string `json:"vault_ref,omitempty"`
	Target   string `json:"target,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Amount   string `json:"amount"`
	Memo     string `json:"memo,omitempty"`
}

type operationResponse struct {
	Ref      string `json:"ref"`
	Reverted bool   `json:"reverted"`
	Error    string `json:"error,omitempty"`
}

// Execute submits the operation and waits for confirmation. A revert is
// reported as ErrReverted so callers can retry; transport failures are
// returned as-is.
func (o *HTTPOperator) Execute(ctx context.Context, op Operation) (Receipt, error) {
	amount := "0"
	if op.Amount != nil {
		amount = op.Amount.String()
	}
	body, err := json.Marshal(operationRequest{
		Kind:     string(op.Kind),
		VaultRef: op.VaultRef,
		Target:   string(op.Target),
		From:     op.From,
		To:       op.To,
		Amount:   amount,
		Memo:     op.Memo,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: marshal operation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/operations", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: execute %s: %w", op.Kind, err)
	}
	defer resp.Body.Close()

	var result operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Receipt{}, fmt.Errorf("ledger: decode response: %w", err)
	}

	if result.Reverted || resp.StatusCode == http.StatusUnprocessableEntity {
		return Receipt{}, fmt.Errorf("%w: %s", ErrReverted, result.Error)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Receipt{}, fmt.Errorf("ledger: execute %s: unexpected status %d", op.Kind, resp.StatusCode)
	}
	if result.Ref == "" {
		return Receipt{}, fmt.Errorf("ledger: execute %s: missing receipt ref", op.Kind)
	}

	return Receipt{Ref: Ref(result.Ref)}, nil
}
