package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPOperator_Execute(t *testing.T) {
	var got operationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(operationResponse{Ref: "0xabc123"})
	}))
	defer srv.Close()

	op := NewHTTPOperator(srv.URL, "test-token")
	receipt, err := op.Execute(context.Background(), Operation{
		Kind:   KindRelease,
		To:     "0xsolver",
		Amount: big.NewInt(100),
		Memo:   "RELEASE submission=s-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if receipt.Ref != "0xabc123" {
		t.Errorf("ref = %s", receipt.Ref)
	}
	if got.Kind != "release" || got.Amount != "100" {
		t.Errorf("request payload = %+v", got)
	}
}

func TestHTTPOperator_Revert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(operationResponse{Reverted: true, Error: "insufficient funds"})
	}))
	defer srv.Close()

	op := NewHTTPOperator(srv.URL, "")
	_, err := op.Execute(context.Background(), Operation{Kind: KindLock, Amount: big.NewInt(1)})
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
}

func TestHTTPOperator_MissingRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(operationResponse{})
	}))
	defer srv.Close()

	op := NewHTTPOperator(srv.URL, "")
	if _, err := op.Execute(context.Background(), Operation{Kind: KindStake, Amount: big.NewInt(1)}); err == nil {
		t.Fatal("expected error for empty receipt ref")
	}
}
