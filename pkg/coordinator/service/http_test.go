package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/escrow-middleware/pkg/app/errors"
	"github.com/chainsafe/escrow-middleware/pkg/auth"
	"github.com/chainsafe/escrow-middleware/pkg/transfer"
)

// stubAuth injects a fixed identity instead of validating bearer tokens.
type stubAuth struct {
	identity string
	admin    bool
}

func (s *stubAuth) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &auth.AuthInfo{Identity: s.identity, Subject: s.identity, Admin: s.admin}
		next.ServeHTTP(w, r.WithContext(auth.WithAuthInfo(r.Context(), info)))
	})
}

func (s *stubAuth) RequireAuth(next http.Handler) http.Handler { return s.inject(next) }

func (s *stubAuth) RequireAdmin(next http.Handler) http.Handler {
	if !s.admin {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "admin access required", http.StatusForbidden)
		})
	}
	return s.inject(next)
}

// stubService is a Service with overridable behavior per test.
type stubService struct {
	prepareFn func(ctx context.Context, identity string, req *transfer.PrepareRequest) (*transfer.PrepareResponse, error)
	releaseFn func(ctx context.Context, identity string, req *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error)
	refundFn  func(ctx context.Context, transferID string) (*transfer.RefundResponse, error)
	confirmFn func(ctx context.Context, transferID, txRef string) error
	signFn    func(ctx context.Context, identity string, req *transfer.AuthorizationRequest) (*transfer.AuthorizationResponse, error)
	getFn     func(ctx context.Context, identity, transferID string) (*transfer.TransferView, error)
	listFn    func(ctx context.Context, identity string) ([]*transfer.TransferView, error)
	pauseFn   func(ctx context.Context, paused bool) error
}

func (s *stubService) PrepareTransfer(ctx context.Context, identity string, req *transfer.PrepareRequest) (*transfer.PrepareResponse, error) {
	return s.prepareFn(ctx, identity, req)
}

func (s *stubService) ConfirmDeposit(ctx context.Context, transferID, txRef string) error {
	return s.confirmFn(ctx, transferID, txRef)
}

func (s *stubService) Release(ctx context.Context, identity string, req *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error) {
	return s.releaseFn(ctx, identity, req)
}

func (s *stubService) Refund(ctx context.Context, transferID string) (*transfer.RefundResponse, error) {
	return s.refundFn(ctx, transferID)
}

func (s *stubService) SignAuthorization(ctx context.Context, identity string, req *transfer.AuthorizationRequest) (*transfer.AuthorizationResponse, error) {
	return s.signFn(ctx, identity, req)
}

func (s *stubService) GetTransfer(ctx context.Context, identity, transferID string) (*transfer.TransferView, error) {
	return s.getFn(ctx, identity, transferID)
}

func (s *stubService) ListTransfers(ctx context.Context, identity string) ([]*transfer.TransferView, error) {
	return s.listFn(ctx, identity)
}

func (s *stubService) SetPaused(ctx context.Context, paused bool) error {
	return s.pauseFn(ctx, paused)
}

func newTestServer(svc Service, authmw AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, svc, authmw, zap.NewNop())
	return r
}

func decodeErrorBody(t *testing.T, body []byte) (string, int) {
	t.Helper()
	var got struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return got.Error, got.Code
}

func TestHTTP_PrepareTransfer(t *testing.T) {
	testID := "0x" + strings.Repeat("ab", 32)
	svc := &stubService{
		prepareFn: func(_ context.Context, identity string, req *transfer.PrepareRequest) (*transfer.PrepareResponse, error) {
			if identity != "sender@example.com" {
				t.Errorf("identity = %s", identity)
			}
			if req.Amount != "100" {
				t.Errorf("Amount = %s", req.Amount)
			}
			return &transfer.PrepareResponse{TransferID: testID, Amount: req.Amount, ClaimToken: "token"}, nil
		},
	}
	handler := newTestServer(svc, &stubAuth{identity: "sender@example.com"})

	body := `{"sender_identity":"sender@example.com","recipient_identity":"recipient@example.com","amount":"100","timeout_days":7}`
	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body)
	}
	var got transfer.PrepareResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.TransferID != testID || got.ClaimToken != "token" {
		t.Errorf("response = %+v", got)
	}
}

func TestHTTP_PrepareTransfer_InvalidJSON(t *testing.T) {
	handler := newTestServer(&stubService{}, &stubAuth{identity: "sender@example.com"})

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	msg, code := decodeErrorBody(t, rec.Body.Bytes())
	if msg != "invalid JSON" || code != http.StatusBadRequest {
		t.Errorf("error body = (%q, %d)", msg, code)
	}
}

func TestHTTP_PrepareTransfer_ValidationFailure(t *testing.T) {
	handler := newTestServer(&stubService{}, &stubAuth{identity: "sender@example.com"})

	// timeout_days above the allowed maximum.
	body := `{"sender_identity":"sender@example.com","recipient_identity":"recipient@example.com","amount":"100","timeout_days":1000}`
	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusBadRequest, rec.Body)
	}
}

func TestHTTP_Release(t *testing.T) {
	testID := "0x" + strings.Repeat("cd", 32)
	svc := &stubService{
		releaseFn: func(_ context.Context, identity string, req *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error) {
			if identity != "recipient@example.com" {
				t.Errorf("identity = %s", identity)
			}
			return &transfer.ReleaseResponse{
				TransferID: req.TransferID,
				Status:     transfer.StatusClaimed,
				TxRef:      "coordinator:release:1",
			}, nil
		},
	}
	handler := newTestServer(svc, &stubAuth{identity: "recipient@example.com"})

	body := `{"transfer_id":"` + testID + `","claim_token":"token","recipient_address":"0x90F79bf6EB2c4f870365E785982E1f101E93b906"}`
	req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body)
	}
	var got transfer.ReleaseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != transfer.StatusClaimed {
		t.Errorf("Status = %s", got.Status)
	}
}

func TestHTTP_Release_ServiceErrorMapping(t *testing.T) {
	svc := &stubService{
		releaseFn: func(context.Context, string, *transfer.ReleaseRequest) (*transfer.ReleaseResponse, error) {
			return nil, apperrors.UnAuthorizedError(nil, "invalid claim token")
		},
	}
	handler := newTestServer(svc, &stubAuth{identity: "recipient@example.com"})

	body := `{"transfer_id":"0x` + strings.Repeat("cd", 32) + `","claim_token":"wrong","recipient_address":"0x90F79bf6EB2c4f870365E785982E1f101E93b906"}`
	req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	msg, _ := decodeErrorBody(t, rec.Body.Bytes())
	if msg != "invalid claim token" {
		t.Errorf("error = %q", msg)
	}
}

func TestHTTP_Refund_AdminOnly(t *testing.T) {
	testID := "0x" + strings.Repeat("ef", 32)
	refunded := false
	svc := &stubService{
		refundFn: func(_ context.Context, transferID string) (*transfer.RefundResponse, error) {
			refunded = true
			return &transfer.RefundResponse{TransferID: transferID, Status: transfer.StatusRefunded}, nil
		},
	}

	handler := newTestServer(svc, &stubAuth{identity: "user@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/transfers/"+testID+"/refund", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if refunded {
		t.Fatal("refund reached the service for a non-admin caller")
	}

	handler = newTestServer(svc, &stubAuth{identity: "ops@example.com", admin: true})
	req = httptest.NewRequest(http.MethodPost, "/transfers/"+testID+"/refund", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body)
	}
	if !refunded {
		t.Fatal("refund did not reach the service")
	}
}

func TestHTTP_Pause_AdminOnly(t *testing.T) {
	var paused *bool
	svc := &stubService{
		pauseFn: func(_ context.Context, p bool) error {
			paused = &p
			return nil
		},
	}

	handler := newTestServer(svc, &stubAuth{identity: "user@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/admin/pause", bytes.NewBufferString(`{"paused":true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if paused != nil {
		t.Fatal("pause reached the service for a non-admin caller")
	}

	handler = newTestServer(svc, &stubAuth{identity: "ops@example.com", admin: true})
	req = httptest.NewRequest(http.MethodPost, "/admin/pause", bytes.NewBufferString(`{"paused":true}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body)
	}
	if paused == nil || !*paused {
		t.Fatal("pause did not reach the service")
	}
	var got transfer.PauseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.Paused {
		t.Errorf("response = %+v, want paused", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/pause", bytes.NewBufferString(`{"paused":false}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unpause status = %d (body: %s)", rec.Code, rec.Body)
	}
	if *paused {
		t.Error("unpause did not reach the service")
	}
}

func TestHTTP_ConfirmDeposit(t *testing.T) {
	testID := "0x" + strings.Repeat("11", 32)
	svc := &stubService{
		confirmFn: func(_ context.Context, transferID, txRef string) error {
			if transferID != testID || txRef != "ledger:9" {
				t.Errorf("ConfirmDeposit(%s, %s)", transferID, txRef)
			}
			return nil
		},
	}
	handler := newTestServer(svc, &stubAuth{identity: "sender@example.com"})

	req := httptest.NewRequest(http.MethodPost, "/transfers/"+testID+"/deposit",
		bytes.NewBufferString(`{"tx_ref":"ledger:9"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body)
	}
}

func TestHTTP_GetAndListTransfers(t *testing.T) {
	testID := "0x" + strings.Repeat("22", 32)
	view := &transfer.TransferView{
		TransferID:        testID,
		SenderIdentity:    "sender@example.com",
		RecipientIdentity: "recipient@example.com",
		Amount:            "100",
		Status:            transfer.StatusPending,
		ExpiryDate:        time.Now().Add(24 * time.Hour).UTC(),
	}
	svc := &stubService{
		getFn: func(_ context.Context, identity, transferID string) (*transfer.TransferView, error) {
			if transferID != testID {
				t.Errorf("transferID = %s", transferID)
			}
			return view, nil
		},
		listFn: func(_ context.Context, identity string) ([]*transfer.TransferView, error) {
			return []*transfer.TransferView{view}, nil
		},
	}
	handler := newTestServer(svc, &stubAuth{identity: "recipient@example.com"})

	req := httptest.NewRequest(http.MethodGet, "/transfers/"+testID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d (body: %s)", rec.Code, rec.Body)
	}
	var got transfer.TransferView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.TransferID != testID {
		t.Errorf("TransferID = %s", got.TransferID)
	}

	req = httptest.NewRequest(http.MethodGet, "/transfers", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d (body: %s)", rec.Code, rec.Body)
	}
	var list []*transfer.TransferView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 1 || list[0].TransferID != testID {
		t.Errorf("list = %+v", list)
	}
}

func TestHTTP_SignAuthorization(t *testing.T) {
	testID := "0x" + strings.Repeat("33", 32)
	svc := &stubService{
		signFn: func(_ context.Context, identity string, req *transfer.AuthorizationRequest) (*transfer.AuthorizationResponse, error) {
			return &transfer.AuthorizationResponse{
				TransferID: req.TransferID,
				Recipient:  req.RecipientAddress,
				Nonce:      3,
				Signature:  "0xsigned",
			}, nil
		},
	}
	handler := newTestServer(svc, &stubAuth{identity: "recipient@example.com"})

	body := `{"transfer_id":"` + testID + `","recipient_address":"0x90F79bf6EB2c4f870365E785982E1f101E93b906"}`
	req := httptest.NewRequest(http.MethodPost, "/authorizations", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body)
	}
	var got transfer.AuthorizationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Nonce != 3 || got.Signature != "0xsigned" {
		t.Errorf("response = %+v", got)
	}
}
