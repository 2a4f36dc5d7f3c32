package transferstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/escrow-middleware/pkg/migrations/coordinatordb"
	"github.com/chainsafe/escrow-middleware/pkg/pgutil"
	"github.com/chainsafe/escrow-middleware/pkg/transfer"
	"github.com/chainsafe/escrow-middleware/pkg/transferstore"
)

func setupStore(t *testing.T) (transferstore.Store, *bun.DB, func()) {
	t.Helper()
	db, cleanup := pgutil.SetupTestDB(t)

	migrator := migrate.NewMigrator(db, coordinatordb.Migrations)
	ctx := context.Background()
	if err := migrator.Init(ctx); err != nil {
		cleanup()
		t.Fatalf("migrator.Init failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		cleanup()
		t.Fatalf("migrator.Migrate failed: %v", err)
	}

	return transferstore.NewStore(db), db, cleanup
}

func testTransfer(id string) *transfer.PendingTransfer {
	return &transfer.PendingTransfer{
		TransferID:          id,
		SenderIdentity:      "sender@example.com",
		RecipientIdentity:   "recipient@example.com",
		Amount:              "100",
		ClaimTokenEncrypted: "ciphertext",
		Status:              transfer.StatusPending,
		ExpiryDate:          time.Now().Add(24 * time.Hour).UTC(),
	}
}

func testTransferID(suffix string) string {
	return "0x" + strings.Repeat("0", 64-len(suffix)) + suffix
}

func TestCreateAndGetTransfer(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	id := testTransferID("a1")
	if err := store.CreateTransfer(ctx, testTransfer(id)); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	got, err := store.GetTransfer(ctx, transferstore.WithTransferID(id))
	if err != nil {
		t.Fatalf("GetTransfer failed: %v", err)
	}
	if got.TransferID != id {
		t.Errorf("TransferID = %s, want %s", got.TransferID, id)
	}
	if got.RecipientIdentity != "recipient@example.com" {
		t.Errorf("RecipientIdentity = %s", got.RecipientIdentity)
	}
	if got.Status != transfer.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.DepositTxRef != "" {
		t.Errorf("DepositTxRef = %q, want empty", got.DepositTxRef)
	}

	// Duplicate insert maps to the sentinel error.
	err = store.CreateTransfer(ctx, testTransfer(id))
	if !errors.Is(err, transferstore.ErrDuplicateTransfer) {
		t.Errorf("duplicate insert: got %v, want ErrDuplicateTransfer", err)
	}
}

func TestGetTransfer_NotFound(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()

	_, err := store.GetTransfer(context.Background(), transferstore.WithTransferID(testTransferID("ff")))
	if !errors.Is(err, transferstore.ErrTransferNotFound) {
		t.Errorf("got %v, want ErrTransferNotFound", err)
	}
}

func TestMarkDepositObserved(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	id := testTransferID("b2")
	if err := store.CreateTransfer(ctx, testTransfer(id)); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	if err := store.MarkDepositObserved(ctx, id, "ledger:42"); err != nil {
		t.Fatalf("MarkDepositObserved failed: %v", err)
	}

	got, err := store.GetTransfer(ctx, transferstore.WithTransferID(id))
	if err != nil {
		t.Fatalf("GetTransfer failed: %v", err)
	}
	if got.DepositTxRef != "ledger:42" {
		t.Errorf("DepositTxRef = %q, want ledger:42", got.DepositTxRef)
	}

	err = store.MarkDepositObserved(ctx, testTransferID("ff"), "ledger:43")
	if !errors.Is(err, transferstore.ErrTransferNotFound) {
		t.Errorf("unknown transfer: got %v, want ErrTransferNotFound", err)
	}
}

func TestUpdateStatus_Guarded(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	id := testTransferID("c3")
	if err := store.CreateTransfer(ctx, testTransfer(id)); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	if err := store.UpdateStatus(ctx, id, transfer.StatusPending, transfer.StatusClaimed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// The guard is on the from-status: a second pending->claimed move loses.
	err := store.UpdateStatus(ctx, id, transfer.StatusPending, transfer.StatusRefunded)
	if !errors.Is(err, transferstore.ErrStatusConflict) {
		t.Errorf("conflicting update: got %v, want ErrStatusConflict", err)
	}

	err = store.UpdateStatus(ctx, testTransferID("ff"), transfer.StatusPending, transfer.StatusClaimed)
	if !errors.Is(err, transferstore.ErrTransferNotFound) {
		t.Errorf("unknown transfer: got %v, want ErrTransferNotFound", err)
	}

	got, err := store.GetTransfer(ctx, transferstore.WithTransferID(id))
	if err != nil {
		t.Fatalf("GetTransfer failed: %v", err)
	}
	if got.Status != transfer.StatusClaimed {
		t.Errorf("Status = %s, want claimed", got.Status)
	}
}

func TestListByStatusAndRecipient(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	first := testTransfer(testTransferID("d1"))
	second := testTransfer(testTransferID("d2"))
	second.RecipientIdentity = "other@example.com"
	for _, tr := range []*transfer.PendingTransfer{first, second} {
		if err := store.CreateTransfer(ctx, tr); err != nil {
			t.Fatalf("CreateTransfer failed: %v", err)
		}
	}
	if err := store.UpdateStatus(ctx, second.TransferID, transfer.StatusPending, transfer.StatusClaimed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	pending, err := store.ListByStatus(ctx, transfer.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 1 || pending[0].TransferID != first.TransferID {
		t.Errorf("ListByStatus(pending) = %d rows, want just %s", len(pending), first.TransferID)
	}

	mine, err := store.ListByRecipient(ctx, "recipient@example.com")
	if err != nil {
		t.Fatalf("ListByRecipient failed: %v", err)
	}
	if len(mine) != 1 || mine[0].TransferID != first.TransferID {
		t.Errorf("ListByRecipient = %d rows, want just %s", len(mine), first.TransferID)
	}
}

func TestListExpired(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	live := testTransfer(testTransferID("e1"))
	expired := testTransfer(testTransferID("e2"))
	expired.ExpiryDate = time.Now().Add(-time.Hour).UTC()
	for _, tr := range []*transfer.PendingTransfer{live, expired} {
		if err := store.CreateTransfer(ctx, tr); err != nil {
			t.Fatalf("CreateTransfer failed: %v", err)
		}
	}

	got, err := store.ListExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListExpired failed: %v", err)
	}
	if len(got) != 1 || got[0].TransferID != expired.TransferID {
		t.Errorf("ListExpired = %d rows, want just %s", len(got), expired.TransferID)
	}
}

func TestSettlements(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	id := testTransferID("f1")
	if err := store.CreateTransfer(ctx, testTransfer(id)); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	s := &transfer.Settlement{
		ID:         "3b7e6a1c-70a7-4f1a-9a67-0a4c9a51f001",
		TransferID: id,
		Kind:       transfer.SettlementRelease,
		Mode:       "secret",
		TxRef:      "coordinator:release:abc",
	}
	if err := store.RecordSettlement(ctx, s); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}

	got, err := store.ListSettlements(ctx, id)
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListSettlements = %d rows, want 1", len(got))
	}
	if got[0].Kind != transfer.SettlementRelease || got[0].Mode != "secret" {
		t.Errorf("settlement = %+v", got[0])
	}
}

func TestIssuedNonces(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	recipient := "0x90F79bf6EB2c4f870365E785982E1f101E93b906"

	_, found, err := store.LastIssuedNonce(ctx, recipient)
	if err != nil {
		t.Fatalf("LastIssuedNonce failed: %v", err)
	}
	if found {
		t.Error("found a nonce for an unknown recipient")
	}

	if err := store.RecordIssuedNonce(ctx, recipient, 0); err != nil {
		t.Fatalf("RecordIssuedNonce failed: %v", err)
	}
	if err := store.RecordIssuedNonce(ctx, recipient, 1); err != nil {
		t.Fatalf("RecordIssuedNonce upsert failed: %v", err)
	}

	nonce, found, err := store.LastIssuedNonce(ctx, recipient)
	if err != nil {
		t.Fatalf("LastIssuedNonce failed: %v", err)
	}
	if !found || nonce != 1 {
		t.Errorf("LastIssuedNonce = (%d, %v), want (1, true)", nonce, found)
	}
}
