package coordinatordb

import (
	"context"
	"log"

	mghelper "github.com/chainsafe/escrow-middleware/pkg/pgutil/migrations"
	"github.com/chainsafe/escrow-middleware/pkg/transferstore"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating pending_transfers table...")
		if err := mghelper.CreateSchema(ctx, db, &transferstore.PendingTransferDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &transferstore.PendingTransferDao{},
			"recipient_identity", "status", "expiry_date")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping pending_transfers table...")
		return mghelper.DropTables(ctx, db, &transferstore.PendingTransferDao{})
	})
}
