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
		log.Println("creating settlements table...")
		if err := mghelper.CreateSchema(ctx, db, &transferstore.SettlementDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &transferstore.SettlementDao{},
			"transfer_id", "kind")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping settlements table...")
		return mghelper.DropTables(ctx, db, &transferstore.SettlementDao{})
	})
}
