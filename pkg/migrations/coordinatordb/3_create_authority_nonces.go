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
		log.Println("creating authority_nonces table...")
		return mghelper.CreateSchema(ctx, db, &transferstore.AuthorityNonceDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping authority_nonces table...")
		return mghelper.DropTables(ctx, db, &transferstore.AuthorityNonceDao{})
	})
}
