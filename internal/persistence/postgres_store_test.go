package persistence

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/keycase/internal/testutil"
)

type PostgresStoreTestSuite struct {
	suite.Suite
	db    *sql.DB
	store *PostgresRunStore
}

func TestPostgresTestSuite(t *testing.T) {
	dsn := testutil.GetPostgresDSN(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewPostgresRunStore(db)
	if err != nil {
		t.Fatalf("NewPostgresRunStore failed: %v", err)
	}

	suite.Run(t, &PostgresStoreTestSuite{db: db, store: store})
}

func (p *PostgresStoreTestSuite) SetupTest() {
	_, err := p.db.ExecContext(context.Background(), `TRUNCATE TABLE runs`)
	p.Require().NoError(err)
}

func (p *PostgresStoreTestSuite) TestPostgresRunStore_Contract() {
	testRunStoreContract(p.T(), p.store)
}
