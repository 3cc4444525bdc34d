package repository

import "github.com/jmoiron/sqlx"

// SQLStore combines the account and record repositories into one store.
type SQLStore struct {
	*AccountRepository
	*RecordRepository
}

// NewSQLStore wires both repositories over the same connection pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		AccountRepository: NewAccountRepository(db),
		RecordRepository:  NewRecordRepository(db),
	}
}
