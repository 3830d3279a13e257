package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/facade"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// FacadeRepository implements facade.Repository for PostgreSQL. The facade
// business logic itself lives outside the database; this only persists the
// registration row internal/facadebus reads.
type FacadeRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewFacadeRepository(logger *slog.Logger, db *persistence.PostgresDB) facade.Repository {
	return &FacadeRepository{querier: db.Pool(), logger: logger}
}

func (r *FacadeRepository) WithTx(tx pgx.Tx) facade.Repository {
	return &FacadeRepository{querier: tx, logger: r.logger}
}

func (r *FacadeRepository) Create(ctx context.Context, f *facade.Facade) error {
	query := `
		INSERT INTO facades (id, name, type, bank_account_id, bank_connection_id, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.querier.Exec(ctx, query, f.ID, f.Name, f.Type, f.BankAccountID, f.BankConnectionID, f.Config, f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return facade.ErrDuplicate{Name: f.Name}
		}
		r.logger.Error("failed to create facade", "error", err)
		return fmt.Errorf("failed to create facade: %w", err)
	}
	return nil
}

const facadeColumns = `id, name, type, bank_account_id, bank_connection_id, config, created_at`

func scanFacade(row pgx.Row) (*facade.Facade, error) {
	var f facade.Facade
	err := row.Scan(&f.ID, &f.Name, &f.Type, &f.BankAccountID, &f.BankConnectionID, &f.Config, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FacadeRepository) GetByName(ctx context.Context, name string) (*facade.Facade, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+facadeColumns+" FROM facades WHERE name = $1", name)
	f, err := scanFacade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, facade.ErrNotFound{Name: name}
		}
		return nil, fmt.Errorf("failed to get facade: %w", err)
	}
	return f, nil
}

func (r *FacadeRepository) List(ctx context.Context) ([]*facade.Facade, error) {
	rows, err := r.querier.Query(ctx, "SELECT "+facadeColumns+" FROM facades ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list facades: %w", err)
	}
	defer rows.Close()

	var out []*facade.Facade
	for rows.Next() {
		f, err := scanFacade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facade: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
