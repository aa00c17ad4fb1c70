package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/model"
)

type EquipmentRepository struct {
	pool *db.Pool
}

func NewEquipmentRepository(pool *db.Pool) *EquipmentRepository {
	return &EquipmentRepository{pool: pool}
}

func (r *EquipmentRepository) List(ctx context.Context) ([]model.Equipment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.name, COUNT(ea.account_id), e.created_at, e.updated_at
		FROM equipment e
		LEFT JOIN equipment_accounts ea ON ea.equipment_id = e.id
		GROUP BY e.id
		ORDER BY e.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Equipment
	for rows.Next() {
		var e model.Equipment
		if err := rows.Scan(&e.ID, &e.Name, &e.Assigned, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// Assign hands equipment to an account. Assigning twice is a no-op.
func (r *EquipmentRepository) Assign(ctx context.Context, equipmentID, accountID uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM equipment WHERE id = $1)
	`, equipmentID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO equipment_accounts (equipment_id, account_id)
		VALUES ($1, $2)
		ON CONFLICT (equipment_id, account_id) DO NOTHING
	`, equipmentID, accountID)
	return err
}

// Release returns equipment held by the account. Releasing equipment the
// account does not hold reports not found.
func (r *EquipmentRepository) Release(ctx context.Context, equipmentID, accountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM equipment_accounts
		WHERE equipment_id = $1 AND account_id = $2
	`, equipmentID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
