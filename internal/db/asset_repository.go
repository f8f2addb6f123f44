package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAssetNotFound = errors.New("asset not found")

type Asset struct {
	ID        int64
	UserID    uuid.UUID
	Name      string
	Amount    float64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AssetRepository struct {
	db *DB
}

func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, asset *Asset) error {
	query := `
		INSERT INTO assets (user_id, name, amount, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		asset.UserID, asset.Name, asset.Amount, asset.Currency,
	).Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
}

func (r *AssetRepository) GetByID(ctx context.Context, id int64, userID uuid.UUID) (*Asset, error) {
	query := `
		SELECT id, user_id, name, amount, currency, created_at, updated_at
		FROM assets
		WHERE id = $1 AND user_id = $2
	`

	asset := &Asset{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&asset.ID, &asset.UserID, &asset.Name, &asset.Amount, &asset.Currency,
		&asset.CreatedAt, &asset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	return asset, nil
}

func (r *AssetRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Asset, error) {
	query := `
		SELECT id, user_id, name, amount, currency, created_at, updated_at
		FROM assets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Amount, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *AssetRepository) Update(ctx context.Context, asset *Asset) error {
	query := `
		UPDATE assets
		SET name = $3, amount = $4, currency = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.UserID, asset.Name, asset.Amount, asset.Currency)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrAssetNotFound)
}

func (r *AssetRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM assets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrAssetNotFound)
}
