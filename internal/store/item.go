package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campusfind/apiserver/types"
)

// ItemRepository handles persistence for lost-and-found items.
//
// The claim columns (claimed, claimed_by) are written only by TryClaim;
// Create inserts them unclaimed and Update never touches them.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `
	i.id, i.user_id, i.disposition, i.name, i.category, i.description,
	i.location, i.occurred_on, i.contact_name, i.contact_email, i.contact_phone,
	i.reward_offer, i.department, i.image_url, i.image_key,
	i.claimed, i.claimed_by, i.created_at, i.updated_at,
	r.id, r.name, r.email,
	c.id, c.name, c.email`

const itemJoins = `
	FROM items i
	JOIN users r ON r.id = i.user_id
	LEFT JOIN users c ON c.id = i.claimed_by`

func (r *ItemRepository) List(ctx context.Context) ([]types.Item, error) {
	const query = `SELECT` + itemColumns + itemJoins + `
		ORDER BY i.created_at DESC, i.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemRepository) Get(ctx context.Context, id int) (types.Item, error) {
	const query = `SELECT` + itemColumns + itemJoins + `
		WHERE i.id = $1`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Item{}, ErrNotFound
		}
		return types.Item{}, err
	}
	return item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item types.Item) (types.Item, error) {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Claimed = false
	item.ClaimedBy = nil

	const query = `
		INSERT INTO items (user_id, disposition, name, category, description, location,
			occurred_on, contact_name, contact_email, contact_phone, reward_offer,
			department, image_url, image_key, claimed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, false, $15, $16)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		item.UserID,
		item.Disposition,
		item.Name,
		item.Category,
		item.Description,
		item.Location,
		item.OccurredOn,
		item.ContactName,
		item.ContactEmail,
		item.ContactPhone,
		item.RewardOffer,
		item.Department,
		item.Image.URL,
		item.Image.ObjectKey,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID); err != nil {
		return types.Item{}, err
	}
	return item, nil
}

// Update rewrites the descriptive fields of a report. Claim state is
// deliberately not part of the statement.
func (r *ItemRepository) Update(ctx context.Context, item types.Item) (types.Item, error) {
	item.UpdatedAt = time.Now()

	const query = `
		UPDATE items
		SET disposition = $1,
			name = $2,
			category = $3,
			description = $4,
			location = $5,
			occurred_on = $6,
			contact_name = $7,
			contact_email = $8,
			contact_phone = $9,
			reward_offer = $10,
			department = $11,
			image_url = $12,
			image_key = $13,
			updated_at = $14
		WHERE id = $15`
	result, err := r.db.ExecContext(
		ctx,
		query,
		item.Disposition,
		item.Name,
		item.Category,
		item.Description,
		item.Location,
		item.OccurredOn,
		item.ContactName,
		item.ContactEmail,
		item.ContactPhone,
		item.RewardOffer,
		item.Department,
		item.Image.URL,
		item.Image.ObjectKey,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return types.Item{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Item{}, err
	}
	if affected == 0 {
		return types.Item{}, ErrNotFound
	}
	return item, nil
}

func (r *ItemRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM items WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TryClaim atomically marks an unclaimed item as claimed by claimantID.
// The claim condition lives in the WHERE clause, so when several requests
// race on the same item the database lets exactly one row update through.
// Zero rows affected means the item is already claimed (ErrAlreadyClaimed)
// or does not exist (ErrNotFound); the two are distinguished by a follow-up
// read.
func (r *ItemRepository) TryClaim(ctx context.Context, itemID, claimantID int) (types.Item, error) {
	const query = `
		UPDATE items
		SET claimed = true,
			claimed_by = $2,
			updated_at = $3
		WHERE id = $1 AND claimed = false`
	result, err := r.db.ExecContext(ctx, query, itemID, claimantID, time.Now())
	if err != nil {
		return types.Item{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Item{}, err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, itemID); err != nil {
			return types.Item{}, err
		}
		return types.Item{}, ErrAlreadyClaimed
	}
	return r.Get(ctx, itemID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (types.Item, error) {
	var item types.Item
	var reporter types.PublicUser
	var claimantID sql.NullInt64
	var claimantName, claimantEmail sql.NullString
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Disposition,
		&item.Name,
		&item.Category,
		&item.Description,
		&item.Location,
		&item.OccurredOn,
		&item.ContactName,
		&item.ContactEmail,
		&item.ContactPhone,
		&item.RewardOffer,
		&item.Department,
		&item.Image.URL,
		&item.Image.ObjectKey,
		&item.Claimed,
		&item.ClaimedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
		&reporter.ID,
		&reporter.Name,
		&reporter.Email,
		&claimantID,
		&claimantName,
		&claimantEmail,
	)
	if err != nil {
		return types.Item{}, err
	}

	item.Reporter = &reporter
	if claimantID.Valid {
		item.Claimant = &types.PublicUser{
			ID:    int(claimantID.Int64),
			Name:  claimantName.String,
			Email: claimantEmail.String,
		}
	}
	return item, nil
}
