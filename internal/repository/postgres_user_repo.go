package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/todomaster/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, is_subscribed, subscription_ends, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	user := &model.User{}
	var ends sql.NullTime
	if err := s.Scan(&user.ID, &user.Email, &user.IsSubscribed, &ends, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if ends.Valid {
		t := ends.Time
		user.SubscriptionEnds = &t
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// CreateIfNotExists はユーザーを作成する。
// 主キー重複はON CONFLICTで吸収し、既存ユーザーは変更しない。
func (r *PostgresUserRepo) CreateIfNotExists(ctx context.Context, user *model.User) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, is_subscribed, subscription_ends, created_at, updated_at)
		 VALUES ($1, $2, false, NULL, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Email, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// ActivateSubscription はサブスクリプションを有効化し、終了日時をendsで上書きする。
// 既存の終了日時には加算しない。ユーザーが存在しない場合はnilを返す。
func (r *PostgresUserRepo) ActivateSubscription(ctx context.Context, id string, ends, now time.Time) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET is_subscribed = true, subscription_ends = $2, updated_at = $3
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, ends, now,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	return user, nil
}

// ClearExpiredSubscription は終了日時がnowより前の場合に限りサブスクリプションを解除する。
// WHERE句で期限切れを再確認するため、並行して有効化された行は上書きしない。
func (r *PostgresUserRepo) ClearExpiredSubscription(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET is_subscribed = false, subscription_ends = NULL, updated_at = $2
		 WHERE id = $1 AND subscription_ends IS NOT NULL AND subscription_ends < $2`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to clear expired subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ClearAllExpiredSubscriptions は終了日時がnowより前の全ユーザーのサブスクリプションを解除する。
func (r *PostgresUserRepo) ClearAllExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET is_subscribed = false, subscription_ends = NULL, updated_at = $1
		 WHERE subscription_ends IS NOT NULL AND subscription_ends < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired subscriptions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
