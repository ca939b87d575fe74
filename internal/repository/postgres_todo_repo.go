package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/todomaster/internal/model"
)

// pgForeignKeyViolation はPostgreSQLの外部キー制約違反のSQLSTATE。
const pgForeignKeyViolation pq.ErrorCode = "23503"

// PostgresTodoRepo はPostgreSQLを使用したtodoリポジトリ。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

const todoColumns = `id, user_id, title, completed, created_at, updated_at`

// 検索語が空の場合は絞り込みを行わない。
// $2 にはescapeLikePatternでエスケープ済みの文字列を渡す。
const todoSearchCondition = `user_id = $1 AND ($2 = '' OR title ILIKE '%' || $2 || '%' ESCAPE '\')`

func scanTodo(s rowScanner) (*model.Todo, error) {
	todo := &model.Todo{}
	if err := s.Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Completed, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	return todo, nil
}

// escapeLikePattern はLIKEのメタ文字（\ % _）をエスケープし、
// 検索語をリテラルの部分文字列として扱えるようにする。
func escapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// FindByID は指定IDのtodoを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`,
		id,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("todoの取得に失敗しました: %w", err)
	}

	return todo, nil
}

// Create はtodoを作成する。
// 所有ユーザーがusersテーブルに存在しない場合はUSER_NOT_FOUNDを返す。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (`+todoColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		todo.ID, todo.UserID, todo.Title, todo.Completed, todo.CreatedAt, todo.UpdatedAt,
	)
	return mapInsertTodoError(err)
}

// mapInsertTodoError はINSERTのエラーをドメインエラーに変換する。
// user_idの外部キー違反は、IdPで認証済みだがWebhookによる登録がまだのユーザーを意味する。
func mapInsertTodoError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		return model.NewUserNotFoundError()
	}
	return fmt.Errorf("todoの作成に失敗しました: %w", err)
}

// ListByUser はユーザーのtodoを created_at DESC, id DESC の順で取得する。
// idを第2ソートキーにすることで、作成日時が同一でもページ間で重複・欠落が起きない。
func (r *PostgresTodoRepo) ListByUser(ctx context.Context, userID, search string, limit, offset int) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+`
		 FROM todos
		 WHERE `+todoSearchCondition+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, escapeLikePattern(search), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("todo一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	todos := make([]*model.Todo, 0, limit)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("todo行の読み取りに失敗しました: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("todo一覧の走査に失敗しました: %w", err)
	}

	return todos, nil
}

// CountByUser はListByUserと同じ条件に一致する件数を返す。
func (r *PostgresTodoRepo) CountByUser(ctx context.Context, userID, search string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM todos WHERE `+todoSearchCondition,
		userID, escapeLikePattern(search),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("todo件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ToggleCompleted はtodoの完了状態を1文のUPDATEで反転する。
// 読み取りと書き込みの間に他リクエストが割り込んでも反転が失われない。
func (r *PostgresTodoRepo) ToggleCompleted(ctx context.Context, id, userID string, now time.Time) (*model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx,
		`UPDATE todos
		 SET completed = NOT completed, updated_at = $3
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+todoColumns,
		id, userID, now,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("todoの完了状態の更新に失敗しました: %w", err)
	}

	return todo, nil
}

// Delete はidとuserIDの両方に一致するtodoを物理削除する。
func (r *PostgresTodoRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("todoの削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
