// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/todomaster/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateIfNotExists はユーザーを作成する。
	// 同一IDのユーザーが既に存在する場合は何もせず、createdにfalseを返す。
	CreateIfNotExists(ctx context.Context, user *model.User) (created bool, err error)

	// ActivateSubscription はサブスクリプションを有効化し、終了日時をendsで上書きする。
	// ユーザーが存在しない場合はnilを返す。
	ActivateSubscription(ctx context.Context, id string, ends, now time.Time) (*model.User, error)

	// ClearExpiredSubscription は終了日時がnowより前の場合に限りサブスクリプションを解除する。
	// 条件に一致せず更新されなかった場合はfalseを返す。
	ClearExpiredSubscription(ctx context.Context, id string, now time.Time) (bool, error)

	// ClearAllExpiredSubscriptions は終了日時がnowより前の全ユーザーのサブスクリプションを解除し、
	// 更新件数を返す。
	ClearAllExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error)
}

// TodoRepository はtodoデータの永続化インターフェース。
// 一覧系のメソッドは必ずユーザーIDで絞り込む。
type TodoRepository interface {
	// FindByID は指定IDのtodoを所有者を問わず取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Todo, error)

	// Create はtodoを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// ListByUser はユーザーのtodoを created_at DESC, id DESC の順で取得する。
	// searchが空でない場合はタイトルの大文字小文字を区別しない部分一致で絞り込む。
	ListByUser(ctx context.Context, userID, search string, limit, offset int) ([]*model.Todo, error)

	// CountByUser はListByUserと同じ条件に一致する件数を返す。
	CountByUser(ctx context.Context, userID, search string) (int, error)

	// ToggleCompleted はtodoの完了状態を反転する。
	// idとuserIDの両方に一致する行が無い場合はnilを返す。
	ToggleCompleted(ctx context.Context, id, userID string, now time.Time) (*model.Todo, error)

	// Delete はidとuserIDの両方に一致するtodoを削除する。
	// 削除対象が無い場合はfalseを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}
