// Package todo はユーザーごとのtodo一覧と更新操作を提供する。
package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/todomaster/internal/model"
	"github.com/hitoshi/todomaster/internal/repository"
)

// DefaultPageSize はページサイズ未指定時の1ページあたりの件数。
const DefaultPageSize = 10

// Recorder はtodo操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordTodoCreated()
	RecordTodoToggled()
	RecordTodoDeleted()
}

// Service はtodo管理のサービス層。
// すべての操作は呼び出し元ユーザーのIDを明示的に受け取り、そのユーザーのtodoのみを扱う。
type Service struct {
	todoRepo repository.TodoRepository
	recorder Recorder
	pageSize int
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// pageSizeが1未満の場合はDefaultPageSizeを使用する。recorderはnilでもよい。
func NewService(
	todoRepo repository.TodoRepository,
	recorder Recorder,
	pageSize int,
) *Service {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Service{
		todoRepo: todoRepo,
		recorder: recorder,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// List はユーザーのtodoを作成日時の新しい順にページ単位で返す。
// pageは1始まりで、1未満は1として扱う。searchはタイトルの大文字小文字を区別しない部分一致。
// 範囲外のページは空の一覧を返す。
func (s *Service) List(ctx context.Context, userID string, page int, search string) (*model.TodoPage, error) {
	if userID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if page < 1 {
		page = 1
	}
	search = strings.TrimSpace(search)

	total, err := s.todoRepo.CountByUser(ctx, userID, search)
	if err != nil {
		return nil, fmt.Errorf("todo件数の取得に失敗しました: %w", err)
	}

	result := &model.TodoPage{
		Todos:       []*model.Todo{},
		TotalPages:  (total + s.pageSize - 1) / s.pageSize,
		CurrentPage: page,
	}

	offset := (page - 1) * s.pageSize
	if offset >= total {
		return result, nil
	}

	todos, err := s.todoRepo.ListByUser(ctx, userID, search, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("todo一覧の取得に失敗しました: %w", err)
	}
	result.Todos = todos

	return result, nil
}

// Create はtodoを作成する。
// タイトルは前後の空白のみを取り除いてそのまま保存し、空であればVALIDATION_ERRORを返す。
// HTMLとしてのエスケープは表示側の責務とする。
func (s *Service) Create(ctx context.Context, userID, title string) (*model.Todo, error) {
	if userID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.NewEmptyTitleError()
	}
	if utf8.RuneCountInString(title) > model.TodoTitleMaxLength {
		return nil, model.NewTitleTooLongError(model.TodoTitleMaxLength)
	}

	// TIMESTAMPTZの精度に揃え、一覧取得時と同じ値を返す
	now := s.now().Truncate(time.Microsecond)
	todo := &model.Todo{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.todoRepo.Create(ctx, todo); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("todoの作成に失敗しました: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordTodoCreated()
	}

	return todo, nil
}

// ToggleComplete はtodoの完了状態を反転する。
// 存在しない場合はTODO_NOT_FOUND、他ユーザーのtodoの場合はFORBIDDENを返す。
func (s *Service) ToggleComplete(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	todoID, err := s.authorize(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}

	todo, err := s.todoRepo.ToggleCompleted(ctx, todoID, userID, s.now().Truncate(time.Microsecond))
	if err != nil {
		return nil, fmt.Errorf("todoの完了状態の更新に失敗しました: %w", err)
	}
	// 所有者確認の後に削除された
	if todo == nil {
		return nil, model.NewTodoNotFoundError(todoID)
	}

	if s.recorder != nil {
		s.recorder.RecordTodoToggled()
	}

	return todo, nil
}

// Delete はtodoを物理削除する。
// 存在しない場合はTODO_NOT_FOUND、他ユーザーのtodoの場合はFORBIDDENを返す。
func (s *Service) Delete(ctx context.Context, userID, todoID string) error {
	todoID, err := s.authorize(ctx, userID, todoID)
	if err != nil {
		return err
	}

	deleted, err := s.todoRepo.Delete(ctx, todoID, userID)
	if err != nil {
		return fmt.Errorf("todoの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError(todoID)
	}

	slog.Info("todo deleted",
		slog.String("user_id", userID),
		slog.String("todo_id", todoID),
	)
	if s.recorder != nil {
		s.recorder.RecordTodoDeleted()
	}

	return nil
}

// authorize はtodoの存在と所有者を確認し、正規形（小文字ハイフン区切り36文字）のIDを返す。
// IDがUUIDとして解釈できない場合は存在しないものとして扱う。
// urn:uuid: や波括弧付きの表記もuuid.Parseは受け付けるため、以降のクエリには正規形を使う。
func (s *Service) authorize(ctx context.Context, userID, todoID string) (string, error) {
	if userID == "" {
		return "", model.NewUnauthenticatedError()
	}
	parsed, err := uuid.Parse(todoID)
	if err != nil {
		return "", model.NewTodoNotFoundError(todoID)
	}
	id := parsed.String()

	todo, err := s.todoRepo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("todoの取得に失敗しました: %w", err)
	}
	if todo == nil {
		return "", model.NewTodoNotFoundError(id)
	}
	if todo.UserID != userID {
		slog.Warn("forbidden todo access",
			slog.String("user_id", userID),
			slog.String("todo_id", id),
		)
		return "", model.NewForbiddenError()
	}

	return id, nil
}
