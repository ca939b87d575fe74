package handler

import (
	"context"

	"github.com/hitoshi/todomaster/internal/model"
	"github.com/hitoshi/todomaster/internal/subscription"
	"github.com/hitoshi/todomaster/internal/todo"
	"github.com/hitoshi/todomaster/internal/user"
)

// TodoServiceAdapter は todo.Service を TodoServiceInterface に適合させるアダプタ。
type TodoServiceAdapter struct {
	svc *todo.Service
}

// NewTodoServiceAdapter はTodoServiceAdapterを生成する。
func NewTodoServiceAdapter(svc *todo.Service) *TodoServiceAdapter {
	return &TodoServiceAdapter{svc: svc}
}

// List はtodo一覧をhandlerレスポンス型で返す。
func (a *TodoServiceAdapter) List(ctx context.Context, userID string, page int, search string) (*todoListResponse, error) {
	result, err := a.svc.List(ctx, userID, page, search)
	if err != nil {
		return nil, err
	}

	todos := make([]todoResponse, len(result.Todos))
	for i, t := range result.Todos {
		todos[i] = toTodoResponse(t)
	}
	return &todoListResponse{
		Todos:       todos,
		TotalPages:  result.TotalPages,
		CurrentPage: result.CurrentPage,
	}, nil
}

// Create はtodoを作成しhandlerレスポンス型で返す。
func (a *TodoServiceAdapter) Create(ctx context.Context, userID, title string) (*todoResponse, error) {
	t, err := a.svc.Create(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	resp := toTodoResponse(t)
	return &resp, nil
}

// ToggleComplete はtodoの完了状態を反転しhandlerレスポンス型で返す。
func (a *TodoServiceAdapter) ToggleComplete(ctx context.Context, userID, todoID string) (*todoResponse, error) {
	t, err := a.svc.ToggleComplete(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}
	resp := toTodoResponse(t)
	return &resp, nil
}

// Delete はtodoを削除する。
func (a *TodoServiceAdapter) Delete(ctx context.Context, userID, todoID string) error {
	return a.svc.Delete(ctx, userID, todoID)
}

// toTodoResponse はドメインのTodoをhandlerのレスポンス型に変換する。
func toTodoResponse(t *model.Todo) todoResponse {
	return todoResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// SubscriptionServiceAdapter は subscription.Service を SubscriptionServiceInterface に適合させるアダプタ。
type SubscriptionServiceAdapter struct {
	svc *subscription.Service
}

// NewSubscriptionServiceAdapter はSubscriptionServiceAdapterを生成する。
func NewSubscriptionServiceAdapter(svc *subscription.Service) *SubscriptionServiceAdapter {
	return &SubscriptionServiceAdapter{svc: svc}
}

// GetStatus はサブスクリプション状態をhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) GetStatus(ctx context.Context, userID string) (*subscriptionStatusResponse, error) {
	status, err := a.svc.GetStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toSubscriptionStatusResponse(status), nil
}

// Activate はサブスクリプションを有効化しhandlerレスポンス型で返す。
func (a *SubscriptionServiceAdapter) Activate(ctx context.Context, userID string) (*subscriptionStatusResponse, error) {
	status, err := a.svc.Activate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toSubscriptionStatusResponse(status), nil
}

func toSubscriptionStatusResponse(s *model.SubscriptionStatus) *subscriptionStatusResponse {
	return &subscriptionStatusResponse{
		IsSubscribed:     s.IsSubscribed,
		SubscriptionEnds: s.SubscriptionEnds,
	}
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Get はユーザー情報をhandlerレスポンス型で返す。
func (a *UserServiceAdapter) Get(ctx context.Context, userID string) (*userResponse, error) {
	u, err := a.svc.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userResponse{
		ID:               u.ID,
		Email:            u.Email,
		IsSubscribed:     u.IsSubscribed,
		SubscriptionEnds: u.SubscriptionEnds,
		CreatedAt:        u.CreatedAt,
	}, nil
}

// Register はユーザーを冪等に登録する。
func (a *UserServiceAdapter) Register(ctx context.Context, userID, email string) (bool, error) {
	return a.svc.Register(ctx, userID, email)
}

// --- compile-time interface checks ---

var _ TodoServiceInterface = (*TodoServiceAdapter)(nil)
var _ SubscriptionServiceInterface = (*SubscriptionServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
var _ UserRegistrar = (*UserServiceAdapter)(nil)
