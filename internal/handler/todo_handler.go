package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todomaster/internal/validation"
)

// TodoServiceInterface はtodoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	// List はユーザーのtodoをページ単位で返す。
	List(ctx context.Context, userID string, page int, search string) (*todoListResponse, error)
	// Create はtodoを作成する。
	Create(ctx context.Context, userID, title string) (*todoResponse, error)
	// ToggleComplete はtodoの完了状態を反転する。
	ToggleComplete(ctx context.Context, userID, todoID string) (*todoResponse, error)
	// Delete はtodoを削除する。
	Delete(ctx context.Context, userID, todoID string) error
}

// TodoHandler はtodo管理のHTTPハンドラー。
type TodoHandler struct {
	service   TodoServiceInterface
	validator *validation.Validator
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface, validator *validation.Validator) *TodoHandler {
	return &TodoHandler{
		service:   service,
		validator: validator,
	}
}

// todoResponse はtodoのAPIレスポンス。
type todoResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// todoListResponse はtodo一覧のAPIレスポンス。
type todoListResponse struct {
	Todos       []todoResponse `json:"todos"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

// createTodoRequest はtodo作成リクエストのボディ。
// 空白のみのタイトルはサービス層で検出する。
type createTodoRequest struct {
	Title string `json:"title" validate:"required,max=2000"`
}

// ListTodos はユーザーのtodo一覧を取得する。
// GET /api/todos?page=1&search=milk
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := 1
	if v := q.Get("page"); v != "" {
		// 数値でないページ指定は1ページ目として扱う
		if n, err := strconv.Atoi(v); err == nil {
			page = n
		}
	}

	result, err := h.service.List(r.Context(), userID, page, q.Get("search"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateTodo はtodoを作成する。
// POST /api/todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := h.validator.DecodeJSON(r.Body, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	todo, err := h.service.Create(r.Context(), userID, req.Title)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, todo)
}

// ToggleTodo はtodoの完了状態を反転する。
// PUT /api/todos/{id}
func (h *TodoHandler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.ToggleComplete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Todo updated successfully"})
}

// DeleteTodo はtodoを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Todo deleted successfully"})
}
