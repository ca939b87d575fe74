package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todomaster/internal/middleware"
	"github.com/hitoshi/todomaster/internal/model"
	"github.com/hitoshi/todomaster/internal/validation"
)

// --- モック定義 ---

// mockTodoService はTodoServiceInterfaceのモック実装。
type mockTodoService struct {
	listFn   func(ctx context.Context, userID string, page int, search string) (*todoListResponse, error)
	createFn func(ctx context.Context, userID, title string) (*todoResponse, error)
	toggleFn func(ctx context.Context, userID, todoID string) (*todoResponse, error)
	deleteFn func(ctx context.Context, userID, todoID string) error
}

func (m *mockTodoService) List(ctx context.Context, userID string, page int, search string) (*todoListResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, page, search)
	}
	return &todoListResponse{Todos: []todoResponse{}, CurrentPage: page}, nil
}

func (m *mockTodoService) Create(ctx context.Context, userID, title string) (*todoResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, title)
	}
	return &todoResponse{ID: "t-1", UserID: userID, Title: title}, nil
}

func (m *mockTodoService) ToggleComplete(ctx context.Context, userID, todoID string) (*todoResponse, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, userID, todoID)
	}
	return &todoResponse{ID: todoID, UserID: userID, Completed: true}, nil
}

func (m *mockTodoService) Delete(ctx context.Context, userID, todoID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, todoID)
	}
	return nil
}

// --- ヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func newTestTodoHandler(svc TodoServiceInterface) *TodoHandler {
	return NewTodoHandler(svc, validation.New())
}

// --- GET /api/todos テスト ---

func TestTodoHandler_ListTodos_Success(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := &mockTodoService{
		listFn: func(ctx context.Context, userID string, page int, search string) (*todoListResponse, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if page != 2 {
				t.Errorf("page = %d, want 2", page)
			}
			if search != "milk" {
				t.Errorf("search = %q, want %q", search, "milk")
			}
			return &todoListResponse{
				Todos: []todoResponse{
					{ID: "t-1", UserID: userID, Title: "Buy milk", CreatedAt: created, UpdatedAt: created},
				},
				TotalPages:  3,
				CurrentPage: 2,
			}, nil
		},
	}
	h := newTestTodoHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/todos?page=2&search=milk", nil), "user-123")
	w := httptest.NewRecorder()
	h.ListTodos(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["totalPages"] != float64(3) || raw["currentPage"] != float64(2) {
		t.Errorf("pagination = %v/%v, want 3/2", raw["totalPages"], raw["currentPage"])
	}
	todos := raw["todos"].([]any)
	if len(todos) != 1 {
		t.Fatalf("todos = %d, want 1", len(todos))
	}
	first := todos[0].(map[string]any)
	for _, key := range []string{"id", "userId", "title", "completed", "createdAt", "updatedAt"} {
		if _, ok := first[key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
}

func TestTodoHandler_ListTodos_DefaultsAndEmpty(t *testing.T) {
	var gotPage int
	svc := &mockTodoService{
		listFn: func(ctx context.Context, userID string, page int, search string) (*todoListResponse, error) {
			gotPage = page
			return &todoListResponse{Todos: []todoResponse{}, TotalPages: 0, CurrentPage: 1}, nil
		},
	}
	h := newTestTodoHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/todos?page=abc", nil), "user-123")
	w := httptest.NewRecorder()
	h.ListTodos(w, req)

	if gotPage != 1 {
		t.Errorf("page = %d, want 1", gotPage)
	}
	// 空の一覧はnullではなく[]で返す
	if !strings.Contains(w.Body.String(), `"todos":[]`) {
		t.Errorf("body = %s, want empty array", w.Body.String())
	}
}

func TestTodoHandler_ListTodos_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := newTestTodoHandler(&mockTodoService{})

	w := httptest.NewRecorder()
	h.ListTodos(w, httptest.NewRequest(http.MethodGet, "/api/todos", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
	}
}

func TestTodoHandler_ListTodos_StorageError_HidesDetails(t *testing.T) {
	svc := &mockTodoService{
		listFn: func(ctx context.Context, userID string, page int, search string) (*todoListResponse, error) {
			return nil, errors.New("pq: connection refused")
		},
	}
	h := newTestTodoHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/todos", nil), "user-123")
	w := httptest.NewRecorder()
	h.ListTodos(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "pq:") {
		t.Errorf("内部エラーの詳細がレスポンスに含まれています: %s", w.Body.String())
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

// --- POST /api/todos テスト ---

func TestTodoHandler_CreateTodo_Success(t *testing.T) {
	var gotTitle string
	svc := &mockTodoService{
		createFn: func(ctx context.Context, userID, title string) (*todoResponse, error) {
			gotTitle = title
			return &todoResponse{ID: "t-1", UserID: userID, Title: "Buy milk"}, nil
		},
	}
	h := newTestTodoHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"title":"  Buy milk  "}`)), "user-123")
	w := httptest.NewRecorder()
	h.CreateTodo(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	// トリムはサービス層の責務
	if gotTitle != "  Buy milk  " {
		t.Errorf("title = %q, want raw input", gotTitle)
	}
	var resp todoResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Title != "Buy milk" {
		t.Errorf("title = %q, want %q", resp.Title, "Buy milk")
	}
}

func TestTodoHandler_CreateTodo_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		svcErr   error
		wantCode string
	}{
		{name: "不正なJSON", body: `{"title":`, wantCode: model.ErrCodeInvalidRequest},
		{name: "タイトルなし", body: `{}`, wantCode: model.ErrCodeValidation},
		{name: "空白のみ", body: `{"title":"   "}`, svcErr: model.NewEmptyTitleError(), wantCode: model.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTodoService{
				createFn: func(ctx context.Context, userID, title string) (*todoResponse, error) {
					if tt.svcErr == nil {
						t.Fatal("service should not be called")
					}
					return nil, tt.svcErr
				},
			}
			h := newTestTodoHandler(svc)

			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(tt.body)), "user-123")
			w := httptest.NewRecorder()
			h.CreateTodo(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// --- PUT/DELETE /api/todos/{id} テスト ---

func TestTodoHandler_ToggleAndDelete_Success(t *testing.T) {
	var toggledID, deletedID string
	svc := &mockTodoService{
		toggleFn: func(ctx context.Context, userID, todoID string) (*todoResponse, error) {
			toggledID = todoID
			return &todoResponse{ID: todoID, Completed: true}, nil
		},
		deleteFn: func(ctx context.Context, userID, todoID string) error {
			deletedID = todoID
			return nil
		},
	}
	h := newTestTodoHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPut, "/api/todos/t-1", nil), "user-123"), "id", "t-1")
	w := httptest.NewRecorder()
	h.ToggleTodo(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"message"`) {
		t.Errorf("toggle body = %s", w.Body.String())
	}

	req = withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/api/todos/t-1", nil), "user-123"), "id", "t-1")
	w = httptest.NewRecorder()
	h.DeleteTodo(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}

	if toggledID != "t-1" || deletedID != "t-1" {
		t.Errorf("ids = %q/%q, want t-1", toggledID, deletedID)
	}
}

func TestTodoHandler_ToggleAndDelete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"存在しない", model.NewTodoNotFoundError("t-1"), http.StatusNotFound},
		{"他ユーザー", model.NewForbiddenError(), http.StatusForbidden},
		{"ストレージエラー", errors.New("timeout"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTodoService{
				toggleFn: func(ctx context.Context, userID, todoID string) (*todoResponse, error) {
					return nil, tt.err
				},
				deleteFn: func(ctx context.Context, userID, todoID string) error {
					return tt.err
				},
			}
			h := newTestTodoHandler(svc)

			req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPut, "/api/todos/t-1", nil), "user-123"), "id", "t-1")
			w := httptest.NewRecorder()
			h.ToggleTodo(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("toggle status = %d, want %d", w.Code, tt.wantStatus)
			}

			req = withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/api/todos/t-1", nil), "user-123"), "id", "t-1")
			w = httptest.NewRecorder()
			h.DeleteTodo(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("delete status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
