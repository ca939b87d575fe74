package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/todomaster/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	users    map[string]*model.User
	createFn func(ctx context.Context, user *model.User) (bool, error)
	findErr  error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
func (m *mockUserRepo) CreateIfNotExists(ctx context.Context, user *model.User) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	if _, ok := m.users[user.ID]; ok {
		return false, nil
	}
	cp := *user
	m.users[user.ID] = &cp
	return true, nil
}
func (m *mockUserRepo) ActivateSubscription(ctx context.Context, id string, ends, now time.Time) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) ClearExpiredSubscription(ctx context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}
func (m *mockUserRepo) ClearAllExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type mockReconciler struct {
	reconcileFn func(ctx context.Context, user *model.User) (*model.User, error)
}

func (m *mockReconciler) Reconcile(ctx context.Context, user *model.User) (*model.User, error) {
	return m.reconcileFn(ctx, user)
}

type mockRecorder struct {
	calls []bool
}

func (m *mockRecorder) RecordUserRegistered(created bool) {
	m.calls = append(m.calls, created)
}

// --- テスト ---

// TestService_Register_Idempotent は同一IDの再登録が成功として扱われることを検証する。
func TestService_Register_Idempotent(t *testing.T) {
	repo := newMockUserRepo()
	rec := &mockRecorder{}
	svc := NewService(repo, nil, rec)
	ctx := context.Background()

	created, err := svc.Register(ctx, "user_2abc", "a@example.com")
	if err != nil {
		t.Fatalf("1回目: %v", err)
	}
	if !created {
		t.Error("1回目はcreated=trueになるべき")
	}

	created, err = svc.Register(ctx, "user_2abc", "a@example.com")
	if err != nil {
		t.Fatalf("2回目でエラーになりました: %v", err)
	}
	if created {
		t.Error("2回目はcreated=falseになるべき")
	}

	if len(repo.users) != 1 {
		t.Errorf("ユーザー数 = %d, want 1", len(repo.users))
	}
	if len(rec.calls) != 2 || rec.calls[0] != true || rec.calls[1] != false {
		t.Errorf("メトリクス記録が不正: %v", rec.calls)
	}
}

// TestService_Register_NewUserIsUnsubscribed は新規ユーザーが未購読で作成されることを検証する。
func TestService_Register_NewUserIsUnsubscribed(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo, nil, nil)

	if _, err := svc.Register(context.Background(), "user_1", " a@example.com "); err != nil {
		t.Fatalf("Register: %v", err)
	}

	u := repo.users["user_1"]
	if u.IsSubscribed || u.SubscriptionEnds != nil {
		t.Errorf("新規ユーザーが購読状態です: %+v", u)
	}
	if u.Email != "a@example.com" {
		t.Errorf("Email = %q, want %q", u.Email, "a@example.com")
	}
}

// TestService_Register_EmptyUserID はユーザーIDが空の場合に検証エラーを返すことを検証する。
func TestService_Register_EmptyUserID(t *testing.T) {
	repo := newMockUserRepo()
	repo.createFn = func(ctx context.Context, user *model.User) (bool, error) {
		t.Fatal("ストレージにアクセスしてはならない")
		return false, nil
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.Register(context.Background(), "  ", "a@example.com")
	if !model.IsCode(err, model.ErrCodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

// TestService_Register_StorageError はストレージエラーをラップして返すことを検証する。
func TestService_Register_StorageError(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := newMockUserRepo()
	repo.createFn = func(ctx context.Context, user *model.User) (bool, error) {
		return false, dbErr
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.Register(context.Background(), "user_1", "a@example.com")
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

// TestService_Get_ReconcilesSubscription は取得時に期限切れ補正を通すことを検証する。
func TestService_Get_ReconcilesSubscription(t *testing.T) {
	ends := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockUserRepo()
	repo.users["user_1"] = &model.User{ID: "user_1", IsSubscribed: true, SubscriptionEnds: &ends}

	called := false
	reconciler := &mockReconciler{
		reconcileFn: func(ctx context.Context, user *model.User) (*model.User, error) {
			called = true
			cp := *user
			cp.IsSubscribed = false
			cp.SubscriptionEnds = nil
			return &cp, nil
		},
	}
	svc := NewService(repo, reconciler, nil)

	u, err := svc.Get(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !called {
		t.Error("Reconcileが呼ばれていません")
	}
	if u.IsSubscribed {
		t.Error("補正後の状態が返されていません")
	}
}

// TestService_Get_Errors はエラー分類を検証する。
func TestService_Get_Errors(t *testing.T) {
	t.Run("未認証", func(t *testing.T) {
		svc := NewService(newMockUserRepo(), nil, nil)
		_, err := svc.Get(context.Background(), "")
		if !model.IsCode(err, model.ErrCodeUnauthenticated) {
			t.Fatalf("expected UNAUTHENTICATED, got %v", err)
		}
	})

	t.Run("存在しない", func(t *testing.T) {
		svc := NewService(newMockUserRepo(), nil, nil)
		_, err := svc.Get(context.Background(), "ghost")
		if !model.IsCode(err, model.ErrCodeUserNotFound) {
			t.Fatalf("expected USER_NOT_FOUND, got %v", err)
		}
	})

	t.Run("ストレージエラー", func(t *testing.T) {
		repo := newMockUserRepo()
		repo.findErr = errors.New("timeout")
		svc := NewService(repo, nil, nil)
		_, err := svc.Get(context.Background(), "user_1")
		if !errors.Is(err, repo.findErr) {
			t.Fatalf("expected wrapped error, got %v", err)
		}
	})
}
