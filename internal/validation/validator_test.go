package validation

import (
	"strings"
	"testing"

	"github.com/hitoshi/todomaster/internal/model"
)

type testAddress struct {
	Email string `json:"emailAddress" validate:"required,email"`
}

type testRequest struct {
	Title     string        `json:"title" validate:"required,max=5"`
	Kind      string        `json:"kind" validate:"omitempty,oneof=a b"`
	Addresses []testAddress `json:"addresses" validate:"dive"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       testRequest
		wantErr   bool
		wantInMsg []string
	}{
		{name: "正常", req: testRequest{Title: "abc"}},
		{name: "マルチバイトは文字数で数える", req: testRequest{Title: "あいうえお"}},
		{name: "必須", req: testRequest{}, wantErr: true, wantInMsg: []string{"title: 必須です"}},
		{name: "長すぎる", req: testRequest{Title: "abcdef"}, wantErr: true, wantInMsg: []string{"title: 5文字以内"}},
		{name: "oneof", req: testRequest{Title: "a", Kind: "c"}, wantErr: true, wantInMsg: []string{"kind: 次のいずれか"}},
		{
			name:      "ネストしたフィールド",
			req:       testRequest{Title: "a", Addresses: []testAddress{{Email: "not-an-email"}}},
			wantErr:   true,
			wantInMsg: []string{"addresses[0].emailAddress: メールアドレスの形式"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !model.IsCode(err, model.ErrCodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
			for _, want := range tt.wantInMsg {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("message %q does not contain %q", err.Error(), want)
				}
			}
		})
	}
}

func TestValidator_DecodeJSON(t *testing.T) {
	v := New()

	t.Run("不正なJSON", func(t *testing.T) {
		var req testRequest
		err := v.DecodeJSON(strings.NewReader(`{"title":`), &req)
		if !model.IsCode(err, model.ErrCodeInvalidRequest) {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("型の不一致", func(t *testing.T) {
		var req testRequest
		err := v.DecodeJSON(strings.NewReader(`{"title":123}`), &req)
		if !model.IsCode(err, model.ErrCodeInvalidRequest) {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("デコード後に検証する", func(t *testing.T) {
		var req testRequest
		err := v.DecodeJSON(strings.NewReader(`{"title":""}`), &req)
		if !model.IsCode(err, model.ErrCodeValidation) {
			t.Fatalf("expected VALIDATION_ERROR, got %v", err)
		}
	})

	t.Run("正常", func(t *testing.T) {
		var req testRequest
		if err := v.DecodeJSON(strings.NewReader(`{"title":"abc"}`), &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Title != "abc" {
			t.Errorf("Title = %q, want %q", req.Title, "abc")
		}
	})
}

func TestMessage_SortedByField(t *testing.T) {
	got := Message(map[string]string{"b": "2", "a": "1"})
	if got != "a: 1; b: 2" {
		t.Errorf("Message = %q, want %q", got, "a: 1; b: 2")
	}
}
