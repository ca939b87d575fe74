// Package validation はリクエストDTOの入力検証を提供する。
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/todomaster/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// Validator はvalidator/v10をラップし、検証エラーをAPIErrorに変換する。
type Validator struct {
	validate *validator.Validate
}

// New はJSONタグ名でエラーを報告するValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct は構造体のvalidateタグを検証する。
// 検証エラーはVALIDATION_ERRORのAPIErrorとして返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("入力検証に失敗しました: %w", err)
	}
	return model.NewValidationError(Message(ToDetails(verrs)))
}

// DecodeJSON はリクエストボディをdstにデコードしてから検証する。
// JSONとして解釈できない場合はINVALID_REQUESTを返す。
func (v *Validator) DecodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}
	return v.Struct(dst)
}

// ToDetails は検証エラーをフィールド名とメッセージの対応に変換する。
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fieldPath(fe)] = formatFieldError(fe)
		}
		return out
	}

	return map[string]string{"payload": "不正なリクエストです"}
}

// Message は詳細をフィールド名順に連結した1行のメッセージにする。
func Message(details map[string]string) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+details[k])
	}
	return strings.Join(parts, "; ")
}

// fieldPath はトップレベル構造体名を除いたフィールドのパスを返す。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func formatFieldError(fe validator.FieldError) string {
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return "必須です"
	case "email":
		return "メールアドレスの形式が正しくありません"
	case "max":
		if fe.Kind() == reflect.String {
			return param + "文字以内で入力してください"
		}
		return param + "以下である必要があります"
	case "min":
		if fe.Kind() == reflect.String {
			return param + "文字以上で入力してください"
		}
		return param + "以上である必要があります"
	case "oneof":
		return "次のいずれかである必要があります: " + strings.Join(strings.Fields(param), ", ")
	default:
		if param != "" {
			return fmt.Sprintf("%s=%s の検証に失敗しました", fe.Tag(), param)
		}
		return fe.Tag() + " の検証に失敗しました"
	}
}
