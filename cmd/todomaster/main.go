// Command todomaster はtodo管理APIサーバー、期限切れ解除ワーカー、
// マイグレーションを1つのバイナリで提供する。
//
//	todomaster [serve]        APIサーバーを起動する
//	todomaster worker         期限切れサブスクリプションの一括解除ワーカーを起動する
//	todomaster migrate [down] マイグレーションを適用する（downは直近1つを戻す）
//	todomaster healthcheck    /healthを確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/todomaster/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "todomaster: %v\n", err)
		os.Exit(1)
	}
}
