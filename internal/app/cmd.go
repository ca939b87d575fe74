package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れサブスクリプションの一括解除ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// MigrateDirection はマイグレーションの適用方向を表す。
type MigrateDirection string

const (
	// MigrateUp は未適用のマイグレーションをすべて適用する。
	MigrateUp MigrateDirection = "up"
	// MigrateDown は直近のマイグレーションを1つ戻す。
	MigrateDown MigrateDirection = "down"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// ParseMigrateDirection はmigrateサブコマンドの第2引数から適用方向を解析する。
// "down" 以外はすべてMigrateUpとして扱う。
func ParseMigrateDirection(args []string) MigrateDirection {
	if len(args) >= 2 && args[1] == "down" {
		return MigrateDown
	}
	return MigrateUp
}
