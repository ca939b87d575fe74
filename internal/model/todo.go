package model

import "time"

// TodoTitleMaxLength はtodoタイトルの最大文字数（rune単位）。
const TodoTitleMaxLength = 255

// Todo はユーザーが所有するタスクを表す。
type Todo struct {
	ID        string
	UserID    string
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TodoPage はtodo一覧の1ページ分の結果を表す。
// TotalPagesは検索条件に一致する件数をページサイズで割った切り上げ値。
type TodoPage struct {
	Todos       []*Todo
	TotalPages  int
	CurrentPage int
}
