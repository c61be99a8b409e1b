package model

import "time"

// TaskStatus はタスクの進捗状態を表す。
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid は状態が定義済みの値かどうかを返す。
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority はタスクの優先度を表す。
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid は優先度が定義済みの値かどうかを返す。
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task はユーザーが所有するタスクを表す。
// SharedWithには閲覧を許可された他ユーザーのIDが入る。
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	SharedWith  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VisibleTo は指定ユーザーがタスクを閲覧できるかを返す。
func (t *Task) VisibleTo(userID string) bool {
	if t.OwnerID == userID {
		return true
	}
	for _, id := range t.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// タスク一覧のソート対象
const (
	TaskSortCreatedAt = "created_at"
	TaskSortUpdatedAt = "updated_at"
	TaskSortTitle     = "title"
	TaskSortStatus    = "status"
	TaskSortPriority  = "priority"
)

// TaskQuery はタスク一覧取得の条件を表す。
// Status・Priority・Searchが空の場合は絞り込みを行わない。
type TaskQuery struct {
	Page      int
	Limit     int
	Status    TaskStatus
	Priority  TaskPriority
	Search    string
	SortBy    string
	Ascending bool
}

// Offset はページ番号と件数から取得開始位置を計算する。
func (q TaskQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// TaskPage はページングされたタスク一覧を表す。
type TaskPage struct {
	Tasks       []*Task
	TotalTasks  int
	TotalPages  int
	CurrentPage int
}
