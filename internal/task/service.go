// Package task はタスク管理と共有のドメインロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/taskflow/internal/model"
	"github.com/hitoshi/taskflow/internal/repository"
	"github.com/hitoshi/taskflow/internal/security"
)

// 入力制約
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxSearchLength      = 100

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// UserLookup は共有先ユーザーをメールアドレスで検索するインターフェース。
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// ListParams はタスク一覧取得のクエリパラメータ（未解析の文字列）。
type ListParams struct {
	Page     string
	Limit    string
	Status   string
	Priority string
	Search   string
	Sort     string
	Order    string
}

// CreateInput はタスク作成の入力。Status・Priorityが空の場合はpending・mediumとなる。
type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
}

// UpdateInput はタスク更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

// Service はタスク管理のサービス層。
// 所有者のみが変更でき、所有者と共有先ユーザーが閲覧できる。
type Service struct {
	taskRepo  repository.TaskRepository
	users     UserLookup
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(taskRepo repository.TaskRepository, users UserLookup, sanitizer security.TextSanitizer) *Service {
	return &Service{
		taskRepo:  taskRepo,
		users:     users,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// List はユーザーが所有または共有されているタスクをページングして返す。
func (s *Service) List(ctx context.Context, userID string, params ListParams) (*model.TaskPage, error) {
	q, err := parseListParams(params)
	if err != nil {
		return nil, err
	}

	tasks, total, err := s.taskRepo.ListVisible(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}

	return &model.TaskPage{
		Tasks:       tasks,
		TotalTasks:  total,
		TotalPages:  (total + q.Limit - 1) / q.Limit,
		CurrentPage: q.Page,
	}, nil
}

// Create はユーザーを所有者とするタスクを作成する。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Task, error) {
	fields := make(map[string]string)

	title, ok := s.sanitizer.Clean(input.Title)
	if !ok {
		fields["title"] = security.MarkupNotAllowedMessage
	} else if msg := validateTitle(title); msg != "" {
		fields["title"] = msg
	}
	description, ok := s.sanitizer.Clean(input.Description)
	if !ok {
		fields["description"] = security.MarkupNotAllowedMessage
	} else if msg := validateDescription(description); msg != "" {
		fields["description"] = msg
	}

	status := model.TaskStatusPending
	if input.Status != "" {
		status = model.TaskStatus(input.Status)
		if !status.Valid() {
			fields["status"] = statusMessage
		}
	}
	priority := model.TaskPriorityMedium
	if input.Priority != "" {
		priority = model.TaskPriority(input.Priority)
		if !priority.Valid() {
			fields["priority"] = priorityMessage
		}
	}

	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	now := s.now()
	t := &model.Task{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		SharedWith:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	slog.Info("タスクを作成しました",
		slog.String("task_id", t.ID),
		slog.String("user_id", userID),
	)
	return t, nil
}

// Get はユーザーが閲覧可能なタスクを返す。閲覧できない場合はTASK_NOT_FOUNDとなる。
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.VisibleTo(userID) {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// Update はタスクを部分更新する。所有者以外はTASK_NOT_FOUNDとなる。
// 同時更新は後勝ちとなる。
func (s *Service) Update(ctx context.Context, userID, taskID string, input UpdateInput) (*model.Task, error) {
	t, err := s.findOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if input.Title != nil {
		title, ok := s.sanitizer.Clean(*input.Title)
		if !ok {
			fields["title"] = security.MarkupNotAllowedMessage
		} else if msg := validateTitle(title); msg != "" {
			fields["title"] = msg
		} else {
			t.Title = title
		}
	}
	if input.Description != nil {
		description, ok := s.sanitizer.Clean(*input.Description)
		if !ok {
			fields["description"] = security.MarkupNotAllowedMessage
		} else if msg := validateDescription(description); msg != "" {
			fields["description"] = msg
		} else {
			t.Description = description
		}
	}
	if input.Status != nil {
		status := model.TaskStatus(*input.Status)
		if !status.Valid() {
			fields["status"] = statusMessage
		} else {
			t.Status = status
		}
	}
	if input.Priority != nil {
		priority := model.TaskPriority(*input.Priority)
		if !priority.Valid() {
			fields["priority"] = priorityMessage
		} else {
			t.Priority = priority
		}
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	t.UpdatedAt = s.now()
	if err := s.taskRepo.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTaskNotFoundError(taskID)
		}
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return t, nil
}

// Delete はタスクを削除する。所有者以外はTASK_NOT_FOUNDとなる。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := s.findOwnedTask(ctx, userID, taskID); err != nil {
		return err
	}

	if err := s.taskRepo.DeleteByID(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	slog.Info("タスクを削除しました",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return nil
}

// Share はメールアドレスで指定したユーザーにタスクを共有する。
// 共有済みの場合は何もせず現在のタスクを返す。
func (s *Service) Share(ctx context.Context, userID, taskID, email string) (*model.Task, error) {
	normalized, err := security.NormalizeEmail(email)
	if err != nil {
		return nil, model.NewValidationError(map[string]string{
			"email": "有効なメールアドレスを入力してください。",
		})
	}

	t, err := s.findOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	recipient, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("共有先ユーザーの取得に失敗しました: %w", err)
	}
	if recipient == nil {
		return nil, model.NewUserNotFoundError()
	}
	if recipient.ID == userID {
		return nil, model.NewValidationError(map[string]string{
			"email": "自分自身にタスクを共有することはできません。",
		})
	}

	if containsID(t.SharedWith, recipient.ID) {
		return t, nil
	}
	if err := s.taskRepo.AddShare(ctx, taskID, recipient.ID); err != nil {
		return nil, fmt.Errorf("タスクの共有に失敗しました: %w", err)
	}
	t.SharedWith = append(t.SharedWith, recipient.ID)

	slog.Info("タスクを共有しました",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
		slog.String("recipient_id", recipient.ID),
	)
	return t, nil
}

// Unshare は共有先ユーザーを削除する。共有されていない場合はUSER_NOT_FOUNDとなる。
func (s *Service) Unshare(ctx context.Context, userID, taskID, recipientID string) (*model.Task, error) {
	t, err := s.findOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if !containsID(t.SharedWith, recipientID) {
		return nil, model.NewUserNotFoundError()
	}
	if err := s.taskRepo.RemoveShare(ctx, taskID, recipientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("タスクの共有解除に失敗しました: %w", err)
	}

	remaining := make([]string, 0, len(t.SharedWith))
	for _, id := range t.SharedWith {
		if id != recipientID {
			remaining = append(remaining, id)
		}
	}
	t.SharedWith = remaining
	return t, nil
}

// findTask はタスクを取得する。UUIDとして解釈できないIDは存在しないものとして扱う。
func (s *Service) findTask(ctx context.Context, taskID string) (*model.Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	t, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// findOwnedTask はユーザーが所有するタスクを取得する。
// 共有されているだけのタスクも存在しないものとして扱う。
func (s *Service) findOwnedTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != userID {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

const (
	statusMessage   = "状態はpending、in progress、completedのいずれかを指定してください。"
	priorityMessage = "優先度はlow、medium、highのいずれかを指定してください。"
)

func validateTitle(title string) string {
	if title == "" {
		return "タイトルを入力してください。"
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Sprintf("タイトルは%d文字以内で入力してください。", MaxTitleLength)
	}
	return ""
}

func validateDescription(description string) string {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Sprintf("説明は%d文字以内で入力してください。", MaxDescriptionLength)
	}
	return ""
}

// parseListParams はクエリパラメータを検証してTaskQueryに変換する。
func parseListParams(p ListParams) (model.TaskQuery, error) {
	fields := make(map[string]string)
	q := model.TaskQuery{
		Page:   1,
		Limit:  DefaultPageSize,
		SortBy: model.TaskSortCreatedAt,
	}

	if p.Page != "" {
		page, err := strconv.Atoi(p.Page)
		if err != nil || page < 1 {
			fields["page"] = "pageは1以上の整数を指定してください。"
		} else {
			q.Page = page
		}
	}
	if p.Limit != "" {
		limit, err := strconv.Atoi(p.Limit)
		if err != nil || limit < 1 || limit > MaxPageSize {
			fields["limit"] = fmt.Sprintf("limitは1から%dの整数を指定してください。", MaxPageSize)
		} else {
			q.Limit = limit
		}
	}
	if p.Status != "" {
		q.Status = model.TaskStatus(p.Status)
		if !q.Status.Valid() {
			fields["status"] = statusMessage
		}
	}
	if p.Priority != "" {
		q.Priority = model.TaskPriority(p.Priority)
		if !q.Priority.Valid() {
			fields["priority"] = priorityMessage
		}
	}

	q.Search = strings.TrimSpace(p.Search)
	if utf8.RuneCountInString(q.Search) > MaxSearchLength {
		fields["search"] = fmt.Sprintf("検索語は%d文字以内で入力してください。", MaxSearchLength)
	}

	if p.Sort != "" {
		switch p.Sort {
		case model.TaskSortCreatedAt, model.TaskSortUpdatedAt, model.TaskSortTitle,
			model.TaskSortStatus, model.TaskSortPriority:
			q.SortBy = p.Sort
		default:
			fields["sort"] = "sortはcreated_at、updated_at、title、status、priorityのいずれかを指定してください。"
		}
	}

	switch strings.ToLower(p.Order) {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		fields["order"] = "orderはascまたはdescを指定してください。"
	}

	if len(fields) > 0 {
		return model.TaskQuery{}, model.NewValidationError(fields)
	}
	return q, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
