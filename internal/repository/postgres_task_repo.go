package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/taskflow/internal/model"
)

const taskColumns = `t.id, t.owner_id, t.title, t.description, t.status, t.priority, t.created_at, t.updated_at`

// taskSortColumns はソート指定とORDER BY句の対応表。
// 呼び出し側の入力をSQLへ直接埋め込まないため、ここに無い値は使用しない。
var taskSortColumns = map[string]string{
	model.TaskSortCreatedAt: "t.created_at",
	model.TaskSortUpdatedAt: "t.updated_at",
	model.TaskSortTitle:     "lower(t.title)",
	model.TaskSortStatus:    "CASE t.status WHEN 'pending' THEN 1 WHEN 'in progress' THEN 2 ELSE 3 END",
	model.TaskSortPriority:  "CASE t.priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
}

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// FindByID は指定IDのタスクを共有先ユーザーIDとともに取得する。
// 見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`,
		id,
	).Scan(taskScanDest(task)...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}

	if err := r.loadShares(ctx, []*model.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// ListVisible はユーザーが所有または共有されているタスクを条件に従って取得する。
func (r *PostgresTaskRepo) ListVisible(ctx context.Context, userID string, q model.TaskQuery) ([]*model.Task, int, error) {
	where, args := buildTaskFilter(userID, q)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tasks t WHERE `+where,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	orderBy := taskSortColumns[q.SortBy]
	if orderBy == "" {
		orderBy = taskSortColumns[model.TaskSortCreatedAt]
	}
	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(
		`SELECT %s FROM tasks t WHERE %s ORDER BY %s %s, t.id %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, orderBy, direction, direction, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(taskScanDest(task)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	if err := r.loadShares(ctx, tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, title, description, status, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		task.ID, task.OwnerID, task.Title, task.Description,
		string(task.Status), string(task.Priority), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はタスクのタイトル・説明・状態・優先度を上書きする。
// バージョン検査は行わず、後勝ちとなる。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $2, description = $3, status = $4, priority = $5, updated_at = $6
		 WHERE id = $1`,
		task.ID, task.Title, task.Description, string(task.Status), string(task.Priority), task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result)
}

// DeleteByID は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result)
}

// AddShare はタスクの共有先を追加する。既に共有済みの場合は何もしない。
func (r *PostgresTaskRepo) AddShare(ctx context.Context, taskID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_shares (task_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (task_id, user_id) DO NOTHING`,
		taskID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add task share: %w", err)
	}
	return nil
}

// RemoveShare はタスクの共有先を削除する。
func (r *PostgresTaskRepo) RemoveShare(ctx context.Context, taskID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM task_shares WHERE task_id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove task share: %w", err)
	}
	return requireAffected(result)
}

// loadShares は各タスクの共有先ユーザーIDを1クエリでまとめて読み込む。
func (r *PostgresTaskRepo) loadShares(ctx context.Context, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]string, len(tasks))
	byID := make(map[string]*model.Task, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		byID[t.ID] = t
		t.SharedWith = []string{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, user_id FROM task_shares
		 WHERE task_id = ANY($1)
		 ORDER BY created_at, user_id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load task shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, userID string
		if err := rows.Scan(&taskID, &userID); err != nil {
			return fmt.Errorf("failed to scan task share: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.SharedWith = append(t.SharedWith, userID)
		}
	}
	return rows.Err()
}

// buildTaskFilter はユーザーから見えるタスクに絞り込むWHERE句と引数を組み立てる。
func buildTaskFilter(userID string, q model.TaskQuery) (string, []any) {
	args := []any{userID}
	conds := []string{
		`(t.owner_id = $1 OR EXISTS (SELECT 1 FROM task_shares s WHERE s.task_id = t.id AND s.user_id = $1))`,
	}

	if q.Status != "" {
		args = append(args, string(q.Status))
		conds = append(conds, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if q.Priority != "" {
		args = append(args, string(q.Priority))
		conds = append(conds, fmt.Sprintf("t.priority = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(t.title ILIKE $%d ESCAPE '\' OR t.description ILIKE $%d ESCAPE '\')`, n, n))
	}

	return strings.Join(conds, " AND "), args
}

// escapeLike はLIKEパターンのワイルドカード文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func taskScanDest(t *model.Task) []any {
	return []any{
		&t.ID, &t.OwnerID, &t.Title, &t.Description,
		(*string)(&t.Status), (*string)(&t.Priority), &t.CreatedAt, &t.UpdatedAt,
	}
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
