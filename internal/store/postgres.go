package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, avatar)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Avatar)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, avatar, created_at, updated_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Avatar, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, avatar, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Avatar, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ── Memberships ──

// GetMembership returns sql.ErrNoRows when the user does not belong to the
// board; callers treat that as the forbidden case.
func (s *PostgresStore) GetMembership(ctx context.Context, boardID, userID string) (Membership, error) {
	var m Membership
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, board_id, role, created_at
		FROM board_members WHERE board_id = $1 AND user_id = $2
	`, boardID, userID).Scan(&m.UserID, &m.BoardID, &m.Role, &m.CreatedAt)
	if err != nil {
		return Membership{}, err
	}
	return m, nil
}

func (s *PostgresStore) InsertMembership(ctx context.Context, m Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_members (user_id, board_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, board_id) DO NOTHING
	`, m.UserID, m.BoardID, m.Role)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBoardMembers(ctx context.Context, boardID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.user_id, m.board_id, m.role, m.created_at, u.id, u.name, u.email, u.avatar
		FROM board_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.board_id = $1
		ORDER BY m.created_at
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.BoardID, &m.Role, &m.CreatedAt,
			&m.User.ID, &m.User.Name, &m.User.Email, &m.User.Avatar); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ── Boards ──

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, title, description, color)
		VALUES ($1, $2, $3, $4)
	`, board.ID, board.Title, board.Description, board.Color)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, id string) (Board, error) {
	var b Board
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, color, created_at, updated_at
		FROM boards WHERE id = $1
	`, id).Scan(&b.ID, &b.Title, &b.Description, &b.Color, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Board{}, err
	}
	return b, nil
}

func (s *PostgresStore) ListBoards(ctx context.Context, userID, search string, limit, offset int) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.description, b.color, b.created_at, b.updated_at,
			(SELECT COUNT(*) FROM lists l WHERE l.board_id = b.id) AS list_count
		FROM boards b
		JOIN board_members m ON m.board_id = b.id AND m.user_id = $1
		WHERE $2 = '' OR b.title ILIKE '%' || $2 || '%'
		ORDER BY b.updated_at DESC
		LIMIT $3 OFFSET $4
	`, userID, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Color, &b.CreatedAt, &b.UpdatedAt, &b.ListCount); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func (s *PostgresStore) CountBoards(ctx context.Context, userID, search string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM boards b
		JOIN board_members m ON m.board_id = b.id AND m.user_id = $1
		WHERE $2 = '' OR b.title ILIKE '%' || $2 || '%'
	`, userID, search).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count boards: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, board Board) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET title = $2, description = $3, color = $4, updated_at = NOW()
		WHERE id = $1
	`, board.ID, board.Title, board.Description, board.Color)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return nil
}

// DeleteBoard relies on the ON DELETE CASCADE chain to remove the board's
// lists, tasks, memberships, and activities.
func (s *PostgresStore) DeleteBoard(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return nil
}

// ── Lists ──

func (s *PostgresStore) GetList(ctx context.Context, id string) (List, error) {
	var l List
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, title, position, created_at, updated_at
		FROM lists WHERE id = $1
	`, id).Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return List{}, err
	}
	return l, nil
}

func (s *PostgresStore) ListsByBoard(ctx context.Context, boardID string) ([]List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title, position, created_at, updated_at
		FROM lists WHERE board_id = $1
		ORDER BY position, created_at
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("lists by board: %w", err)
	}
	defer rows.Close()

	var lists []List
	for rows.Next() {
		var l List
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *PostgresStore) InsertList(ctx context.Context, list List) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (id, board_id, title, position)
		VALUES ($1, $2, $3, $4)
	`, list.ID, list.BoardID, list.Title, list.Position)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	return nil
}

// AppendList inserts the list at max(position)+1 among its board's lists,
// computing the position inside the INSERT so the append is one statement.
// An empty board yields position 0.
func (s *PostgresStore) AppendList(ctx context.Context, list List) (int, error) {
	var position int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lists (id, board_id, title, position)
		SELECT $1, $2, $3, COALESCE(MAX(position), -1) + 1 FROM lists WHERE board_id = $2
		RETURNING position
	`, list.ID, list.BoardID, list.Title).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("append list: %w", err)
	}
	return position, nil
}

func (s *PostgresStore) UpdateListTitle(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lists SET title = $2, updated_at = NOW() WHERE id = $1
	`, id, title)
	if err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	return nil
}

// DeleteList cascades to the list's tasks.
func (s *PostgresStore) DeleteList(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// ReorderLists applies the submitted (id, position) pairs as one transaction.
// Positions are written as given; the caller is trusted to submit a valid
// permutation.
func (s *PostgresStore) ReorderLists(ctx context.Context, boardID string, items []ListPosition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE lists SET position = $3, updated_at = NOW()
			WHERE id = $1 AND board_id = $2
		`, item.ID, boardID, item.Position); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reorder list %s: %w", item.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}

// ── Tasks ──

func (s *PostgresStore) GetTask(ctx context.Context, id string) (Task, error) {
	var t Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, list_id, title, description, priority, due_date, position, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.ListID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// GetTaskWithList resolves a task together with its owning list, which carries
// the board id every access check needs.
func (s *PostgresStore) GetTaskWithList(ctx context.Context, id string) (Task, List, error) {
	var t Task
	var l List
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.list_id, t.title, t.description, t.priority, t.due_date, t.position, t.created_at, t.updated_at,
			l.id, l.board_id, l.title, l.position, l.created_at, l.updated_at
		FROM tasks t
		JOIN lists l ON l.id = t.list_id
		WHERE t.id = $1
	`, id).Scan(&t.ID, &t.ListID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt,
		&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Task{}, List{}, err
	}
	return t, l, nil
}

// AppendTask inserts the task at max(position)+1 among its list's tasks.
func (s *PostgresStore) AppendTask(ctx context.Context, task Task) (int, error) {
	var position int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, list_id, title, description, priority, due_date, position)
		SELECT $1, $2, $3, $4, $5, $6, COALESCE(MAX(position), -1) + 1 FROM tasks WHERE list_id = $2
		RETURNING position
	`, task.ID, task.ListID, task.Title, task.Description, task.Priority, task.DueDate).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("append task: %w", err)
	}
	return position, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = $2, description = $3, priority = $4, due_date = $5, updated_at = NOW()
		WHERE id = $1
	`, task.ID, task.Title, task.Description, task.Priority, task.DueDate)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// MoveTask shifts every task in the target list at or beyond the requested
// position up by one, then places the task there, as a single transaction.
// Positions in the source list are left as-is; the resulting gap does not
// affect relative order.
func (s *PostgresStore) MoveTask(ctx context.Context, taskID, targetListID string, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET position = position + 1, updated_at = NOW()
		WHERE list_id = $1 AND position >= $2
	`, targetListID, position); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("shift tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET list_id = $2, position = $3, updated_at = NOW()
		WHERE id = $1
	`, taskID, targetListID, position); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("place task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move tx: %w", err)
	}
	return nil
}

// TasksByBoard returns every task on the board ordered by list and position.
// Assignees are not populated; see AssigneesByBoard.
func (s *PostgresStore) TasksByBoard(ctx context.Context, boardID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.list_id, t.title, t.description, t.priority, t.due_date, t.position, t.created_at, t.updated_at
		FROM tasks t
		JOIN lists l ON l.id = t.list_id
		WHERE l.board_id = $1
		ORDER BY t.list_id, t.position, t.created_at
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("tasks by board: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ListID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TasksByIDs hydrates search hits: tasks with their owning list and
// assignees. Ordering is the caller's concern; hits come back keyed by id.
func (s *PostgresStore) TasksByIDs(ctx context.Context, ids []string) (map[string]TaskWithList, error) {
	if len(ids) == 0 {
		return map[string]TaskWithList{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.list_id, t.title, t.description, t.priority, t.due_date, t.position, t.created_at, t.updated_at,
			l.id, l.title
		FROM tasks t
		JOIN lists l ON l.id = t.list_id
		WHERE t.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("tasks by ids: %w", err)
	}
	defer rows.Close()

	tasks := map[string]TaskWithList{}
	for rows.Next() {
		var t TaskWithList
		if err := rows.Scan(&t.ID, &t.ListID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt,
			&t.List.ID, &t.List.Title); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	assignees, err := s.assigneesByTaskIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, t := range tasks {
		t.Assignees = assignees[id]
		tasks[id] = t
	}
	return tasks, nil
}

func (s *PostgresStore) assigneesByTaskIDs(ctx context.Context, ids []string) (map[string][]UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ta.task_id, u.id, u.name, u.email, u.avatar
		FROM task_assignees ta
		JOIN users u ON u.id = ta.user_id
		WHERE ta.task_id = ANY($1)
		ORDER BY ta.created_at
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("assignees by task ids: %w", err)
	}
	defer rows.Close()

	assignees := map[string][]UserSummary{}
	for rows.Next() {
		var taskID string
		var u UserSummary
		if err := rows.Scan(&taskID, &u.ID, &u.Name, &u.Email, &u.Avatar); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		assignees[taskID] = append(assignees[taskID], u)
	}
	return assignees, rows.Err()
}

// ── Assignees ──

func (s *PostgresStore) HasAssignee(ctx context.Context, taskID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM task_assignees WHERE task_id = $1 AND user_id = $2)
	`, taskID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check assignee: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertAssignee(ctx context.Context, taskID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_assignees (user_id, task_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, task_id) DO NOTHING
	`, userID, taskID)
	if err != nil {
		return fmt.Errorf("insert assignee: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAssignee(ctx context.Context, taskID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM task_assignees WHERE task_id = $1 AND user_id = $2
	`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete assignee: %w", err)
	}
	return nil
}

func (s *PostgresStore) AssigneesByTask(ctx context.Context, taskID string) ([]UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.avatar
		FROM task_assignees ta
		JOIN users u ON u.id = ta.user_id
		WHERE ta.task_id = $1
		ORDER BY ta.created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("assignees by task: %w", err)
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AssigneesByBoard returns the assignees of every task on the board, keyed by
// task id, so a board read is two queries rather than one per task.
func (s *PostgresStore) AssigneesByBoard(ctx context.Context, boardID string) (map[string][]UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ta.task_id, u.id, u.name, u.email, u.avatar
		FROM task_assignees ta
		JOIN users u ON u.id = ta.user_id
		JOIN tasks t ON t.id = ta.task_id
		JOIN lists l ON l.id = t.list_id
		WHERE l.board_id = $1
		ORDER BY ta.created_at
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("assignees by board: %w", err)
	}
	defer rows.Close()

	assignees := map[string][]UserSummary{}
	for rows.Next() {
		var taskID string
		var u UserSummary
		if err := rows.Scan(&taskID, &u.ID, &u.Name, &u.Email, &u.Avatar); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		assignees[taskID] = append(assignees[taskID], u)
	}
	return assignees, rows.Err()
}

// ── Activities ──

func (s *PostgresStore) InsertActivity(ctx context.Context, activity Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, board_id, task_id, user_id, action, entity_type, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.BoardID, activity.TaskID, activity.UserID, activity.Action, activity.EntityType, activity.Details)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivities(ctx context.Context, boardID string, limit, offset int) ([]ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.board_id, a.task_id, a.user_id, a.action, a.entity_type, a.details, a.created_at,
			u.id, u.name, u.email, u.avatar,
			t.id, t.title
		FROM activities a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN tasks t ON t.id = a.task_id
		WHERE a.board_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2 OFFSET $3
	`, boardID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var taskID, taskTitle sql.NullString
		if err := rows.Scan(&e.ID, &e.BoardID, &e.Activity.TaskID, &e.UserID, &e.Action, &e.EntityType, &e.Details, &e.CreatedAt,
			&e.User.ID, &e.User.Name, &e.User.Email, &e.User.Avatar,
			&taskID, &taskTitle); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if taskID.Valid {
			e.Task = &TaskRef{ID: taskID.String, Title: taskTitle.String}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CountActivities(ctx context.Context, boardID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE board_id = $1`, boardID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return total, nil
}
