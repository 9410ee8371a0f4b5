package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/access"
	"taskboard/api/internal/auth"
	"taskboard/api/internal/config"
	"taskboard/api/internal/events"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// Session is the authenticated caller, decoded from the bearer token.
type Session struct {
	UserID   string
	UserName string
}

var defaultListTitles = []string{"To Do", "In Progress", "Done"}

const defaultBoardColor = "#6366f1"

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)

	GetMembership(ctx context.Context, boardID, userID string) (store.Membership, error)
	InsertMembership(context.Context, store.Membership) error
	ListBoardMembers(context.Context, string) ([]store.Member, error)

	InsertBoard(context.Context, store.Board) error
	GetBoard(context.Context, string) (store.Board, error)
	ListBoards(ctx context.Context, userID, search string, limit, offset int) ([]store.Board, error)
	CountBoards(ctx context.Context, userID, search string) (int, error)
	UpdateBoard(context.Context, store.Board) error
	DeleteBoard(context.Context, string) error

	GetList(context.Context, string) (store.List, error)
	ListsByBoard(context.Context, string) ([]store.List, error)
	InsertList(context.Context, store.List) error
	AppendList(context.Context, store.List) (int, error)
	UpdateListTitle(ctx context.Context, id, title string) error
	DeleteList(context.Context, string) error
	ReorderLists(context.Context, string, []store.ListPosition) error

	GetTask(context.Context, string) (store.Task, error)
	GetTaskWithList(context.Context, string) (store.Task, store.List, error)
	AppendTask(context.Context, store.Task) (int, error)
	UpdateTask(context.Context, store.Task) error
	DeleteTask(context.Context, string) error
	MoveTask(ctx context.Context, taskID, targetListID string, position int) error
	TasksByBoard(context.Context, string) ([]store.Task, error)
	TasksByIDs(context.Context, []string) (map[string]store.TaskWithList, error)

	HasAssignee(ctx context.Context, taskID, userID string) (bool, error)
	InsertAssignee(ctx context.Context, taskID, userID string) error
	DeleteAssignee(ctx context.Context, taskID, userID string) error
	AssigneesByTask(context.Context, string) ([]store.UserSummary, error)
	AssigneesByBoard(context.Context, string) (map[string][]store.UserSummary, error)

	InsertActivity(context.Context, store.Activity) error
	ListActivities(ctx context.Context, boardID string, limit, offset int) ([]store.ActivityEntry, error)
	CountActivities(ctx context.Context, boardID string) (int, error)

	Ping(ctx context.Context) error
}

type taskSearch interface {
	Search(ctx context.Context, q search.Query) ([]string, int, error)
	IndexTask(record search.TaskRecord)
	DeleteTask(id string)
	DeleteByList(listID string)
	DeleteByBoard(boardID string)
}

// broadcaster publishes board events; delivery is fire-and-forget.
type broadcaster interface {
	Publish(ctx context.Context, name, boardID string, data any)
}

type Service struct {
	cfg    config.Config
	store  dataStore
	search taskSearch
	events broadcaster
}

func NewService(cfg config.Config, st dataStore, ts taskSearch, ev broadcaster) *Service {
	return &Service{cfg: cfg, store: st, search: ts, events: ev}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Auth ──

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.UserID, UserName: claims.Name}, nil
}

func (s *Service) SignUp(ctx context.Context, name, email, password string) (map[string]any, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, errEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := store.User{
		ID:           util.NewID("usr"),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": userPayload(summary(user)), "token": token}, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (map[string]any, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errBadCredentials
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": userPayload(summary(user)), "token": token}, nil
}

func (s *Service) Me(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": userPayload(summary(user))}, nil
}

func (s *Service) issueToken(user store.User) (string, error) {
	return auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		UserID: user.ID,
		Name:   user.Name,
		Exp:    time.Now().Add(s.cfg.TokenTTL).Unix(),
	})
}

// requireMember is the access check on every board-scoped operation. A missing
// membership row reads as forbidden, not as not-found, so board ids do not
// leak existence.
func (s *Service) requireMember(ctx context.Context, boardID, userID string) (store.Membership, error) {
	membership, err := s.store.GetMembership(ctx, boardID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Membership{}, errNotMember
	}
	if err != nil {
		return store.Membership{}, fmt.Errorf("membership lookup: %w", err)
	}
	return membership, nil
}

// ── Boards ──

type BoardInput struct {
	Title       string
	Description string
	Color       string
}

func (s *Service) CreateBoard(ctx context.Context, session Session, in BoardInput) (map[string]any, error) {
	if in.Color == "" {
		in.Color = defaultBoardColor
	}
	board := store.Board{
		ID:          util.NewID("brd"),
		Title:       in.Title,
		Description: in.Description,
		Color:       in.Color,
	}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return nil, err
	}
	if err := s.store.InsertMembership(ctx, store.Membership{
		UserID:  session.UserID,
		BoardID: board.ID,
		Role:    string(access.RoleOwner),
	}); err != nil {
		return nil, err
	}
	for i, title := range defaultListTitles {
		if err := s.store.InsertList(ctx, store.List{
			ID:       util.NewID("lst"),
			BoardID:  board.ID,
			Title:    title,
			Position: i,
		}); err != nil {
			return nil, err
		}
	}
	s.recordActivity(ctx, session, board.ID, nil, "created", "board", fmt.Sprintf("created board %q", board.Title))

	detail, err := s.boardDetail(ctx, board.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"board": detail}, nil
}

func (s *Service) ListBoards(ctx context.Context, session Session, query string, page, limit int) (map[string]any, error) {
	page, limit = clampPage(page, limit, 12)
	boards, err := s.store.ListBoards(ctx, session.UserID, query, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountBoards(ctx, session.UserID, query)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(boards))
	for _, b := range boards {
		payload := boardPayload(b)
		payload["listCount"] = b.ListCount
		items = append(items, payload)
	}
	return map[string]any{"boards": items, "pagination": pagination(page, limit, total)}, nil
}

func (s *Service) GetBoard(ctx context.Context, session Session, boardID string) (map[string]any, error) {
	if _, err := s.requireMember(ctx, boardID, session.UserID); err != nil {
		return nil, err
	}
	detail, err := s.boardDetail(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"board": detail}, nil
}

type BoardPatch struct {
	Title       *string
	Description *string
	Color       *string
}

func (s *Service) UpdateBoard(ctx context.Context, session Session, boardID string, patch BoardPatch) (map[string]any, error) {
	membership, err := s.requireMember(ctx, boardID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !access.Can(access.Normalize(membership.Role), access.ActionManage) {
		return nil, errOwnerUpdate
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		board.Title = *patch.Title
	}
	if patch.Description != nil {
		board.Description = *patch.Description
	}
	if patch.Color != nil {
		board.Color = *patch.Color
	}
	if err := s.store.UpdateBoard(ctx, board); err != nil {
		return nil, err
	}
	s.recordActivity(ctx, session, board.ID, nil, "updated", "board", fmt.Sprintf("updated board %q", board.Title))
	return map[string]any{"board": boardPayload(board)}, nil
}

func (s *Service) DeleteBoard(ctx context.Context, session Session, boardID string) error {
	membership, err := s.requireMember(ctx, boardID, session.UserID)
	if err != nil {
		return err
	}
	if !access.Can(access.Normalize(membership.Role), access.ActionManage) {
		return errOwnerDelete
	}
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	s.search.DeleteByBoard(boardID)
	return nil
}

func (s *Service) AddMember(ctx context.Context, session Session, boardID, email string) (map[string]any, string, error) {
	if _, err := s.requireMember(ctx, boardID, session.UserID); err != nil {
		return nil, "", err
	}
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domainError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return nil, "", err
	}
	if _, err := s.store.GetMembership(ctx, boardID, user.ID); err == nil {
		return nil, "User is already a member", nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}
	membership := store.Membership{
		UserID:  user.ID,
		BoardID: boardID,
		Role:    string(access.RoleMember),
	}
	if err := s.store.InsertMembership(ctx, membership); err != nil {
		return nil, "", err
	}
	s.recordActivity(ctx, session, boardID, nil, "added", "board", fmt.Sprintf("added %s to the board", user.Name))
	return map[string]any{"member": map[string]any{
		"role": membership.Role,
		"user": userPayload(summary(user)),
	}}, "", nil
}

// ── Lists ──

func (s *Service) CreateList(ctx context.Context, session Session, boardID, title string) (map[string]any, error) {
	if _, err := s.requireMember(ctx, boardID, session.UserID); err != nil {
		return nil, err
	}
	list := store.List{
		ID:      util.NewID("lst"),
		BoardID: boardID,
		Title:   title,
	}
	position, err := s.store.AppendList(ctx, list)
	if err != nil {
		return nil, err
	}
	list.Position = position
	s.recordActivity(ctx, session, boardID, nil, "created", "list", fmt.Sprintf("created list %q", list.Title))
	s.broadcast(ctx, events.ListCreated, boardID, map[string]any{
		"list":    listPayload(list),
		"boardId": boardID,
	})
	return map[string]any{"list": listPayload(list)}, nil
}

func (s *Service) UpdateList(ctx context.Context, session Session, listID, title string) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateListTitle(ctx, listID, title); err != nil {
		return nil, err
	}
	list.Title = title
	s.recordActivity(ctx, session, list.BoardID, nil, "updated", "list", fmt.Sprintf("updated list %q", title))
	// Title edits are not broadcast; clients pick them up on the next fetch.
	return map[string]any{"list": listPayload(list)}, nil
}

func (s *Service) DeleteList(ctx context.Context, session Session, listID string) error {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteList(ctx, listID); err != nil {
		return err
	}
	s.search.DeleteByList(listID)
	s.recordActivity(ctx, session, list.BoardID, nil, "deleted", "list", fmt.Sprintf("deleted list %q", list.Title))
	s.broadcast(ctx, events.ListDeleted, list.BoardID, map[string]any{
		"listId":  listID,
		"boardId": list.BoardID,
	})
	return nil
}

func (s *Service) ReorderLists(ctx context.Context, session Session, boardID string, items []store.ListPosition) (map[string]any, error) {
	if _, err := s.requireMember(ctx, boardID, session.UserID); err != nil {
		return nil, err
	}
	if err := s.store.ReorderLists(ctx, boardID, items); err != nil {
		return nil, err
	}
	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(lists))
	for _, l := range lists {
		payloads = append(payloads, listPayload(l))
	}
	// Reorder is not broadcast; the dragging client already holds the order.
	return map[string]any{"lists": payloads}, nil
}

// ── Tasks ──

type TaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

func (s *Service) CreateTask(ctx context.Context, session Session, listID string, in TaskInput) (map[string]any, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	task := store.Task{
		ID:          util.NewID("tsk"),
		ListID:      listID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	position, err := s.store.AppendTask(ctx, task)
	if err != nil {
		return nil, err
	}
	task.Position = position
	s.indexTask(task, list.BoardID)
	s.recordActivity(ctx, session, list.BoardID, &task.ID, "created", "task", fmt.Sprintf("created task %q", task.Title))
	payload := taskPayload(task, nil)
	s.broadcast(ctx, events.TaskCreated, list.BoardID, map[string]any{
		"task":    payload,
		"boardId": list.BoardID,
	})
	return map[string]any{"task": payload}, nil
}

type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
}

func (s *Service) UpdateTask(ctx context.Context, session Session, taskID string, patch TaskPatch) (map[string]any, error) {
	task, list, err := s.store.GetTaskWithList(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return nil, err
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	if patch.ClearDue {
		task.DueDate = nil
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	s.indexTask(task, list.BoardID)
	s.recordActivity(ctx, session, list.BoardID, &task.ID, "updated", "task", fmt.Sprintf("updated task %q", task.Title))
	assignees, err := s.store.AssigneesByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	payload := taskPayload(task, assignees)
	s.broadcast(ctx, events.TaskUpdated, list.BoardID, map[string]any{
		"task":    payload,
		"boardId": list.BoardID,
	})
	return map[string]any{"task": payload}, nil
}

func (s *Service) DeleteTask(ctx context.Context, session Session, taskID string) error {
	task, list, err := s.store.GetTaskWithList(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.search.DeleteTask(taskID)
	s.recordActivity(ctx, session, list.BoardID, nil, "deleted", "task", fmt.Sprintf("deleted task %q", task.Title))
	s.broadcast(ctx, events.TaskDeleted, list.BoardID, map[string]any{
		"taskId":  taskID,
		"listId":  task.ListID,
		"boardId": list.BoardID,
	})
	return nil
}

func (s *Service) MoveTask(ctx context.Context, session Session, taskID, targetListID string, position int) (map[string]any, error) {
	task, source, err := s.store.GetTaskWithList(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, source.BoardID, session.UserID); err != nil {
		return nil, err
	}
	target := source
	if targetListID != source.ID {
		target, err = s.store.GetList(ctx, targetListID)
		if err != nil {
			return nil, err
		}
		if target.BoardID != source.BoardID {
			return nil, domainError(http.StatusBadRequest, "Target list is not on this board")
		}
	}
	if err := s.store.MoveTask(ctx, taskID, target.ID, position); err != nil {
		return nil, err
	}
	task.ListID = target.ID
	task.Position = position
	s.recordActivity(ctx, session, source.BoardID, &task.ID, "moved", "task",
		fmt.Sprintf("moved task %q from %q to %q", task.Title, source.Title, target.Title))
	assignees, err := s.store.AssigneesByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	payload := taskPayload(task, assignees)
	s.broadcast(ctx, events.TaskMoved, source.BoardID, map[string]any{
		"task":    payload,
		"boardId": source.BoardID,
	})
	return map[string]any{"task": payload}, nil
}

func (s *Service) AssignTask(ctx context.Context, session Session, taskID, userID string) (map[string]any, string, error) {
	task, list, err := s.store.GetTaskWithList(ctx, taskID)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return nil, "", err
	}
	target, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domainError(http.StatusNotFound, "User not found")
	} else if err != nil {
		return nil, "", err
	}
	if _, err := s.store.GetMembership(ctx, list.BoardID, userID); errors.Is(err, sql.ErrNoRows) {
		return nil, "", domainError(http.StatusForbidden, "User is not a member of this board")
	} else if err != nil {
		return nil, "", err
	}
	already, err := s.store.HasAssignee(ctx, taskID, userID)
	if err != nil {
		return nil, "", err
	}
	if already {
		payload, err := s.taskWithAssignees(ctx, task)
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"task": payload}, "User already assigned", nil
	}
	if err := s.store.InsertAssignee(ctx, taskID, userID); err != nil {
		return nil, "", err
	}
	s.recordActivity(ctx, session, list.BoardID, &task.ID, "assigned", "task",
		fmt.Sprintf("assigned %s to task %q", target.Name, task.Title))
	payload, err := s.taskWithAssignees(ctx, task)
	if err != nil {
		return nil, "", err
	}
	s.broadcast(ctx, events.TaskUpdated, list.BoardID, map[string]any{
		"task":    payload,
		"boardId": list.BoardID,
	})
	return map[string]any{"task": payload}, "", nil
}

func (s *Service) UnassignTask(ctx context.Context, session Session, taskID, userID string) (map[string]any, error) {
	task, list, err := s.store.GetTaskWithList(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, list.BoardID, session.UserID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteAssignee(ctx, taskID, userID); err != nil {
		return nil, err
	}
	s.recordActivity(ctx, session, list.BoardID, &task.ID, "unassigned", "task",
		fmt.Sprintf("unassigned %s from task %q", s.userName(ctx, userID), task.Title))
	payload, err := s.taskWithAssignees(ctx, task)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, events.TaskUpdated, list.BoardID, map[string]any{
		"task":    payload,
		"boardId": list.BoardID,
	})
	return map[string]any{"task": payload}, nil
}

// ── Search & activity feed ──

func (s *Service) SearchTasks(ctx context.Context, session Session, boardID, text string, page, limit int) (map[string]any, error) {
	if _, err := s.requireMember(ctx, boardID, session.UserID); err != nil {
		return nil, err
	}
	page, limit = clampPage(page, limit, 20)
	ids, total, err := s.search.Search(ctx, search.Query{
		BoardID: boardID,
		Text:    text,
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	hits, err := s.store.TasksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		hit, ok := hits[id]
		if !ok {
			// Index lag: the row is already gone.
			continue
		}
		payload := taskPayload(hit.Task, hit.Assignees)
		payload["list"] = map[string]any{"id": hit.List.ID, "title": hit.List.Title}
		items = append(items, payload)
	}
	return map[string]any{"tasks": items, "pagination": pagination(page, limit, total)}, nil
}

func (s *Service) Activities(ctx context.Context, session Session, boardID string, page, limit int) (map[string]any, error) {
	if _, err := s.requireMember(ctx, boardID, session.UserID); err != nil {
		return nil, err
	}
	page, limit = clampPage(page, limit, 20)
	entries, err := s.store.ListActivities(ctx, boardID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountActivities(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, activityPayload(entry))
	}
	return map[string]any{"activities": items, "pagination": pagination(page, limit, total)}, nil
}

// ── Internals ──

// recordActivity appends the audit entry before the response goes out. A
// failed write is logged and swallowed; it never rolls back the mutation.
func (s *Service) recordActivity(ctx context.Context, session Session, boardID string, taskID *string, action, entityType, details string) {
	err := s.store.InsertActivity(ctx, store.Activity{
		ID:         util.NewID("act"),
		BoardID:    boardID,
		TaskID:     taskID,
		UserID:     session.UserID,
		Action:     action,
		EntityType: entityType,
		Details:    details,
	})
	if err != nil {
		log.Printf("activity: record %s on board %s: %v", action, boardID, err)
	}
}

func (s *Service) broadcast(ctx context.Context, name, boardID string, data map[string]any) {
	if s.events != nil {
		s.events.Publish(ctx, name, boardID, data)
	}
}

func (s *Service) indexTask(task store.Task, boardID string) {
	s.search.IndexTask(search.TaskRecord{
		ID:          task.ID,
		BoardID:     boardID,
		ListID:      task.ListID,
		Title:       task.Title,
		Description: task.Description,
	})
}

func (s *Service) userName(ctx context.Context, userID string) string {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "a user"
	}
	return user.Name
}

func (s *Service) taskWithAssignees(ctx context.Context, task store.Task) (map[string]any, error) {
	assignees, err := s.store.AssigneesByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return taskPayload(task, assignees), nil
}

// boardDetail builds the full board shape: members, lists in position order,
// each list's tasks in position order with assignees.
func (s *Service) boardDetail(ctx context.Context, boardID string) (map[string]any, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListBoardMembers(ctx, boardID)
	if err != nil {
		return nil, err
	}
	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.TasksByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	assignees, err := s.store.AssigneesByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	tasksByList := make(map[string][]map[string]any)
	for _, task := range tasks {
		tasksByList[task.ListID] = append(tasksByList[task.ListID], taskPayload(task, assignees[task.ID]))
	}
	listPayloads := make([]map[string]any, 0, len(lists))
	for _, list := range lists {
		payload := listPayload(list)
		taskItems := tasksByList[list.ID]
		if taskItems == nil {
			taskItems = []map[string]any{}
		}
		payload["tasks"] = taskItems
		listPayloads = append(listPayloads, payload)
	}
	memberPayloads := make([]map[string]any, 0, len(members))
	for _, member := range members {
		memberPayloads = append(memberPayloads, map[string]any{
			"role": member.Role,
			"user": userPayload(member.User),
		})
	}

	detail := boardPayload(board)
	detail["members"] = memberPayloads
	detail["lists"] = listPayloads
	return detail, nil
}

// ── Payload shaping ──

func summary(u store.User) store.UserSummary {
	return store.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

func userPayload(u store.UserSummary) map[string]any {
	return map[string]any{
		"id":     u.ID,
		"name":   u.Name,
		"email":  u.Email,
		"avatar": u.Avatar,
	}
}

func boardPayload(b store.Board) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"title":       b.Title,
		"description": b.Description,
		"color":       b.Color,
		"createdAt":   b.CreatedAt,
		"updatedAt":   b.UpdatedAt,
	}
}

func listPayload(l store.List) map[string]any {
	return map[string]any{
		"id":        l.ID,
		"boardId":   l.BoardID,
		"title":     l.Title,
		"position":  l.Position,
		"createdAt": l.CreatedAt,
		"updatedAt": l.UpdatedAt,
	}
}

func taskPayload(t store.Task, assignees []store.UserSummary) map[string]any {
	users := make([]map[string]any, 0, len(assignees))
	for _, u := range assignees {
		users = append(users, userPayload(u))
	}
	var due any
	if t.DueDate != nil {
		due = *t.DueDate
	}
	return map[string]any{
		"id":          t.ID,
		"listId":      t.ListID,
		"title":       t.Title,
		"description": t.Description,
		"priority":    t.Priority,
		"dueDate":     due,
		"position":    t.Position,
		"assignees":   users,
		"createdAt":   t.CreatedAt,
		"updatedAt":   t.UpdatedAt,
	}
}

func activityPayload(entry store.ActivityEntry) map[string]any {
	payload := map[string]any{
		"id":         entry.ID,
		"boardId":    entry.BoardID,
		"action":     entry.Action,
		"entityType": entry.EntityType,
		"details":    entry.Details,
		"createdAt":  entry.CreatedAt,
		"user":       userPayload(entry.User),
	}
	if entry.Task != nil {
		payload["task"] = map[string]any{"id": entry.Task.ID, "title": entry.Task.Title}
	} else {
		payload["task"] = nil
	}
	return payload
}

func pagination(page, limit, total int) map[string]any {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return map[string]any{
		"page":       page,
		"limit":      limit,
		"total":      total,
		"totalPages": totalPages,
	}
}

func clampPage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
