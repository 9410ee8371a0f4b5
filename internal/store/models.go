package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public slice of a user embedded in board, task, and
// activity payloads.
type UserSummary struct {
	ID     string
	Name   string
	Email  string
	Avatar string
}

type Board struct {
	ID          string
	Title       string
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// ListCount is populated by the board listing query only.
	ListCount int
}

type Membership struct {
	UserID    string
	BoardID   string
	Role      string
	CreatedAt time.Time
}

type Member struct {
	Membership
	User UserSummary
}

type List struct {
	ID        string
	BoardID   string
	Title     string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListPosition is one element of a bulk list reorder.
type ListPosition struct {
	ID       string
	Position int
}

type Task struct {
	ID          string
	ListID      string
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskWithAssignees struct {
	Task
	Assignees []UserSummary
}

type TaskRef struct {
	ID    string
	Title string
}

type ListRef struct {
	ID    string
	Title string
}

// TaskWithList is a search hit: the task plus the list it lives in.
type TaskWithList struct {
	Task
	List      ListRef
	Assignees []UserSummary
}

type Activity struct {
	ID         string
	BoardID    string
	TaskID     *string
	UserID     string
	Action     string
	EntityType string
	Details    string
	CreatedAt  time.Time
}

type ActivityEntry struct {
	Activity
	User UserSummary
	Task *TaskRef
}
