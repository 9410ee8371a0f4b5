package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/events"
	"taskboard/api/internal/store"
)

func testToken(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		UserID: userID,
		Name:   name,
		Exp:    time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func newTestServer(fs *fakeStore) *HTTPServer {
	svc := NewService(testConfig(), fs, &fakeSearch{}, &fakeEvents{})
	return NewHTTPServer(svc, events.NewBroadcaster(nil, "taskboard:events:test"), "*")
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
	return envelope
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := decodeEnvelope(t, recorder)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodGet, "/api/boards", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := decodeEnvelope(t, recorder)
	if body["status"] != "error" || body["message"] != "Unauthorized" {
		t.Fatalf("body = %v", body)
	}
}

func TestForbiddenBoardAccessEnvelope(t *testing.T) {
	server := newTestServer(&fakeStore{})
	token := testToken(t, "usr_2", "Intruder")

	recorder := doRequest(t, server, http.MethodGet, "/api/boards/brd_1", token, "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := decodeEnvelope(t, recorder)
	if body["status"] != "error" || body["message"] != "You are not a member of this board" {
		t.Fatalf("body = %v", body)
	}
}

func TestCreateBoardValidatesTitle(t *testing.T) {
	server := newTestServer(&fakeStore{})
	token := testToken(t, "usr_1", "Dana")

	recorder := doRequest(t, server, http.MethodPost, "/api/boards", token, `{"title":"   "}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := decodeEnvelope(t, recorder)
	if body["message"] != "title is required" {
		t.Fatalf("body = %v", body)
	}
}

func TestCreateBoardReturns201Envelope(t *testing.T) {
	fs := &fakeStore{}
	server := newTestServer(fs)
	token := testToken(t, "usr_1", "Dana")

	recorder := doRequest(t, server, http.MethodPost, "/api/boards", token, `{"title":"Launch"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	body := decodeEnvelope(t, recorder)
	if body["status"] != "success" {
		t.Fatalf("body = %v", body)
	}
	data := body["data"].(map[string]any)
	if data["board"] == nil {
		t.Fatalf("data = %v", data)
	}
}

func TestCreateTaskRejectsBadPriority(t *testing.T) {
	fs := &fakeStore{
		getListFn: func(_ context.Context, id string) (store.List, error) {
			return store.List{ID: id, BoardID: "brd_1"}, nil
		},
		getMembershipFn: memberOf("brd_1", "usr_1", "member"),
	}
	server := newTestServer(fs)
	token := testToken(t, "usr_1", "Dana")

	recorder := doRequest(t, server, http.MethodPost, "/api/lists/lst_1/tasks", token,
		`{"title":"Ship","priority":"urgent"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestUnknownTaskIs404(t *testing.T) {
	fs := &fakeStore{
		getTaskWithListFn: func(context.Context, string) (store.Task, store.List, error) {
			return store.Task{}, store.List{}, sql.ErrNoRows
		},
	}
	server := newTestServer(fs)
	token := testToken(t, "usr_1", "Dana")

	recorder := doRequest(t, server, http.MethodDelete, "/api/tasks/tsk_missing", token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestStreamRejectsMissingToken(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodGet, "/api/stream", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestStreamJoinEnforcesBoardMembership(t *testing.T) {
	fs := &fakeStore{}
	server := newTestServer(fs)
	token := testToken(t, "usr_1", "Dana")
	stream := server.streams.Register("usr_1")

	recorder := doRequest(t, server, http.MethodPost, "/api/stream/"+stream.ID+"/join", token,
		`{"boardId":"brd_1"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want membership check at join", recorder.Code)
	}
}

func TestStreamJoinSucceedsForMember(t *testing.T) {
	fs := &fakeStore{getMembershipFn: memberOf("brd_1", "usr_1", "member")}
	server := newTestServer(fs)
	token := testToken(t, "usr_1", "Dana")
	stream := server.streams.Register("usr_1")

	recorder := doRequest(t, server, http.MethodPost, "/api/stream/"+stream.ID+"/join", token,
		`{"boardId":"brd_1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(t, server, http.MethodPost, "/api/stream/ses_unknown/join", token,
		`{"boardId":"brd_1"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown session", recorder.Code)
	}
}

func TestAssignDuplicateReturnsMessage(t *testing.T) {
	fs := &fakeStore{
		getTaskWithListFn: func(context.Context, string) (store.Task, store.List, error) {
			return store.Task{ID: "tsk_1", ListID: "lst_1", Title: "Ship"},
				store.List{ID: "lst_1", BoardID: "brd_1"}, nil
		},
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, Name: "Omar"}, nil
		},
		getMembershipFn: func(_ context.Context, boardID, userID string) (store.Membership, error) {
			return store.Membership{BoardID: boardID, UserID: userID, Role: "member"}, nil
		},
		hasAssigneeFn: func(context.Context, string, string) (bool, error) { return true, nil },
	}
	server := newTestServer(fs)
	token := testToken(t, "usr_1", "Dana")

	recorder := doRequest(t, server, http.MethodPost, "/api/tasks/tsk_1/assign", token,
		`{"userId":"usr_2"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := decodeEnvelope(t, recorder)
	if body["status"] != "success" || body["message"] != "User already assigned" {
		t.Fatalf("body = %v", body)
	}
}
