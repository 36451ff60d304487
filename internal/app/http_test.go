package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ankicollab/api/internal/authpw"
	"ankicollab/api/internal/config"
	"ankicollab/api/internal/history"
	"ankicollab/api/internal/review"
	"ankicollab/api/internal/store"
)

type stubEngine struct {
	approvedFields []int64
	deniedFields   []int64
	approvedTags   []int64
	opErr          error

	mergeNext    *int64
	mergeErr     error
	mergeCalls   []bool
	mergeResults []store.NoteMergeResult

	noteData review.NoteData
	editErr  error
}

func (s *stubEngine) ApproveField(_ context.Context, _, fieldID int64) error {
	if s.opErr != nil {
		return s.opErr
	}
	s.approvedFields = append(s.approvedFields, fieldID)
	return nil
}

func (s *stubEngine) DenyField(_ context.Context, _, fieldID int64) error {
	if s.opErr != nil {
		return s.opErr
	}
	s.deniedFields = append(s.deniedFields, fieldID)
	return nil
}

func (s *stubEngine) ApproveTag(_ context.Context, _, tagID int64) error {
	if s.opErr != nil {
		return s.opErr
	}
	s.approvedTags = append(s.approvedTags, tagID)
	return nil
}

func (s *stubEngine) DenyTag(context.Context, int64, int64) error     { return s.opErr }
func (s *stubEngine) ApproveMove(context.Context, int64, int64) error { return s.opErr }
func (s *stubEngine) DenyMove(context.Context, int64, int64) error    { return s.opErr }

func (s *stubEngine) MarkDeleted(context.Context, int64, int64) (string, error) {
	return "deadbeef", s.opErr
}

func (s *stubEngine) DenyDeletionRequest(context.Context, int64, int64) error { return s.opErr }

func (s *stubEngine) MergeByCommit(_ context.Context, _, _ int64, approve bool) (*int64, error) {
	if s.mergeErr != nil {
		return nil, s.mergeErr
	}
	s.mergeCalls = append(s.mergeCalls, approve)
	return s.mergeNext, nil
}

func (s *stubEngine) MergeByNoteIDs(context.Context, int64, int64, []int64, bool) ([]store.NoteMergeResult, error) {
	return s.mergeResults, s.mergeErr
}

func (s *stubEngine) BatchUpsertFieldSuggestions(context.Context, int64, int64, int64, []review.FieldEdit, string) ([]review.FieldEditResult, error) {
	return []review.FieldEditResult{}, s.editErr
}

func (s *stubEngine) Subscribe(context.Context, int64, int64, int64, []uint32) error { return s.opErr }
func (s *stubEngine) Unsubscribe(context.Context, int64, int64) error                { return s.opErr }

func (s *stubEngine) GetNoteData(context.Context, int64) (review.NoteData, error) {
	return s.noteData, s.opErr
}

func (s *stubEngine) GetCommitNotes(context.Context, int64) ([]review.CommitData, error) {
	return []review.CommitData{}, s.opErr
}

func (s *stubEngine) GetAllFieldsForEdit(context.Context, int64, int64) ([]review.EditField, error) {
	return []review.EditField{}, s.opErr
}

type stubProjector struct{}

func (stubProjector) FetchNoteHistory(context.Context, int64) (history.NoteHistory, error) {
	return history.NoteHistory{}, nil
}

func (stubProjector) FetchCommitHistory(context.Context, int64) ([]history.CommitHistoryNote, error) {
	return []history.CommitHistoryNote{}, nil
}

type stubUsers struct {
	users   map[int64]store.User
	pingErr error
}

func (s *stubUsers) UserByID(_ context.Context, id int64) (store.User, error) {
	u, ok := s.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *stubUsers) Ping(context.Context) error { return s.pingErr }

type stubSignIn struct {
	user store.User
	err  error
}

func (s *stubSignIn) SignIn(context.Context, string, string) (store.User, error) {
	return s.user, s.err
}

func newTestServer(t *testing.T, engine *stubEngine) (*HTTPServer, string) {
	t.Helper()
	cfg := config.Config{
		SessionSecret: "test-session-secret",
		MediaSecret:   "0123456789abcdef0123456789abcdef",
		SessionTTL:    time.Hour,
		MediaTokenTTL: 5 * time.Minute,
	}
	reviewer := store.User{ID: 9, Username: "zoe", Admin: false}
	svc := NewService(cfg, ServiceDeps{
		Users:     &stubUsers{users: map[int64]store.User{9: reviewer}},
		Engine:    engine,
		Projector: stubProjector{},
		SignIn:    &stubSignIn{user: reviewer},
	})
	server := NewHTTPServer(svc, "*")

	session, err := svc.SignIn(context.Background(), "zoe", "password")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return server, session.Token
}

func doRequest(server *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if response["ok"] != true {
		t.Fatalf("ok = %v, want true", response["ok"])
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	cfg := config.Config{SessionSecret: "s", SessionTTL: time.Hour}
	svc := NewService(cfg, ServiceDeps{
		Users:     &stubUsers{pingErr: errors.New("connection refused")},
		Engine:    &stubEngine{},
		Projector: stubProjector{},
		SignIn:    &stubSignIn{},
	})
	server := NewHTTPServer(svc, "*")

	rr := doRequest(server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	cfg := config.Config{SessionSecret: "s", SessionTTL: time.Hour}
	svc := NewService(cfg, ServiceDeps{
		Users:     &stubUsers{},
		Engine:    &stubEngine{},
		Projector: stubProjector{},
		SignIn:    &stubSignIn{err: authpw.ErrInvalidCredentials},
	})
	server := NewHTTPServer(svc, "*")

	rr := doRequest(server, http.MethodPost, "/api/auth/signin", "", `{"username":"zoe","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestReviewRoutesRequireSession(t *testing.T) {
	server, _ := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodPost, "/api/fields/5/approve", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestApproveFieldRoute(t *testing.T) {
	engine := &stubEngine{}
	server, token := newTestServer(t, engine)

	rr := doRequest(server, http.MethodPost, "/api/fields/5/approve", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(engine.approvedFields) != 1 || engine.approvedFields[0] != 5 {
		t.Fatalf("approved fields = %v", engine.approvedFields)
	}
}

func TestUnauthorizedReviewMapsToForbidden(t *testing.T) {
	engine := &stubEngine{opErr: review.ErrUnauthorized}
	server, token := newTestServer(t, engine)

	rr := doRequest(server, http.MethodPost, "/api/tags/3/approve", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestVanishedNoteMapsToNotFoundWithContext(t *testing.T) {
	engine := &stubEngine{opErr: &review.NoteNotFoundError{Context: review.ContextFieldApprove}}
	server, token := newTestServer(t, engine)

	rr := doRequest(server, http.MethodPost, "/api/fields/5/approve", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	details, _ := response["details"].(map[string]any)
	if details["context"] != "field approve" {
		t.Fatalf("details = %v", response["details"])
	}
}

func TestMergeCommitReturnsNextReview(t *testing.T) {
	next := int64(42)
	engine := &stubEngine{mergeNext: &next}
	server, token := newTestServer(t, engine)

	rr := doRequest(server, http.MethodPost, "/api/commits/7/approve", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var response struct {
		OK         bool   `json:"ok"`
		NextReview *int64 `json:"next_review"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if response.NextReview == nil || *response.NextReview != 42 {
		t.Fatalf("next_review = %v, want 42", response.NextReview)
	}
	if len(engine.mergeCalls) != 1 || !engine.mergeCalls[0] {
		t.Fatalf("merge calls = %v", engine.mergeCalls)
	}
}

func TestMergeEmptyCommit(t *testing.T) {
	engine := &stubEngine{mergeErr: review.ErrNoNotesAffected}
	server, token := newTestServer(t, engine)

	rr := doRequest(server, http.MethodPost, "/api/commits/7/deny", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestBulkReviewReturnsPerNoteResults(t *testing.T) {
	engine := &stubEngine{mergeResults: []store.NoteMergeResult{
		{NoteID: 1, Success: true},
		{NoteID: 2, Success: false, Reason: "note 2 has ambiguous fields"},
	}}
	server, token := newTestServer(t, engine)

	rr := doRequest(server, http.MethodPost, "/api/commits/7/review", token, `{"approve":true,"note_ids":[1,2]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var response struct {
		Results []store.NoteMergeResult `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(response.Results) != 2 || response.Results[1].Success {
		t.Fatalf("results = %+v", response.Results)
	}
}

func TestBulkReviewRequiresNoteIDs(t *testing.T) {
	server, token := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodPost, "/api/commits/7/review", token, `{"approve":true}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestNoteFieldsRequireCommitID(t *testing.T) {
	server, token := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodPost, "/api/notes/3/fields", token, `{"edits":[]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestSearchUnavailableWithoutBackend(t *testing.T) {
	server, token := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodGet, "/api/search?q=anatomy", token, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestMediaDownloadRejectsBadToken(t *testing.T) {
	server, _ := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodGet, "/api/media/download?token=garbage", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestMediaTokenRoundTrip(t *testing.T) {
	server, token := newTestServer(t, &stubEngine{})

	rr := doRequest(server, http.MethodPost, "/api/media/token", token, `{"hash":"abc123","deck_hash":"deadbeef","filename":"x.png"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var response struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if response.Token == "" {
		t.Fatal("empty media token")
	}
}
