// Package app wires the review engine, projections and supporting services
// behind one HTTP surface.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"ankicollab/api/internal/auth"
	"ankicollab/api/internal/config"
	"ankicollab/api/internal/export"
	"ankicollab/api/internal/history"
	"ankicollab/api/internal/review"
	"ankicollab/api/internal/search"
	"ankicollab/api/internal/store"
)

// Session is the authenticated reviewer attached to a request.
type Session struct {
	Token     string
	UserID    int64
	UserName  string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// reviewEngine is the suggestion and merge surface the HTTP layer drives.
// *review.Engine implements it; tests substitute a stub.
type reviewEngine interface {
	ApproveField(ctx context.Context, userID, fieldID int64) error
	DenyField(ctx context.Context, userID, fieldID int64) error
	ApproveTag(ctx context.Context, userID, tagID int64) error
	DenyTag(ctx context.Context, userID, tagID int64) error
	ApproveMove(ctx context.Context, userID, moveID int64) error
	DenyMove(ctx context.Context, userID, moveID int64) error
	MarkDeleted(ctx context.Context, userID, noteID int64) (string, error)
	DenyDeletionRequest(ctx context.Context, userID, noteID int64) error
	MergeByCommit(ctx context.Context, userID, commitID int64, approve bool) (*int64, error)
	MergeByNoteIDs(ctx context.Context, userID, commitID int64, noteIDs []int64, approve bool) ([]store.NoteMergeResult, error)
	BatchUpsertFieldSuggestions(ctx context.Context, userID, noteID, commitID int64, edits []review.FieldEdit, clientIP string) ([]review.FieldEditResult, error)
	Subscribe(ctx context.Context, userID, subscriberNote, baseNote int64, subscribedFields []uint32) error
	Unsubscribe(ctx context.Context, userID, subscriberNote int64) error
	GetNoteData(ctx context.Context, noteID int64) (review.NoteData, error)
	GetCommitNotes(ctx context.Context, commitID int64) ([]review.CommitData, error)
	GetAllFieldsForEdit(ctx context.Context, noteID, commitID int64) ([]review.EditField, error)
}

type historyProjector interface {
	FetchNoteHistory(ctx context.Context, noteID int64) (history.NoteHistory, error)
	FetchCommitHistory(ctx context.Context, commitID int64) ([]history.CommitHistoryNote, error)
}

type userStore interface {
	UserByID(ctx context.Context, userID int64) (store.User, error)
	Ping(ctx context.Context) error
}

type passwordSignIn interface {
	SignIn(ctx context.Context, username, password string) (store.User, error)
}

type searcher interface {
	Search(q search.Query) search.Response
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type blobStore interface {
	Open(ctx context.Context, hash string) (io.ReadCloser, int64, error)
}

type mailer interface {
	IsConfigured() bool
	SendCommitReviewedEmail(to, userName, deckName string, commitID int64, approved bool, rationale string) error
}

// Service orchestrates the domain services. Optional collaborators (search,
// export, media, mail) may be nil; their endpoints then answer 503.
type Service struct {
	cfg       config.Config
	users     userStore
	engine    reviewEngine
	projector historyProjector
	signIn    passwordSignIn
	search    searcher
	exporter  exporter
	blobs     blobStore
	mail      mailer
}

type ServiceDeps struct {
	Users     userStore
	Engine    reviewEngine
	Projector historyProjector
	SignIn    passwordSignIn
	Search    searcher
	Exporter  exporter
	Blobs     blobStore
	Mail      mailer
}

func NewService(cfg config.Config, deps ServiceDeps) *Service {
	return &Service{
		cfg:       cfg,
		users:     deps.Users,
		engine:    deps.Engine,
		projector: deps.Projector,
		signIn:    deps.SignIn,
		search:    deps.Search,
		exporter:  deps.Exporter,
		blobs:     deps.Blobs,
		mail:      deps.Mail,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

// --- sessions ---

func (s *Service) SignIn(ctx context.Context, username, password string) (Session, error) {
	user, err := s.signIn.SignIn(ctx, username, password)
	if err != nil {
		return Session{}, err
	}

	expiresAt := time.Now().Add(s.cfg.SessionTTL)
	claims := auth.Claims{
		Sub:  strconv.FormatInt(user.ID, 10),
		Name: user.Username,
		Role: roleOf(user),
		JTI:  newJTI(),
		Exp:  expiresAt.Unix(),
	}
	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), claims)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Username,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}
	userID, err := strconv.ParseInt(claims.Sub, 10, 64)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Username,
		Role:      roleOf(user),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func roleOf(user store.User) string {
	if user.Admin {
		return "admin"
	}
	return "user"
}

func newJTI() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// --- review operations ---

func (s *Service) ApproveField(ctx context.Context, session Session, fieldID int64) error {
	return s.engine.ApproveField(ctx, session.UserID, fieldID)
}

func (s *Service) DenyField(ctx context.Context, session Session, fieldID int64) error {
	return s.engine.DenyField(ctx, session.UserID, fieldID)
}

func (s *Service) ApproveTag(ctx context.Context, session Session, tagID int64) error {
	return s.engine.ApproveTag(ctx, session.UserID, tagID)
}

func (s *Service) DenyTag(ctx context.Context, session Session, tagID int64) error {
	return s.engine.DenyTag(ctx, session.UserID, tagID)
}

func (s *Service) ApproveMove(ctx context.Context, session Session, moveID int64) error {
	return s.engine.ApproveMove(ctx, session.UserID, moveID)
}

func (s *Service) DenyMove(ctx context.Context, session Session, moveID int64) error {
	return s.engine.DenyMove(ctx, session.UserID, moveID)
}

// MarkDeleted approves a deletion request and returns the deck hash the
// client should refresh.
func (s *Service) MarkDeleted(ctx context.Context, session Session, noteID int64) (string, error) {
	return s.engine.MarkDeleted(ctx, session.UserID, noteID)
}

func (s *Service) DenyDeletionRequest(ctx context.Context, session Session, noteID int64) error {
	return s.engine.DenyDeletionRequest(ctx, session.UserID, noteID)
}

// MergeCommit reviews an entire commit in one transaction and returns the id
// of the next commit awaiting review, if any.
func (s *Service) MergeCommit(ctx context.Context, session Session, commitID int64, approve bool) (*int64, error) {
	next, err := s.engine.MergeByCommit(ctx, session.UserID, commitID, approve)
	if err != nil {
		return nil, err
	}
	s.notifyCommitReviewed(commitID, approve)
	return next, nil
}

// MergeNotes reviews a subset of a commit's notes, one transaction per note.
func (s *Service) MergeNotes(ctx context.Context, session Session, commitID int64, noteIDs []int64, approve bool) ([]store.NoteMergeResult, error) {
	return s.engine.MergeByNoteIDs(ctx, session.UserID, commitID, noteIDs, approve)
}

// notifyCommitReviewed emails the suggester, best effort.
func (s *Service) notifyCommitReviewed(commitID int64, approved bool) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, ok := s.users.(*store.PostgresStore)
	if !ok {
		return
	}
	commit, err := pg.Review().CommitByID(ctx, commitID)
	if err != nil || commit.UserID == nil {
		return
	}
	user, err := pg.UserByID(ctx, *commit.UserID)
	if err != nil || user.Email == "" {
		return
	}
	deck, err := pg.Review().DeckByID(ctx, commit.Deck)
	if err != nil {
		return
	}
	go func() {
		if err := s.mail.SendCommitReviewedEmail(user.Email, user.Username, deck.Name, commitID, approved, commit.Rationale.String()); err != nil {
			log.Printf("app: commit reviewed email: %v", err)
		}
	}()
}

func (s *Service) BatchEditFields(ctx context.Context, session Session, noteID, commitID int64, edits []review.FieldEdit, clientIP string) ([]review.FieldEditResult, error) {
	return s.engine.BatchUpsertFieldSuggestions(ctx, session.UserID, noteID, commitID, edits, clientIP)
}

func (s *Service) Subscribe(ctx context.Context, session Session, subscriberNote, baseNote int64, subscribedFields []uint32) error {
	return s.engine.Subscribe(ctx, session.UserID, subscriberNote, baseNote, subscribedFields)
}

func (s *Service) Unsubscribe(ctx context.Context, session Session, subscriberNote int64) error {
	return s.engine.Unsubscribe(ctx, session.UserID, subscriberNote)
}

// --- projections ---

func (s *Service) NoteData(ctx context.Context, noteID int64) (review.NoteData, error) {
	return s.engine.GetNoteData(ctx, noteID)
}

func (s *Service) CommitNotes(ctx context.Context, commitID int64) ([]review.CommitData, error) {
	return s.engine.GetCommitNotes(ctx, commitID)
}

func (s *Service) FieldsForEdit(ctx context.Context, noteID, commitID int64) ([]review.EditField, error) {
	return s.engine.GetAllFieldsForEdit(ctx, noteID, commitID)
}

func (s *Service) NoteHistory(ctx context.Context, noteID int64) (history.NoteHistory, error) {
	return s.projector.FetchNoteHistory(ctx, noteID)
}

func (s *Service) CommitHistory(ctx context.Context, commitID int64) ([]history.CommitHistoryNote, error) {
	return s.projector.FetchCommitHistory(ctx, commitID)
}

// --- search ---

func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(503, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(q), nil
}

// --- export ---

func (s *Service) ExportDeck(ctx context.Context, req export.Request) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(503, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	return s.exporter.Export(ctx, req)
}

// --- media ---

// IssueMediaToken signs a short-lived download grant for one media object.
func (s *Service) IssueMediaToken(session Session, hash, deckHash, filename string) (string, error) {
	claims := auth.DownloadClaims{
		Hash:     hash,
		UserID:   session.UserID,
		DeckHash: deckHash,
		Filename: filename,
		Exp:      time.Now().Add(s.cfg.MediaTokenTTL).Unix(),
	}
	return auth.IssueDownloadToken([]byte(s.cfg.MediaSecret), claims)
}

// OpenMedia validates a download token and opens the blob it grants.
func (s *Service) OpenMedia(ctx context.Context, token string) (io.ReadCloser, int64, auth.DownloadClaims, error) {
	claims, err := auth.ParseDownloadToken([]byte(s.cfg.MediaSecret), token)
	if err != nil {
		return nil, 0, auth.DownloadClaims{}, err
	}
	if s.blobs == nil {
		return nil, 0, auth.DownloadClaims{}, domainError(503, "MEDIA_UNAVAILABLE", "Media storage is not configured", nil)
	}
	rc, size, err := s.blobs.Open(ctx, claims.Hash)
	if err != nil {
		return nil, 0, auth.DownloadClaims{}, err
	}
	return rc, size, claims, nil
}
