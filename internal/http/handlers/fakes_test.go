package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
)

type fakeVerifier struct {
	claims map[string]any
	err    error
}

func (f *fakeVerifier) VerifyIDToken(ctx context.Context, token string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

// fakeQueue records submissions and hands back deterministic run ids.
type fakeQueue struct {
	submitted []domain.TaskKind
	fired     []domain.TaskKind
	payloads  []any
	submitErr error
}

func (f *fakeQueue) Submit(ctx context.Context, kind domain.TaskKind, userID string, payload any) (*domain.TaskRun, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, kind)
	f.payloads = append(f.payloads, payload)
	return &domain.TaskRun{
		ID:     fmt.Sprintf("run-%d", len(f.submitted)),
		Kind:   kind,
		UserID: userID,
		Status: domain.TaskStatusPending,
	}, nil
}

func (f *fakeQueue) Fire(ctx context.Context, kind domain.TaskKind, payload any) error {
	f.fired = append(f.fired, kind)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeUserRepo struct {
	users      map[string]*domain.User
	upserted   *domain.User
	visibility map[string]bool
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]*domain.User{}, visibility: map[string]bool{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) UpsertByGoogleSub(ctx context.Context, user *domain.User) (*domain.User, error) {
	for _, existing := range f.users {
		if existing.GoogleSub == user.GoogleSub {
			return existing, nil
		}
	}
	f.users[user.ID] = user
	f.upserted = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) DecrementFreeAnalyses(ctx context.Context, userID string) error {
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.FreeAnalysesRemaining > 0 {
		u.FreeAnalysesRemaining--
	}
	return nil
}

func (f *fakeUserRepo) SetPremium(ctx context.Context, userID string, premium bool) error {
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPremium = premium
	return nil
}

func (f *fakeUserRepo) SetFlagsByEmail(ctx context.Context, email string, premium, admin bool) error {
	u, err := f.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	u.IsPremium = premium
	u.IsAdmin = admin
	return nil
}

func (f *fakeUserRepo) SetLeaderboardVisibility(ctx context.Context, userID string, visible bool) error {
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.ShowOnLeaderboard = visible
	f.visibility[userID] = visible
	return nil
}

type fakeRunRepo struct {
	runs map[string]*domain.TaskRun
}

func newFakeRunRepo(runs ...*domain.TaskRun) *fakeRunRepo {
	f := &fakeRunRepo{runs: map[string]*domain.TaskRun{}}
	for _, run := range runs {
		f.runs[run.ID] = run
	}
	return f
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.TaskRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*domain.TaskRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunRepo) MarkStarted(ctx context.Context, id string) error   { return nil }
func (f *fakeRunRepo) MarkCompleted(ctx context.Context, id string, result []byte) error {
	return nil
}
func (f *fakeRunRepo) MarkFailed(ctx context.Context, id string, kind domain.TaskErrorKind, msg string) error {
	return nil
}

type fakeAnalysisRepo struct {
	analyses map[string]*domain.Analysis
	deleted  []string
}

func newFakeAnalysisRepo(analyses ...*domain.Analysis) *fakeAnalysisRepo {
	f := &fakeAnalysisRepo{analyses: map[string]*domain.Analysis{}}
	for _, an := range analyses {
		f.analyses[an.ID] = an
	}
	return f
}

func (f *fakeAnalysisRepo) Create(ctx context.Context, analysis *domain.Analysis) error {
	f.analyses[analysis.ID] = analysis
	return nil
}

func (f *fakeAnalysisRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	var out []domain.Analysis
	for _, an := range f.analyses {
		if an.UserID == userID {
			out = append(out, *an)
		}
	}
	return out, nil
}

func (f *fakeAnalysisRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	return f.ListByUser(ctx, userID, limit)
}

func (f *fakeAnalysisRepo) GetForUser(ctx context.Context, id, userID string) (*domain.Analysis, error) {
	an, ok := f.analyses[id]
	if !ok || an.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return an, nil
}

func (f *fakeAnalysisRepo) Delete(ctx context.Context, id, userID string) error {
	an, ok := f.analyses[id]
	if !ok || an.UserID != userID {
		return domain.ErrNotFound
	}
	delete(f.analyses, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCertRepo struct {
	certs       map[string]*domain.Certification
	photos      map[string]*domain.CertificationPhoto
	transitions []string
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{
		certs:  map[string]*domain.Certification{},
		photos: map[string]*domain.CertificationPhoto{},
	}
}

func (f *fakeCertRepo) Create(ctx context.Context, cert *domain.Certification) error {
	f.certs[cert.ID] = cert
	return nil
}

func (f *fakeCertRepo) GetByID(ctx context.Context, id string) (*domain.Certification, error) {
	c, ok := f.certs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCertRepo) GetForUser(ctx context.Context, id, userID string) (*domain.Certification, error) {
	c, ok := f.certs[id]
	if !ok || c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCertRepo) GetActiveByUser(ctx context.Context, userID string) (*domain.Certification, error) {
	for _, c := range f.certs {
		if c.UserID == userID && !c.Status.Terminal() {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCertRepo) LastCompleted(ctx context.Context, userID string) (*domain.Certification, error) {
	var latest *domain.Certification
	for _, c := range f.certs {
		if c.UserID != userID || c.Status != domain.CertificationCompleted {
			continue
		}
		if latest == nil || (c.CertifiedAt != nil && latest.CertifiedAt != nil && c.CertifiedAt.After(*latest.CertifiedAt)) {
			latest = c
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (f *fakeCertRepo) ListCompletedByUser(ctx context.Context, userID string) ([]domain.Certification, error) {
	var out []domain.Certification
	for _, c := range f.certs {
		if c.UserID == userID && c.Status == domain.CertificationCompleted {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCertRepo) GetPublic(ctx context.Context, id string) (*domain.Certification, error) {
	c, ok := f.certs[id]
	if !ok || c.Status != domain.CertificationCompleted {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCertRepo) Delete(ctx context.Context, id, userID string) error {
	delete(f.certs, id)
	return nil
}

func (f *fakeCertRepo) TransitionStatus(ctx context.Context, id string, from, to domain.CertificationStatus) error {
	c, ok := f.certs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Status != from || !from.CanTransition(to) {
		return domain.ErrInvalidState
	}
	c.Status = to
	f.transitions = append(f.transitions, string(from)+"->"+string(to))
	return nil
}

func (f *fakeCertRepo) CompleteDiagnosis(ctx context.Context, cert *domain.Certification) error {
	existing, ok := f.certs[cert.ID]
	if !ok || existing.Status != domain.CertificationAnalyzing {
		return domain.ErrInvalidState
	}
	cert.Status = domain.CertificationCompleted
	f.certs[cert.ID] = cert
	return nil
}

func (f *fakeCertRepo) CreatePhoto(ctx context.Context, photo *domain.CertificationPhoto) error {
	f.photos[photo.ID] = photo
	if c, ok := f.certs[photo.CertificationID]; ok {
		c.Photos = append(c.Photos, *photo)
	}
	return nil
}

func (f *fakeCertRepo) GetPhoto(ctx context.Context, id string) (*domain.CertificationPhoto, error) {
	p, ok := f.photos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeCertRepo) GetPhotoBySlot(ctx context.Context, certID string, slot domain.PhotoSlot) (*domain.CertificationPhoto, error) {
	for _, p := range f.photos {
		if p.CertificationID == certID && p.Slot == slot {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCertRepo) DeletePhoto(ctx context.Context, id string) error {
	p, ok := f.photos[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.photos, id)
	if c, ok := f.certs[p.CertificationID]; ok {
		kept := c.Photos[:0]
		for _, cp := range c.Photos {
			if cp.ID != id {
				kept = append(kept, cp)
			}
		}
		c.Photos = kept
	}
	return nil
}

func (f *fakeCertRepo) SetPhotoImage(ctx context.Context, id, imageKey, mediaType string) error {
	p, ok := f.photos[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ImageKey = imageKey
	p.MediaType = mediaType
	return nil
}

func (f *fakeCertRepo) SetPhotoValidation(ctx context.Context, id string, status domain.ValidationStatus, reason, notes string) error {
	p, ok := f.photos[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ValidationStatus = status
	p.RejectionReason = reason
	p.QualityNotes = notes
	return nil
}

type fakeForumRepo struct {
	threads map[string]*domain.ForumThread
	replies map[string]*domain.ForumReply
	touched []string
}

func newFakeForumRepo() *fakeForumRepo {
	return &fakeForumRepo{
		threads: map[string]*domain.ForumThread{},
		replies: map[string]*domain.ForumReply{},
	}
}

func (f *fakeForumRepo) CreateThread(ctx context.Context, thread *domain.ForumThread) error {
	f.threads[thread.ID] = thread
	return nil
}

func (f *fakeForumRepo) GetThread(ctx context.Context, id string) (*domain.ForumThread, error) {
	t, ok := f.threads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeForumRepo) ListThreads(ctx context.Context, offset, limit int) ([]domain.ForumThread, int, error) {
	var out []domain.ForumThread
	for _, t := range f.threads {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (f *fakeForumRepo) TouchThread(ctx context.Context, id string, at time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeForumRepo) CreateReply(ctx context.Context, reply *domain.ForumReply) error {
	f.replies[reply.ID] = reply
	return nil
}

func (f *fakeForumRepo) GetReply(ctx context.Context, id string) (*domain.ForumReply, error) {
	r, ok := f.replies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeForumRepo) ListReplies(ctx context.Context, threadID string) ([]domain.ForumReply, error) {
	var out []domain.ForumReply
	for _, r := range f.replies {
		if r.ThreadID == threadID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeForumRepo) ListRecentCompletedReplies(ctx context.Context, threadID string, limit int, excludeID string) ([]domain.ForumReply, error) {
	return nil, nil
}

func (f *fakeForumRepo) FinishReply(ctx context.Context, id, content string, status domain.ReplyStatus) error {
	r, ok := f.replies[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Content = content
	r.Status = status
	return nil
}

func (f *fakeForumRepo) SetReplyStatus(ctx context.Context, id string, status domain.ReplyStatus) error {
	r, ok := f.replies[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	return nil
}

func (f *fakeForumRepo) ListActivePersonas(ctx context.Context) ([]domain.ForumPersona, error) {
	return nil, nil
}

func (f *fakeForumRepo) GetPersona(ctx context.Context, id string) (*domain.ForumPersona, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeForumRepo) CreateSchedule(ctx context.Context, s *domain.ForumAgentSchedule) error {
	return nil
}

func (f *fakeForumRepo) ClaimDueSchedules(ctx context.Context, now time.Time, hold time.Duration) ([]domain.ForumAgentSchedule, error) {
	return nil, nil
}

func (f *fakeForumRepo) GetSchedule(ctx context.Context, id string) (*domain.ForumAgentSchedule, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeForumRepo) AdvanceSchedule(ctx context.Context, id string, replyCount int, nextAt, repliedAt time.Time) error {
	return nil
}

func (f *fakeForumRepo) DeactivateSchedule(ctx context.Context, id string) error { return nil }

func (f *fakeForumRepo) BumpSchedules(ctx context.Context, threadID string, notAfter time.Time) error {
	return nil
}

type fakeCounselingRepo struct {
	sessions map[string]*domain.CounselingSession
	messages map[string]*domain.CounselingMessage
}

func newFakeCounselingRepo() *fakeCounselingRepo {
	return &fakeCounselingRepo{
		sessions: map[string]*domain.CounselingSession{},
		messages: map[string]*domain.CounselingMessage{},
	}
}

func (f *fakeCounselingRepo) CreateSession(ctx context.Context, s *domain.CounselingSession) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeCounselingRepo) GetSession(ctx context.Context, id, userID string) (*domain.CounselingSession, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeCounselingRepo) ListSessions(ctx context.Context, userID string) ([]domain.CounselingSession, error) {
	var out []domain.CounselingSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeCounselingRepo) DeleteSession(ctx context.Context, id, userID string) error {
	if _, err := f.GetSession(ctx, id, userID); err != nil {
		return err
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeCounselingRepo) SetSessionTitle(ctx context.Context, id, title string) error {
	s, ok := f.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Title = title
	return nil
}

func (f *fakeCounselingRepo) CreateMessage(ctx context.Context, m *domain.CounselingMessage) error {
	f.messages[m.ID] = m
	return nil
}

func (f *fakeCounselingRepo) GetMessage(ctx context.Context, id string) (*domain.CounselingMessage, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeCounselingRepo) FinishMessage(ctx context.Context, id, content string, status domain.ReplyStatus) error {
	m, ok := f.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Content = content
	m.Status = status
	return nil
}

func (f *fakeCounselingRepo) SetMessageStatus(ctx context.Context, id string, status domain.ReplyStatus) error {
	m, ok := f.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	return nil
}

type fakeScoreRepo struct {
	scores []*domain.GameScore
}

func (f *fakeScoreRepo) Create(ctx context.Context, score *domain.GameScore) error {
	f.scores = append(f.scores, score)
	return nil
}

func (f *fakeScoreRepo) BestByUser(ctx context.Context, userID string) (*domain.GameScore, error) {
	var best *domain.GameScore
	for _, s := range f.scores {
		if s.UserID != userID {
			continue
		}
		if best == nil || s.Score > best.Score {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeScoreRepo) Top(ctx context.Context, limit int) ([]domain.GameScore, error) {
	var out []domain.GameScore
	for _, s := range f.scores {
		out = append(out, *s)
	}
	return out, nil
}

type fakePaymentRepo struct {
	payments map[string]*domain.Payment
	settled  map[string]domain.PaymentStatus
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: map[string]*domain.Payment{},
		settled:  map[string]domain.PaymentStatus{},
	}
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	f.payments[payment.StripePaymentID] = payment
	return nil
}

func (f *fakePaymentRepo) GetByStripeID(ctx context.Context, stripeID string) (*domain.Payment, error) {
	p, ok := f.payments[stripeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePaymentRepo) HasSucceeded(ctx context.Context, userID string, kind domain.PaymentKind) (bool, error) {
	for _, p := range f.payments {
		if p.UserID == userID && p.Kind == kind && p.Status == domain.PaymentSucceeded {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentRepo) UpdateStatusByStripeID(ctx context.Context, stripeID string, status domain.PaymentStatus) error {
	if p, ok := f.payments[stripeID]; ok && p.Status == domain.PaymentPending {
		p.Status = status
	}
	f.settled[stripeID] = status
	return nil
}

func (f *fakePaymentRepo) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeLeaderboardRepo struct {
	entries []domain.LeaderboardEntry
	err     error
}

func (f *fakeLeaderboardRepo) BestNorwood(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return f.entries, f.err
}

func (f *fakeLeaderboardRepo) WorstNorwood(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return f.entries, f.err
}

func (f *fakeLeaderboardRepo) InsecurityIndex(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return f.entries, f.err
}

type fakeAnalyticsRepo struct {
	summary  *domain.AnalyticsDaily
	counters map[string]int
}

func (f *fakeAnalyticsRepo) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	if f.counters == nil {
		f.counters = make(map[string]int)
	}
	for key, n := range counters {
		f.counters[key] += n
	}
	return nil
}

func (f *fakeAnalyticsRepo) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	if f.summary == nil {
		return nil, domain.ErrNotFound
	}
	return f.summary, nil
}

var errBoom = errors.New("boom")
