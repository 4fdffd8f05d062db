package tasks

import (
	"context"
	"time"

	"server/internal/domain"
)

type fakeTaskRunRepo struct {
	runs map[string]*domain.TaskRun
}

func newFakeTaskRunRepo() *fakeTaskRunRepo {
	return &fakeTaskRunRepo{runs: map[string]*domain.TaskRun{}}
}

func (f *fakeTaskRunRepo) Create(ctx context.Context, run *domain.TaskRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeTaskRunRepo) GetByID(ctx context.Context, id string) (*domain.TaskRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return run, nil
}

func (f *fakeTaskRunRepo) MarkStarted(ctx context.Context, id string) error {
	run, ok := f.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !run.Status.Terminal() {
		run.Status = domain.TaskStatusStarted
		run.Attempts++
	}
	return nil
}

func (f *fakeTaskRunRepo) MarkCompleted(ctx context.Context, id string, result []byte) error {
	run, ok := f.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !run.Status.Terminal() {
		run.Status = domain.TaskStatusCompleted
		run.Result = result
	}
	return nil
}

func (f *fakeTaskRunRepo) MarkFailed(ctx context.Context, id string, kind domain.TaskErrorKind, msg string) error {
	run, ok := f.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !run.Status.Terminal() {
		run.Status = domain.TaskStatusFailed
		run.ErrorKind = kind
		run.Error = msg
	}
	return nil
}

type fakeUserRepo struct {
	users      map[string]*domain.User
	decremented []string
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) UpsertByGoogleSub(ctx context.Context, user *domain.User) (*domain.User, error) {
	f.users[user.ID] = user
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
	f.decremented = append(f.decremented, userID)
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
	return nil
}

type fakeAnalysisRepo struct {
	created []*domain.Analysis
	recent  []domain.Analysis
}

func (f *fakeAnalysisRepo) Create(ctx context.Context, analysis *domain.Analysis) error {
	f.created = append(f.created, analysis)
	return nil
}

func (f *fakeAnalysisRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	return f.recent, nil
}

func (f *fakeAnalysisRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	return f.recent, nil
}

func (f *fakeAnalysisRepo) GetForUser(ctx context.Context, id, userID string) (*domain.Analysis, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeAnalysisRepo) Delete(ctx context.Context, id, userID string) error {
	return domain.ErrNotFound
}

type fakeCertRepo struct {
	certs       map[string]*domain.Certification
	photos      map[string]*domain.CertificationPhoto
	validations map[string]domain.ValidationStatus
	completed   *domain.Certification
	transitions []string
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{
		certs:       map[string]*domain.Certification{},
		photos:      map[string]*domain.CertificationPhoto{},
		validations: map[string]domain.ValidationStatus{},
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
	for _, c := range f.certs {
		if c.UserID == userID && c.Status == domain.CertificationCompleted {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
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
	f.completed = cert
	return nil
}

func (f *fakeCertRepo) CreatePhoto(ctx context.Context, photo *domain.CertificationPhoto) error {
	f.photos[photo.ID] = photo
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
	delete(f.photos, id)
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
	f.validations[id] = status
	return nil
}

type fakeForumRepo struct {
	threads   map[string]*domain.ForumThread
	replies   map[string]*domain.ForumReply
	personas  map[string]*domain.ForumPersona
	schedules map[string]*domain.ForumAgentSchedule
	due       []domain.ForumAgentSchedule
	advanced  []string
	touched   []string
	bumped    []string
}

func newFakeForumRepo() *fakeForumRepo {
	return &fakeForumRepo{
		threads:   map[string]*domain.ForumThread{},
		replies:   map[string]*domain.ForumReply{},
		personas:  map[string]*domain.ForumPersona{},
		schedules: map[string]*domain.ForumAgentSchedule{},
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
	var out []domain.ForumReply
	for _, r := range f.replies {
		if r.ThreadID == threadID && r.Status == domain.ReplyCompleted && r.ID != excludeID {
			out = append(out, *r)
		}
	}
	return out, nil
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
	var out []domain.ForumPersona
	for _, p := range f.personas {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeForumRepo) GetPersona(ctx context.Context, id string) (*domain.ForumPersona, error) {
	p, ok := f.personas[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeForumRepo) CreateSchedule(ctx context.Context, s *domain.ForumAgentSchedule) error {
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeForumRepo) ClaimDueSchedules(ctx context.Context, now time.Time, hold time.Duration) ([]domain.ForumAgentSchedule, error) {
	return f.due, nil
}

func (f *fakeForumRepo) GetSchedule(ctx context.Context, id string) (*domain.ForumAgentSchedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeForumRepo) AdvanceSchedule(ctx context.Context, id string, replyCount int, nextAt, repliedAt time.Time) error {
	s, ok := f.schedules[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.ReplyCount = replyCount
	s.NextReplyAt = &nextAt
	s.LastRepliedAt = &repliedAt
	f.advanced = append(f.advanced, id)
	return nil
}

func (f *fakeForumRepo) DeactivateSchedule(ctx context.Context, id string) error {
	s, ok := f.schedules[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.IsActive = false
	return nil
}

func (f *fakeForumRepo) BumpSchedules(ctx context.Context, threadID string, notAfter time.Time) error {
	f.bumped = append(f.bumped, threadID)
	return nil
}

type fakeCounselingRepo struct {
	sessions map[string]*domain.CounselingSession
	messages map[string]*domain.CounselingMessage
	titles   map[string]string
}

func newFakeCounselingRepo() *fakeCounselingRepo {
	return &fakeCounselingRepo{
		sessions: map[string]*domain.CounselingSession{},
		messages: map[string]*domain.CounselingMessage{},
		titles:   map[string]string{},
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
	delete(f.sessions, id)
	return nil
}

func (f *fakeCounselingRepo) SetSessionTitle(ctx context.Context, id, title string) error {
	f.titles[id] = title
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

type fakeAnalyticsRepo struct {
	counters map[string]int
}

func newFakeAnalyticsRepo() *fakeAnalyticsRepo {
	return &fakeAnalyticsRepo{counters: map[string]int{}}
}

func (f *fakeAnalyticsRepo) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	for k, v := range counters {
		f.counters[k] += v
	}
	return nil
}

func (f *fakeAnalyticsRepo) GetSummary(ctx context.Context) (*domain.AnalyticsDaily, error) {
	return &domain.AnalyticsDaily{}, nil
}

type fakeFirer struct {
	fired []domain.TaskKind
}

func (f *fakeFirer) Fire(ctx context.Context, kind domain.TaskKind, payload any) error {
	f.fired = append(f.fired, kind)
	return nil
}
