package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"server/internal/domain"
)

// countVisitor bumps today's visitor counter. Best effort, a failed write
// never surfaces to the request.
func (a *App) countVisitor(ctx context.Context) {
	day := time.Now().UTC().Format("2006-01-02")
	if err := a.Analytics.IncrementCounters(ctx, day, map[string]int{"visitors": 1}); err != nil {
		a.Logger.Warn().Err(err).Msg("increment visitor counter")
	}
}

// StatsSummary exposes the latest analytics counters. Admin only.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(w, r)
	if user == nil {
		return
	}
	if !user.IsAdmin {
		a.error(w, http.StatusForbidden, "forbidden", "admin access required")
		return
	}
	summary, err := a.Analytics.GetSummary(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			summary = &domain.AnalyticsDaily{}
		} else {
			a.domainError(w, err, "")
			return
		}
	}
	a.json(w, http.StatusOK, map[string]any{
		"day":                      summary.Day,
		"visitors":                 summary.Visitors,
		"ai_requests":              summary.AIRequests,
		"request_success":          summary.RequestSuccess,
		"request_fail":             summary.RequestFail,
		"analyses_completed":       summary.AnalysesCompleted,
		"certifications_completed": summary.CertificationsCompleted,
	})
}
