package http

import (
	"net/http"

	"eventfin/internal/core"
	"eventfin/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) error {
	period, err := core.ParsePeriod(queryText(r, "period"))
	if err != nil {
		return err
	}
	key := string(period)
	if summary, ok := s.dashboardCache.Get(key); ok {
		s.metrics.cacheHits.Add(1)
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, summary)
		return nil
	}

	gen := s.dashboardGeneration()
	summary, err := s.deps.Dashboard.Summary(r.Context(), period)
	if err != nil {
		return err
	}
	if !s.cacheSummary(key, gen, summary) {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Dashboard changed while computing, not cached", "period", key)
	}
	s.metrics.cacheMisses.Add(1)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, summary)
	return nil
}

type reconcileResponse struct {
	Drifts []core.SpendDrift `json:"drifts"`
	Clean  bool              `json:"clean"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) error {
	drifts, err := s.deps.Reconciler.Check(r.Context())
	if err != nil {
		return err
	}
	if len(drifts) > 0 {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Spend drift detected",
			log.FieldOperation, log.OpReconcile, log.FieldCount, len(drifts))
	}
	if drifts == nil {
		drifts = []core.SpendDrift{}
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Drifts: drifts, Clean: len(drifts) == 0})
	return nil
}
