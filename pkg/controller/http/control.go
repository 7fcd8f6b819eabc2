package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/utils/errutil"
)

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.uc.Status(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, status)
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	report, err := s.uc.TriggerSync(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, report)
}

func (s *Server) handleStatusCheck(w http.ResponseWriter, r *http.Request) {
	report, err := s.uc.TriggerStatusCheck(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, report)
}

func (s *Server) handleCursorReset(w http.ResponseWriter, r *http.Request) {
	cursor, err := s.uc.ResetCursor(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, cursor)
}

// schedulerState reports which periodic jobs are currently scheduled
type schedulerState struct {
	Sync  bool `json:"sync"`
	Check bool `json:"check"`
}

func (s *Server) schedulerState() schedulerState {
	return schedulerState{
		Sync:  s.scheduler.SyncScheduled(),
		Check: s.scheduler.CheckScheduled(),
	}
}

func (s *Server) handleSyncSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.StartSync(r.Context()); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, s.schedulerState())
}

func (s *Server) handleSyncSchedulerStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.StopSync()
	respondJSON(w, r, s.schedulerState())
}

func (s *Server) handleCheckSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.StartCheck(r.Context()); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, s.schedulerState())
}

func (s *Server) handleCheckSchedulerStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.StopCheck()
	respondJSON(w, r, s.schedulerState())
}

func (s *Server) handleActiveApprovals(w http.ResponseWriter, r *http.Request) {
	records, err := s.uc.ActiveApprovals(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	type response struct {
		Total     int                     `json:"total"`
		Approvals []*model.ApprovalRecord `json:"approvals"`
	}
	respondJSON(w, r, response{Total: len(records), Approvals: records})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	doc, err := s.uc.Leave(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, doc)
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2000 || year > 2100 {
		errutil.HandleHTTP(r.Context(), w, goerr.New("invalid year",
			goerr.T(types.ErrTagRange), goerr.V("year", chi.URLParam(r, "year"))))
		return
	}

	days, err := s.holidays.Year(r.Context(), year)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	respondJSON(w, r, days)
}
