// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/ledger"
)

func (s *Server) handleCreateEntry(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		var req createEntryRequest
		if err := decode(r, &req); err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		// decode has already checked the date.
		date, _ := parseDate(req.Date)
		entry, err := s.ledger.Create(r.Context(), kind, user.ID, ledger.NewEntry{
			Amount:   *req.Amount,
			Category: req.Category,
			Date:     date,
			Notes:    req.Notes,
		})
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, kind.Title()+" record created", entry)
	}
}

func (s *Server) handleMyEntries(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		entries, err := s.ledger.ListMine(r.Context(), kind, user.ID)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, "User "+string(kind)+"s retrieved", entries)
	}
}

func (s *Server) handleFamilyEntries(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		entries, err := s.ledger.ListFamily(r.Context(), kind, user.FamilyID)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, "Family "+string(kind)+"s retrieved", entries)
	}
}

func (s *Server) handleEntryStats(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		stats, err := s.ledger.Stats(r.Context(), kind, user.ID)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, "User "+string(kind)+" stats retrieved", stats)
	}
}

func (s *Server) handleGetEntry(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		id, err := entryID(r, kind)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		entry, err := s.ledger.Get(r.Context(), kind, id, user.ID)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, kind.Title()+" record retrieved", entry)
	}
}

func (s *Server) handleUpdateEntry(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		id, err := entryID(r, kind)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		var req updateEntryRequest
		if err := decode(r, &req); err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		patch := ledger.Patch{Amount: req.Amount, Category: req.Category, Notes: req.Notes}
		if req.Date != nil && *req.Date != "" {
			date, _ := parseDate(*req.Date)
			patch.Date = &date
		}
		entry, err := s.ledger.Update(r.Context(), kind, id, user.ID, patch)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, kind.Title()+" record updated", entry)
	}
}

func (s *Server) handleDeleteEntry(kind ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		id, err := entryID(r, kind)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		msg, err := s.ledger.Delete(r.Context(), kind, id, user.ID)
		if err != nil {
			writeError(r.Context(), w, s.logger, err)
			return
		}
		writeSuccess(w, msg, nil)
	}
}

// entryID parses the {id} route variable. An unparseable ID names no entry.
func entryID(r *http.Request, kind ledger.Kind) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(mux.Vars(r)["id"])
	if err != nil {
		return ulid.ULID{}, ledger.NotFound(kind)
	}
	return id, nil
}

func (s *Server) handleFamilyDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	dash, err := s.ledger.FamilyDashboard(r.Context(), user.FamilyID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Family dashboard retrieved", dash)
}

func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	dash, err := s.ledger.UserDashboard(r.Context(), user.ID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "User dashboard retrieved", dash)
}

func (s *Server) handleFamilyTrends(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	months, err := trendMonths(r)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	trends, err := s.ledger.FamilyTrends(r.Context(), user.FamilyID, months)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Family trends retrieved", trends)
}

func (s *Server) handleUserTrends(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	months, err := trendMonths(r)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	trends, err := s.ledger.UserTrends(r.Context(), user.ID, months)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "User trends retrieved", trends)
}

// trendMonths reads ?months=, defaulting to ledger.DefaultTrendMonths.
func trendMonths(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("months"))
	if raw == "" {
		return ledger.DefaultTrendMonths, nil
	}
	months, err := strconv.Atoi(raw)
	if err != nil {
		return 0, oops.Code(ledger.CodeInvalidMonths).
			With("months", raw).
			Errorf("months must be between 1 and %d", ledger.MaxTrendMonths)
	}
	return months, nil
}
