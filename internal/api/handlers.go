// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/family"
	"github.com/famtrack/famtrack/internal/reminder"
)

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	msg, err := s.auth.SendOTP(r.Context(), req.Email)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, msg, nil)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	msg, err := s.auth.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, msg, nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	res, err := s.auth.Register(r.Context(), auth.RegisterRequest{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		FamilyCode: req.FamilyCode,
		FamilyName: req.FamilyName,
	})
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Registration successful", res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	res, err := s.auth.Login(r.Context(), auth.LoginRequest{
		FamilyCode: req.FamilyCode,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Login successful", res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	res, err := s.auth.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Token refreshed", res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	user, _ := UserFromContext(r.Context())
	writeSuccess(w, s.auth.Logout(r.Context(), user.ID, req.RefreshToken), nil)
}

func (s *Server) handleForgotFamilyCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	msg, err := s.auth.ForgotFamilyCode(r.Context(), req.Email)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, msg, nil)
}

func (s *Server) handleFamilyDetails(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	details, err := s.family.Details(r.Context(), user.FamilyID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Family details retrieved", details)
}

func (s *Server) handleFamilyMembers(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	members, err := s.family.Members(r.Context(), user.FamilyID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Family members retrieved", members)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	memberID, err := ulid.ParseStrict(mux.Vars(r)["id"])
	if err != nil {
		// An unparseable ID cannot name a member of any family.
		writeError(r.Context(), w, s.logger, oops.Code(family.CodeMemberNotFound).Errorf("Member not found in your family"))
		return
	}
	msg, err := s.family.RemoveMember(r.Context(), user.FamilyID, memberID, user.Role)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, msg, nil)
}

func (s *Server) handleRenameFamily(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req renameRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	updated, err := s.family.UpdateName(r.Context(), user.FamilyID, req.value(), user.Role)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, "Family name updated", updated)
}

func (s *Server) handleRemindMember(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	memberID, err := ulid.ParseStrict(req.MemberID)
	if err != nil {
		writeError(r.Context(), w, s.logger, oops.Code(reminder.CodeMemberNotFound).Errorf("Member not found in your family"))
		return
	}
	out, err := s.reminders.SendToMember(r.Context(), user.FamilyID, memberID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, out.Message, out)
}

func (s *Server) handleRemindAll(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	tally, err := s.reminders.SendToAll(r.Context(), user.FamilyID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, tally.Message, tally)
}

func (s *Server) handleRemindBulk(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req bulkRequest
	if err := decode(r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	// Unparseable IDs become the zero ULID, which matches no member but
	// still counts toward totalRequested.
	ids := make([]ulid.ULID, len(req.MemberIDs))
	for i, raw := range req.MemberIDs {
		if id, err := ulid.ParseStrict(raw); err == nil {
			ids[i] = id
		}
	}
	tally, err := s.reminders.SendBulk(r.Context(), user.FamilyID, ids)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, tally.Message, tally)
}

func (s *Server) handleTestReminder(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	msg, err := s.reminders.SendTest(r.Context(), user.Email)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, msg, nil)
}
