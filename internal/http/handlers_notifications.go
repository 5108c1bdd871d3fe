package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/notify"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	q := r.URL.Query()
	f := core.NotificationFilter{
		UnreadOnly: queryBool(q, "unread"),
		Type:       core.NotificationType(strings.TrimSpace(q.Get("type"))),
	}
	f.Limit, f.Offset = parseLimitOffset(q)

	list, err := s.notifier.List(r.Context(), caller.UserID, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newNotificationView))
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	n, err := s.notifier.UnreadCount(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.notifier.MarkRead(r.Context(), caller.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	n, err := s.notifier.MarkAllRead(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.notifier.Delete(r.Context(), caller.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRead(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	n, err := s.notifier.DeleteRead(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

type announceRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	var req announceRequest
	if !bindJSON(w, r, &req) {
		return
	}
	err := s.notifier.Announce(r.Context(), caller, notify.Content{
		Title:   strings.TrimSpace(req.Title),
		Message: strings.TrimSpace(req.Message),
		Link:    strings.TrimSpace(req.Link),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
