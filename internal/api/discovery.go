package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ferralux/myhome-core/internal/bus/own"
	"github.com/ferralux/myhome-core/internal/discovery"
)

// discoveryRequest is the body for start/stop discovery requests. An empty
// gateway targets every registered gateway.
type discoveryRequest struct {
	Gateway string `json:"gateway"`
}

// sendFrameRequest is the body for raw frame injection.
type sendFrameRequest struct {
	Frame string `json:"frame"`
}

// trafficEntry is one row of the passive traffic ledger, annotated with a
// human-readable age for UI display.
type trafficEntry struct {
	own.TrafficEntry
	LastSeenAgo string `json:"last_seen_ago"`
}

// handleStartDiscovery starts a discovery session on one gateway, or on all
// registered gateways when no gateway is named.
func (s *Server) handleStartDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoveryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	if req.Gateway == "" {
		started, errs := s.orch.StartAll(r.Context())
		resp := map[string]any{
			"started": started,
			"count":   len(started),
		}
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			resp["errors"] = msgs
		}
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	snap, err := s.orch.Start(r.Context(), req.Gateway)
	switch {
	case errors.Is(err, discovery.ErrDiscoveryRunning):
		writeConflict(w, "discovery already running on "+req.Gateway)
	case errors.Is(err, discovery.ErrUnknownGateway):
		writeNotFound(w, "unknown gateway "+req.Gateway)
	case errors.Is(err, discovery.ErrNotConnected):
		writeServiceUnavailable(w, "gateway "+req.Gateway+" is not connected")
	case err != nil:
		s.logger.Error("start discovery failed", "gateway", req.Gateway, "error", err)
		writeInternalError(w, "failed to start discovery")
	default:
		writeJSON(w, http.StatusAccepted, snap)
	}
}

// handleStopDiscovery requests a graceful stop of running sessions. Stopping
// an idle gateway is a no-op.
func (s *Server) handleStopDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoveryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	if req.Gateway == "" {
		for _, gw := range s.orch.Gateways() {
			s.orch.Stop(gw)
		}
	} else {
		s.orch.Stop(req.Gateway)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// handleListSessions returns snapshots of current and recently finished
// in-memory sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	gateway := r.URL.Query().Get("gateway")

	if gateway != "" {
		snap, ok := s.orch.Session(gateway)
		if !ok {
			writeNotFound(w, "no session for gateway "+gateway)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	sessions := s.orch.Sessions()
	if sessions == nil {
		sessions = []discovery.SessionSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleSessionHistory returns persisted session summaries from the recorder.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeServiceUnavailable(w, "session history not available")
		return
	}

	gateway := r.URL.Query().Get("gateway")
	limit := queryLimit(r, 20)

	records, err := s.recorder.Sessions(r.Context(), gateway, limit)
	if err != nil {
		s.logger.Error("session history query failed", "error", err)
		writeInternalError(w, "failed to query session history")
		return
	}
	if records == nil {
		records = []own.SessionRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": records,
		"count":    len(records),
	})
}

// handleListTraffic returns the passive bus traffic ledger.
func (s *Server) handleListTraffic(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeServiceUnavailable(w, "traffic ledger not available")
		return
	}

	gateway := r.URL.Query().Get("gateway")
	limit := queryLimit(r, 100)

	rows, err := s.recorder.Traffic(r.Context(), gateway, limit)
	if err != nil {
		s.logger.Error("traffic query failed", "error", err)
		writeInternalError(w, "failed to query traffic")
		return
	}

	now := time.Now()
	entries := make([]trafficEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, trafficEntry{
			TrafficEntry: row,
			LastSeenAgo:  formatDuration(now.Sub(row.LastSeen)),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"traffic": entries,
		"count":   len(entries),
	})
}

// gatewayInfo describes one registered gateway and its session state.
type gatewayInfo struct {
	Gateway      string `json:"gateway"`
	SessionState string `json:"session_state,omitempty"`
}

// handleListGateways lists registered gateways with their latest session
// state, if any.
func (s *Server) handleListGateways(w http.ResponseWriter, _ *http.Request) {
	gateways := s.orch.Gateways()
	infos := make([]gatewayInfo, 0, len(gateways))
	for _, gw := range gateways {
		info := gatewayInfo{Gateway: gw}
		if snap, ok := s.orch.Session(gw); ok {
			info.SessionState = string(snap.State)
		}
		infos = append(infos, info)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gateways": infos,
		"count":    len(infos),
	})
}

// handleSendFrame injects a raw frame on one gateway's command connection.
// The frame is validated against the wire grammar before sending.
func (s *Server) handleSendFrame(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")

	var req sendFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Frame == "" {
		writeBadRequest(w, "frame is required")
		return
	}

	err := s.orch.SendRaw(r.Context(), mac, req.Frame)
	switch {
	case errors.Is(err, own.ErrInvalidFrame):
		writeBadRequest(w, "malformed frame: "+req.Frame)
	case errors.Is(err, discovery.ErrUnknownGateway):
		writeNotFound(w, "unknown gateway "+mac)
	case err != nil:
		s.logger.Error("frame injection failed", "gateway", mac, "error", err)
		writeInternalError(w, "failed to send frame")
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"gateway": mac,
			"frame":   req.Frame,
		})
	}
}

// queryLimit parses the limit query parameter, falling back to a default.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return strconv.Itoa(mins) + " mins ago"
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return strconv.Itoa(days) + " days ago"
}
