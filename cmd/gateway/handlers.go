package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/ratelimit/domain"
	"assistant-gateway/middleware/ratelimit/infra"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin responde a rota de login para quem ainda não tem sessão. A
// tela em si fica no frontend.
func handleLogin(cfg config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"devLogin":      cfg.devLogin,
		})
	}
}

func handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := authgate.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": sess.Authenticated(),
		"userId":        sess.UserID,
		"email":         sess.Email,
	})
}

type devLoginRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// handleDevLogin emite uma sessão sem provedor externo. Só é registrada com
// AUTH_DEV_LOGIN=true.
func handleDevLogin(d deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req devLoginRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" {
			req.UserID = "dev"
		}

		token, exp, err := d.sessions.issue(r.Context(), req.UserID, req.Email, d.cfg.sessionTTL)
		if err != nil {
			d.logger.ErrorContext(r.Context(), "session issue failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "An error occurred processing your request"})
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     d.sessions.cookie,
			Value:    token,
			Path:     "/",
			Expires:  exp,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"userId":    req.UserID,
			"expiresAt": exp.UTC().Format(time.RFC3339),
		})
	}
}

func handleLogout(d deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(d.sessions.cookie); err == nil && c.Value != "" {
			if err := d.sessions.revoke(r.Context(), c.Value); err != nil {
				d.logger.WarnContext(r.Context(), "session revoke failed", "error", err)
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     d.sessions.cookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type gpuStats struct {
	Utilization int       `json:"utilization"`
	MemoryUsed  float64   `json:"memoryUsed"`
	MemoryTotal float64   `json:"memoryTotal"`
	Temperature int       `json:"temperature"`
	History     []int     `json:"history"`
	Timestamp   time.Time `json:"timestamp"`
}

// handleGPUStats devolve números simulados; não há GPU acessível daqui.
func handleGPUStats(clock domain.Clock) http.HandlerFunc {
	const memoryTotal = 8.0
	return func(w http.ResponseWriter, _ *http.Request) {
		util := rand.IntN(100)
		used := 0.5 + rand.Float64()*(memoryTotal-0.5)

		history := make([]int, 10)
		for i := range history {
			history[i] = rand.IntN(100)
		}

		writeJSON(w, http.StatusOK, gpuStats{
			Utilization: util,
			MemoryUsed:  float64(int(used*10)) / 10,
			MemoryTotal: memoryTotal,
			Temperature: 50 + util*30/100,
			History:     history,
			Timestamp:   clock.Now().UTC(),
		})
	}
}

// handleGateStats expõe os contadores agregados. Contadores por cliente
// (IPs, IDs de usuário) nunca saem por aqui.
func handleGateStats(view func(ctx context.Context) (infra.Snapshot, error), logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := view(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "gate stats read failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "An error occurred processing your request"})
			return
		}
		snap.ByKey = nil
		writeJSON(w, http.StatusOK, snap)
	}
}
