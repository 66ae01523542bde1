package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"deltanet/pkg/auth"
	"deltanet/pkg/kernel"
	"deltanet/pkg/model"
)

// Config wires the kernel's HTTP surface. DB is optional: without it the
// admin auth and audit endpoints are disabled. Token is an optional
// bootstrap bearer accepted as an alternative to a JWT.
type Config struct {
	Router *kernel.Router
	DB     *gorm.DB
	Token  string
}

// RegisterRoutes attaches the websocket endpoint and the status surface.
// The websocket path is deliberately ungated: registration is advisory in
// the routing protocol, and auth only protects the HTTP views.
func RegisterRoutes(mux *http.ServeMux, cfg Config) {
	mux.HandleFunc("/api/v1/ws", cfg.Router.HandleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/v1/nodes", requireAuth(cfg, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, cfg.Router.Nodes())
	}))

	if cfg.DB != nil {
		a := &AuthHandler{DB: cfg.DB}
		a.RegisterRoutes(mux)
		mux.HandleFunc("/api/v1/audit", requireAuth(cfg, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var entries []model.AuditEntry
			if err := cfg.DB.Order("id DESC").Limit(100).Find(&entries).Error; err != nil {
				log.Printf("audit list failed: %v", err)
				http.Error(w, "failed to list audit entries", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, entries)
		}))
	}
}

// requireAuth accepts the bootstrap token or a valid JWT. When neither a
// token nor a users DB is configured the surface stays open for local
// development, matching the kernel's permissive websocket side.
func requireAuth(cfg Config, next http.HandlerFunc) http.HandlerFunc {
	open := cfg.Token == "" && cfg.DB == nil
	return func(w http.ResponseWriter, r *http.Request) {
		if open || authorized(cfg, r) {
			next(w, r)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func authorized(cfg Config, r *http.Request) bool {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(h, "Bearer ")
	if cfg.Token != "" && token == cfg.Token {
		return true
	}
	if cfg.DB != nil {
		if _, err := auth.Parse(token); err == nil {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func appendAudit(db *gorm.DB, actor, action, target string) {
	if db == nil {
		return
	}
	entry := model.AuditEntry{Actor: actor, Action: action, Target: target, Timestamp: time.Now().UTC()}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("audit append failed action=%s: %v", action, err)
	}
}
