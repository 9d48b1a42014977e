package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/shared/config"
	"github.com/radieske/race-wager-engine/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New("api-gateway", cfg.Env)
	defer log.Sync()

	// targets
	wagerURL := os.Getenv("WAGER_URL")
	if wagerURL == "" {
		wagerURL = "http://localhost:8084"
	}
	wager := rp(wagerURL)

	mux := http.NewServeMux()

	// Toda a API pública vive no wager-service; o gateway só tira o prefixo
	// /api e aplica CORS. Fica como ponto único pra auth/rate limit depois.
	mux.Handle("/api/accounts/", http.StripPrefix("/api", wager))
	mux.Handle("/api/accounts", http.StripPrefix("/api", wager))
	mux.Handle("/api/wagers/", http.StripPrefix("/api", wager))
	mux.Handle("/api/wagers", http.StripPrefix("/api", wager))
	mux.Handle("/api/funds/", http.StripPrefix("/api", wager))
	mux.Handle("/api/admin/", http.StripPrefix("/api", wager))

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Account-Id")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
