package tests

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"call-tracker/shared/env"
	"call-tracker/shared/notifications"

	"gorm.io/gorm"
)

// RunStartupTests probes the pieces the service cannot run without and
// reports the result to the system-logs topic. Failures are logged, not
// fatal: the operator decides whether a degraded start is acceptable.
func RunStartupTests(db *gorm.DB) {
	log.Println("--- Running Startup Tests ---")
	failures := 0

	// Database reachability.
	if sqlDB, err := db.DB(); err != nil {
		log.Printf("FAIL: could not get underlying sql.DB: %v", err)
		failures++
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := sqlDB.PingContext(ctx)
		cancel()
		if err != nil {
			log.Printf("FAIL: database ping failed: %v", err)
			failures++
		} else {
			log.Println("PASS: database reachable.")
		}
	}

	// Local HTTP server readiness.
	healthURL := fmt.Sprintf("http://localhost:%s/api/v1/health", env.Port)
	probeClient := &http.Client{Timeout: 5 * time.Second}
	serverReady := false
	for i := 0; i < 10; i++ {
		resp, err := probeClient.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				serverReady = true
				break
			}
		}
		time.Sleep(2 * time.Second)
	}
	if serverReady {
		log.Println("PASS: health endpoint responding.")
	} else {
		log.Printf("FAIL: health endpoint %s not responding.", healthURL)
		failures++
	}

	// Provider reachability. A 4xx still proves the host is reachable.
	for name, url := range map[string]string{
		"dexscreener":   "https://api.dexscreener.com/latest/dex/tokens/ping",
		"geckoterminal": "https://api.geckoterminal.com/api/v2/networks",
	} {
		resp, err := probeClient.Get(url)
		if err != nil {
			log.Printf("FAIL: provider %s unreachable: %v", name, err)
			failures++
			continue
		}
		resp.Body.Close()
		log.Printf("PASS: provider %s reachable (status %d).", name, resp.StatusCode)
	}

	// Telegram wiring.
	if notifications.GetBotInstance() == nil {
		log.Println("FAIL: Telegram bot not initialized.")
		failures++
	} else {
		log.Println("PASS: Telegram bot initialized.")
	}

	if failures == 0 {
		log.Println("--- Startup Tests Passed ---")
		notifications.SendSystemLogMessage("✅ Startup checks passed\\. Service is healthy\\.")
	} else {
		log.Printf("--- Startup Tests Finished With %d Failure(s) ---", failures)
		notifications.SendSystemLogMessage(fmt.Sprintf("⚠️ Startup checks finished with %d failure\\(s\\)\\. Check logs\\.", failures))
	}
}
