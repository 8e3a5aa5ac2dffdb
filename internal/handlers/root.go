package handlers

import (
	"net/http"
	"time"

	"seolab-api/internal/services"
)

// Root serves the service banner.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "SEO Lab API",
		"version":     services.Version,
		"status":      "healthy",
		"description": "AI-powered APIs for SEO content generation",
		"apis": map[string]string{
			"seo":    "/api/seo",
			"health": "/health",
			"jobs":   "/api/seo/jobs",
		},
	})
}

// Health reports liveness. It never touches dependencies.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]string{
			"seo_lab": "available",
		},
	})
}
