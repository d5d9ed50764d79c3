package in

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	remotein "tether/internal/modules/remote/port/in"
	apperrors "tether/internal/platform/errors"
)

// NewHTTPRouter serves health, metrics and the read-only open sessions view
// used by the notification job.
func NewHTTPRouter(usecase remotein.Usecase, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/v1/owners/:owner/sessions/open", func(c *gin.Context) {
		sessions, err := usecase.OpenSessions(c.Request.Context(), c.Param("owner"))
		if err != nil {
			code := http.StatusInternalServerError
			if apperrors.KindOf(err) == apperrors.KindValidation {
				code = http.StatusBadRequest
			}
			c.JSON(code, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})
	return router
}
