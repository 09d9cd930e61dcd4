package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"cardroom.io/server/game"
	"cardroom.io/server/nats"
	"cardroom.io/server/stats"
	"cardroom.io/server/util"
	"cardroom.io/server/variants"
)

var restLogger = log.With().Str("logger_name", "rest::rest").Logger()
var tableManager *nats.TableManager
var leaderboard *stats.Leaderboard

type appError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sessionStatus struct {
	SessionCode string `json:"sessionCode"`
	Variant     string `json:"variant"`
	Seats       int    `json:"seats"`
}

// RunRestServer blocks serving the operational surface. leaders may be nil
// when the leaderboard is disabled.
func RunRestServer(tm *nats.TableManager, leaders *stats.Leaderboard) {
	tableManager = tm
	leaderboard = leaders

	r := gin.Default()

	r.POST("/new-session", newSession)
	r.GET("/active-sessions", activeSessions)
	r.GET("/leaderboard", topPlayers)
	r.GET("/ready", ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Run(fmt.Sprintf(":%d", util.Env.GetRestPort()))
}

func ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func newSession(c *gin.Context) {
	var config game.SessionConfig
	if err := c.BindJSON(&config); err != nil {
		restLogger.Error().Msgf("Failed to parse session configuration. Error: %v", err)
		c.IndentedJSON(http.StatusBadRequest, appError{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		})
		return
	}

	if config.SessionCode == "" {
		config.SessionCode = strings.ToUpper(uuid.NewString()[:8])
	}

	rules, strategy, err := variants.New(config.Variant)
	if err != nil {
		restLogger.Error().Msgf("Rejecting new-session request: %v", err)
		c.IndentedJSON(http.StatusBadRequest, appError{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		})
		return
	}

	session, err := tableManager.NewTable(&config, rules, strategy)
	if err != nil {
		restLogger.Error().Msgf("Unable to create session %s: %v", config.SessionCode, err)
		c.IndentedJSON(http.StatusInternalServerError, appError{
			Code:    http.StatusInternalServerError,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, sessionStatus{
		SessionCode: config.SessionCode,
		Variant:     config.Variant,
		Seats:       session.NumSeats(),
	})
}

func activeSessions(c *gin.Context) {
	codes := tableManager.Manager().ActiveSessionCodes()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(codes),
		"sessions": codes,
	})
}

func topPlayers(c *gin.Context) {
	if leaderboard == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, appError{
			Code:    http.StatusServiceUnavailable,
			Message: "Leaderboard is disabled",
		})
		return
	}

	count := 10
	if countStr := c.Query("count"); countStr != "" {
		parsed, err := strconv.Atoi(countStr)
		if err != nil || parsed <= 0 {
			c.String(http.StatusBadRequest, "Failed to parse count [%s] from leaderboard endpoint.", countStr)
			return
		}
		count = parsed
	}

	entries, err := leaderboard.Top(c.Request.Context(), count)
	if err != nil {
		restLogger.Error().Msgf("Unable to read leaderboard: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, appError{
			Code:    http.StatusInternalServerError,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, entries)
}
