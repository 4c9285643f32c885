package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartmoney-tracker/internal/scheduler"
)

// triggerResponse is the shared envelope for manual trigger endpoints.
type triggerResponse struct {
	Success      bool               `json:"success"`
	Summary      *scheduler.Summary `json:"summary,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// runnerHandler triggers one scheduler tick and reports its summary. A
// tick already in flight surfaces as a 409.
func (s *Server) runnerHandler(runner *scheduler.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := runner.Trigger(c.Request.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, scheduler.ErrTickInProgress) {
				status = http.StatusConflict
			}
			c.JSON(status, triggerResponse{Success: false, ErrorMessage: err.Error()})
			return
		}
		c.JSON(http.StatusOK, triggerResponse{Success: true, Summary: &summary})
	}
}

type tradeSyncRequest struct {
	FullResync bool    `json:"fullResync"`
	WalletIDs  []int64 `json:"walletIds"`
}

// handleTradeSyncTrigger kicks one trade sync tick. With fullResync set
// the batch watermarks for the targeted pairs are cleared first, so the
// tick re-pulls their entire trade history.
func (s *Server) handleTradeSyncTrigger(c *gin.Context) {
	var req tradeSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, triggerResponse{Success: false, ErrorMessage: "invalid request body: " + err.Error()})
			return
		}
	}
	if len(req.WalletIDs) > 0 && !req.FullResync {
		c.JSON(http.StatusBadRequest, triggerResponse{Success: false, ErrorMessage: "walletIds requires fullResync"})
		return
	}

	if req.FullResync {
		cleared, err := s.repo.ClearBatchWatermarks(c.Request.Context(), req.WalletIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, triggerResponse{Success: false, ErrorMessage: err.Error()})
			return
		}
		s.log.Info().Int64("cleared", cleared).Msg("[API] Cleared batch watermarks for full resync")
	}

	s.runnerHandler(s.triggers.TradeSync)(c)
}

type walletPnlRequest struct {
	WalletIDs []int64 `json:"walletIds"`
	Periods   []int   `json:"periods"`
}

func (s *Server) handleWalletPnlTrigger(c *gin.Context) {
	var req walletPnlRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, triggerResponse{Success: false, ErrorMessage: "invalid request body: " + err.Error()})
			return
		}
	}
	for _, p := range req.Periods {
		if p <= 0 {
			c.JSON(http.StatusBadRequest, triggerResponse{Success: false, ErrorMessage: "periods must be positive"})
			return
		}
	}

	summary, err := s.triggers.WalletPnl.Run(c.Request.Context(), req.WalletIDs, req.Periods)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrTickInProgress) {
			status = http.StatusConflict
		}
		c.JSON(status, triggerResponse{Success: false, ErrorMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, triggerResponse{Success: true, Summary: &summary})
}

type leaderboardScanRequest struct {
	MinPnl float64 `json:"minPnl"`
}

func (s *Server) handleLeaderboardScan(c *gin.Context) {
	var req leaderboardScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, triggerResponse{Success: false, ErrorMessage: "invalid request body: " + err.Error()})
			return
		}
	}
	if req.MinPnl < 0 {
		c.JSON(http.StatusBadRequest, triggerResponse{Success: false, ErrorMessage: "minPnl must not be negative"})
		return
	}

	summary, err := s.triggers.Scanner.Run(c.Request.Context(), req.MinPnl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, triggerResponse{Success: false, ErrorMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, triggerResponse{Success: true, Summary: &summary})
}
