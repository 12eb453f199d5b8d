package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/securehome/intake/internal/intake"
	"github.com/securehome/intake/internal/present"
)

// sessionResponse is the wire form of the view-model: the raw snapshot plus
// the rendered view when a verdict has settled.
type sessionResponse struct {
	SessionID string          `json:"sessionId"`
	Snapshot  intake.Snapshot `json:"snapshot"`
	View      *present.View   `json:"view,omitempty"`
}

func (s *Server) respondSession(c *gin.Context, status int, id string, sess *intake.Session) {
	snap := sess.Snapshot()
	resp := sessionResponse{SessionID: id, Snapshot: snap}

	// Render the verdict that should be on screen: the latest slot, or the
	// last assistant turn in history mode.
	if snap.Verdict != nil {
		v := present.Render(*snap.Verdict)
		resp.View = &v
	} else if n := len(snap.History); n > 0 && snap.History[n-1].Verdict != nil {
		v := present.Render(*snap.History[n-1].Verdict)
		resp.View = &v
	}

	c.JSON(status, resp)
}

func (s *Server) getSessionHandler(c *gin.Context) {
	id, sess := s.session(c)
	s.respondSession(c, http.StatusOK, id, sess)
}

func (s *Server) setIdentityHandler(c *gin.Context) {
	var req struct {
		Identity string `json:"identity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	id, sess := s.session(c)
	sess.SetIdentity(req.Identity)
	s.respondSession(c, http.StatusOK, id, sess)
}

func (s *Server) setDraftHandler(c *gin.Context) {
	var req struct {
		Draft string `json:"draft"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	id, sess := s.session(c)
	sess.SetDraft(req.Draft)
	s.respondSession(c, http.StatusOK, id, sess)
}

func (s *Server) demoIdentityHandler(c *gin.Context) {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	id, sess := s.session(c)
	sess.SelectDemoIdentity(req.Index)
	s.respondSession(c, http.StatusOK, id, sess)
}

func (s *Server) submitHandler(c *gin.Context) {
	id, sess := s.session(c)

	err := sess.Submit(c.Request.Context())
	switch {
	case errors.Is(err, intake.ErrSubmissionPending):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "submission_pending",
			"message": "A submission is already in progress.",
		})
		return
	case errors.Is(err, intake.ErrInputInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "invalid_input",
			"message": "Enter a valid email and a request before submitting.",
		})
		return
	case err != nil:
		// Submit only returns the sentinels above; anything else is a bug.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	// Push the settled snapshot to any connected chrome before responding.
	s.hub.BroadcastSnapshot(id, sess.Snapshot())
	s.respondSession(c, http.StatusOK, id, sess)
}

func (s *Server) identitiesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identities": s.cfg.DemoIdentities})
}
