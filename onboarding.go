package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/core"
	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/onboarding"
	"lg/fitai-go-api/internal/syncer"
)

/* ─── Session endpoints ──────────────────────────────────────────────── */

// getOnboardingState returns the caller's current onboarding snapshot.
// GET /api/onboarding/state
func (h *Handler) getOnboardingState(c *gin.Context) {
	t := h.sessions.get(c, c.GetString("user_id"))
	c.JSON(http.StatusOK, t.Snapshot())
}

// putSection replaces one section and returns the snapshot with live metrics
// and validation. PUT /api/onboarding/sections/:section. Body: the section object.
func (h *Handler) putSection(c *gin.Context) {
	sec, err := onboarding.ParseSection(c.Param("section"))
	if err != nil {
		apiError(c, http.StatusNotFound, err.Error())
		return
	}
	payload, err := c.GetRawData()
	if err != nil || len(payload) == 0 {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	t := h.sessions.get(c, c.GetString("user_id"))
	snap, err := t.Apply(sec, payload)
	switch {
	case errors.Is(err, onboarding.ErrUnknownSection):
		apiError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, onboarding.ErrClosed):
		apiError(c, http.StatusConflict, "onboarding session closed")
		return
	case err != nil:
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, snap)
}

// completeSection marks a section complete.
// POST /api/onboarding/sections/:section/complete. Returns 400 with
// field_errors when the section is not ready.
func (h *Handler) completeSection(c *gin.Context) {
	sec, err := onboarding.ParseSection(c.Param("section"))
	if err != nil {
		apiError(c, http.StatusNotFound, err.Error())
		return
	}

	t := h.sessions.get(c, c.GetString("user_id"))
	snap, err := t.Complete(c, sec)
	var incomplete *onboarding.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		apiErrorWith(c, http.StatusBadRequest, "section incomplete", gin.H{"field_errors": incomplete.Fields})
		return
	case errors.Is(err, onboarding.ErrClosed):
		apiError(c, http.StatusConflict, "onboarding session closed")
		return
	case err != nil:
		apiError(c, http.StatusInternalServerError, "failed to complete section")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// restoreSession reloads the caller's sections from the local cache.
// POST /api/onboarding/restore
func (h *Handler) restoreSession(c *gin.Context) {
	t := h.sessions.get(c, c.GetString("user_id"))
	snap, err := t.Restore(c)
	if err != nil {
		log.Error().Err(err).Str("user_id", t.UserID()).Msg("restore")
		apiError(c, http.StatusInternalServerError, "failed to restore onboarding state")
		return
	}
	c.JSON(http.StatusOK, snap)
}

/* ─── Core endpoints ─────────────────────────────────────────────────── */

// requestSections returns the sections in the request body, or the caller's
// session sections when the body carries none. fromSession reports which.
func (h *Handler) requestSections(c *gin.Context) (s model.Sections, fromSession bool, ok bool) {
	var body sectionsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "invalid request body")
			return s, false, false
		}
	}
	if body.Sections != nil {
		return *body.Sections, false, true
	}
	snap := h.sessions.get(c, c.GetString("user_id")).Snapshot()
	return snap.Sections, true, true
}

// inputError writes a 400 for a missing height and weight.
func inputError(c *gin.Context, err error) bool {
	var ie *health.InputError
	if !errors.As(err, &ie) {
		return false
	}
	apiErrorWith(c, http.StatusBadRequest, ie.Error(), gin.H{"missing": ie.Missing})
	return true
}

// evaluate is a dry run returning the validation verdict; nothing is saved.
// POST /api/onboarding/evaluate. Body (optional): {"sections": {...}}.
func (h *Handler) evaluate(c *gin.Context) {
	s, _, ok := h.requestSections(c)
	if !ok {
		return
	}
	v, err := h.svc.Evaluate(s)
	if err != nil {
		if !inputError(c, err) {
			apiError(c, http.StatusInternalServerError, "failed to evaluate")
		}
		return
	}
	c.JSON(http.StatusOK, v)
}

// compute returns the computed metrics with their verdict; nothing is saved.
// POST /api/onboarding/compute. Body (optional): {"sections": {...}}.
func (h *Handler) compute(c *gin.Context) {
	s, _, ok := h.requestSections(c)
	if !ok {
		return
	}
	m, err := h.svc.Compute(s)
	if err != nil {
		if !inputError(c, err) {
			apiError(c, http.StatusInternalServerError, "failed to compute")
		}
		return
	}
	c.JSON(http.StatusOK, m)
}

// finalize computes, validates and syncs the sections.
// POST /api/onboarding/finalize. Body (optional): {"sections": {...}}; without
// it the caller's session is finalized and must be complete.
//
// 200 with the report (including partial failures), 400 for missing input,
// 409 for an incomplete session, 422 with the verdict for a blocked plan and
// 502 with the report for a critical persistence failure.
func (h *Handler) finalize(c *gin.Context) {
	userID := c.GetString("user_id")
	s, fromSession, ok := h.requestSections(c)
	if !ok {
		return
	}

	var t *onboarding.Tracker
	if fromSession {
		t = h.sessions.get(c, userID)
		if snap := t.Snapshot(); !snap.Complete() {
			apiErrorWith(c, http.StatusConflict, "onboarding incomplete", gin.H{"states": snap.States})
			return
		}
	}

	m, rep, err := h.svc.Finalize(c.Request.Context(), userID, s)
	if t != nil {
		t.RecordSync(rep, t.Documents())
	}

	var blocked *core.SafetyBlockedError
	var critical *syncer.CriticalFailureError
	switch {
	case inputError(c, err):
		return
	case errors.As(err, &blocked):
		apiErrorWith(c, http.StatusUnprocessableEntity, blocked.Error(), gin.H{"verdict": blocked.Verdict})
		return
	case errors.As(err, &critical):
		apiErrorWith(c, http.StatusBadGateway, critical.Error(), gin.H{"report": rep})
		return
	case err != nil:
		log.Error().Err(err).Str("user_id", userID).Msg("finalize")
		apiErrorWith(c, http.StatusInternalServerError, "failed to finalize", gin.H{"report": rep})
		return
	}

	resp := finalizeResponse{Metrics: m, Report: rep, Failed: rep.Failed()}
	if resp.Failed == nil {
		resp.Failed = []model.Entity{}
	}
	if t != nil {
		snap := t.Snapshot()
		resp.State = &snap
	}
	c.JSON(http.StatusOK, resp)
}

// resync re-sends the listed entities from the local cache.
// POST /api/onboarding/resync. Body: {"entities": ["diet_preferences", ...]}.
func (h *Handler) resync(c *gin.Context) {
	userID := c.GetString("user_id")
	var body resyncRequest
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Entities) == 0 {
		apiError(c, http.StatusBadRequest, "entities are required")
		return
	}

	rep, err := h.svc.Resync(c.Request.Context(), userID, body.Entities)
	if t, ok := h.sessions.lookup(userID); ok {
		t.RecordSync(rep, nil)
	}
	var critical *syncer.CriticalFailureError
	switch {
	case errors.Is(err, core.ErrNotCached):
		apiError(c, http.StatusNotFound, err.Error())
		return
	case errors.As(err, &critical):
		apiErrorWith(c, http.StatusBadGateway, critical.Error(), gin.H{"report": rep})
		return
	case err != nil && rep == nil:
		apiError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		apiErrorWith(c, http.StatusInternalServerError, "failed to resync", gin.H{"report": rep})
		return
	}
	c.JSON(http.StatusOK, rep)
}
