package main

import (
	"time"

	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/onboarding"
	"lg/fitai-go-api/internal/syncer"
)

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
type user struct {
	ID        string     `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	AuthToken string     `json:"-" db:"auth_token"`
	Password  string     `json:"-" db:"password"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

/* ─── Request / response bodies ──────────────────────────────────────── */

// sectionsRequest carries a full set of sections for the stateless core
// endpoints. When absent, the caller's onboarding session is used.
type sectionsRequest struct {
	Sections *model.Sections `json:"sections"`
}

type resyncRequest struct {
	Entities []model.Entity `json:"entities"`
}

// finalizeResponse is returned for a successful or partially successful
// finalize. Failed lists the entities to pass to /onboarding/resync.
type finalizeResponse struct {
	Metrics model.ComputedMetrics `json:"metrics"`
	Report  *syncer.Report        `json:"report"`
	Failed  []model.Entity        `json:"failed"`
	State   *onboarding.Snapshot  `json:"state,omitempty"`
}
