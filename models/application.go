package models

import (
	"fmt"
	"time"

	"github.com/korjavin/intakebot/errx"
)

// Status is the review state of an application
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDenied   Status = "denied"
)

// Action is a staff decision
type Action string

const (
	ActionAccept Action = "accept"
	ActionDeny   Action = "deny"
)

// Status returns the status an action resolves to
func (a Action) Status() Status {
	if a == ActionAccept {
		return StatusAccepted
	}
	return StatusDenied
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionDeny
}

// Answer pairs a question text with the applicant's reply
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MessageRef points at the staff-facing post of an application
type MessageRef struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

// IsZero reports whether the reference is unset
func (r MessageRef) IsZero() bool {
	return r.ChannelID == "" || r.MessageID == ""
}

// Link builds a Discord deep link to the message
func (r MessageRef) Link(guildID string) string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, r.ChannelID, r.MessageID)
}

// Application is a submitted, persisted application record
type Application struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	UserDisplayName string     `json:"userTag"`
	Category        string     `json:"category"`
	Answers         []Answer   `json:"answers"`
	Status          Status     `json:"status"`
	Timestamp       time.Time  `json:"timestamp"`
	ReviewedBy      string     `json:"reviewedBy,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Message         MessageRef `json:"message"`
}

// IsPending reports whether the application awaits review
func (a *Application) IsPending() bool {
	return a.Status == StatusPending
}

// Resolve applies a staff decision. A record leaves Pending exactly once.
func (a *Application) Resolve(action Action, reviewerID, reason string) error {
	if !action.Valid() {
		return errx.New(errx.TypeValidation, "INVALID_ACTION", "unknown review action").
			WithDetail("action", action)
	}
	if !a.IsPending() {
		return errx.New(errx.TypeAlreadyReviewed, "ALREADY_REVIEWED", "application was already reviewed").
			WithDetail("application_id", a.ID).
			WithDetail("status", a.Status)
	}
	a.Status = action.Status()
	a.ReviewedBy = reviewerID
	a.Reason = reason
	return nil
}

// FindApplication returns the index of the application with id, or -1
func FindApplication(apps []Application, id string) int {
	for i := range apps {
		if apps[i].ID == id {
			return i
		}
	}
	return -1
}
