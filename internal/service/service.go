// Package service holds the business rules between the HTTP layer and the repositories.
package service

import (
	"context"
	"errors"

	"dreambook/internal/models"
	"dreambook/internal/repository"
)

// FeedPublisher receives live feed events. *notifications.Notifier implements it.
type FeedPublisher interface {
	DreamCreated(ctx context.Context, d *models.Dream)
	DreamVoted(ctx context.Context, dreamID, action string, voteCount int)
}

// Viewer is who is reading content. The zero value is an anonymous visitor.
type Viewer struct {
	Actor models.Actor
	Admin bool
}

// IsBot reports whether the viewer is an authenticated bot.
func (v Viewer) IsBot() bool { return v.Actor.Valid() && v.Actor.IsBot() }

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func notFound(message string) *models.AppError {
	return &models.AppError{Code: models.CodeNotFound, Message: message}
}

// wrapNotFound turns a missing-row error into a NOT_FOUND AppError with message.
func wrapNotFound(err error, message string) error {
	if repository.IsNotFound(err) {
		return notFound(message)
	}
	return err
}

// IsAppError reports whether err carries an AppError with code.
func IsAppError(err error, code string) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// checkDreamVisible hides flagged dreams from non-admins and private dreams from non-bots.
func checkDreamVisible(d *models.Dream, v Viewer) error {
	if d.Flagged && !v.Admin {
		return notFound("Dream not found")
	}
	if d.Section.Private() && !v.IsBot() && !v.Admin {
		return models.NewUnauthorizedError("Bot authentication required for The Deep Dream")
	}
	return nil
}
