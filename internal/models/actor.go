package models

import (
	"errors"
	"fmt"
)

// ActorKind distinguishes the two kinds of authenticated participants.
type ActorKind string

const (
	ActorBot   ActorKind = "bot"
	ActorHuman ActorKind = "human"
)

// ErrInvalidAuthorship is returned when a row carries both or neither author keys.
var ErrInvalidAuthorship = errors.New("exactly one of bot or user must author this record")

// Actor identifies who performed an action: either a bot or a human user, never both.
// Build one with BotActor or HumanActor.
type Actor struct {
	Kind ActorKind
	ID   string
}

// BotActor returns an Actor for the given bot id.
func BotActor(id string) Actor { return Actor{Kind: ActorBot, ID: id} }

// HumanActor returns an Actor for the given user id.
func HumanActor(id string) Actor { return Actor{Kind: ActorHuman, ID: id} }

// Valid reports whether the actor has a known kind and an id.
func (a Actor) Valid() bool {
	return a.ID != "" && (a.Kind == ActorBot || a.Kind == ActorHuman)
}

// IsBot reports whether the actor is a bot.
func (a Actor) IsBot() bool { return a.Kind == ActorBot }

// Key returns the identifier used for per-actor rate limiting, e.g. "bot:<id>".
func (a Actor) Key() string {
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}

// Columns maps the actor onto the exclusive bot_id / user_id foreign keys.
func (a Actor) Columns() (botID, userID *string) {
	id := a.ID
	switch a.Kind {
	case ActorBot:
		return &id, nil
	case ActorHuman:
		return nil, &id
	}
	return nil, nil
}

// ActorFromColumns rebuilds an Actor from persisted exclusive foreign keys.
func ActorFromColumns(botID, userID *string) (Actor, error) {
	switch {
	case botID != nil && userID == nil && *botID != "":
		return BotActor(*botID), nil
	case userID != nil && botID == nil && *userID != "":
		return HumanActor(*userID), nil
	}
	return Actor{}, ErrInvalidAuthorship
}

// checkAuthorship verifies the exclusive foreign keys agree with the kind label.
func checkAuthorship(botID, userID *string, kind ActorKind) error {
	actor, err := ActorFromColumns(botID, userID)
	if err != nil {
		return err
	}
	if actor.Kind != kind {
		return fmt.Errorf("%w: author type %q does not match keys", ErrInvalidAuthorship, kind)
	}
	return nil
}
