package api

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field names by their json tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// sessionRequest is the body of POST /api/games/{gameId}/start.
type sessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

// completeRequest is the body of POST /api/games/{gameId}/complete.
type completeRequest struct {
	SessionID   string         `json:"session_id" validate:"required,uuid"`
	Score       *int           `json:"score" validate:"required,min=0,max=1000"`
	TimeSpent   *int           `json:"time_spent" validate:"required,min=0,max=86400"`
	HintsUsed   int            `json:"hints_used" validate:"min=0,max=100"`
	UserChoices map[string]any `json:"user_choices"`
	EventID     string         `json:"event_id" validate:"omitempty,max=128"`
}

// eventRequest is the body of POST /api/games/events.
type eventRequest struct {
	SessionID string         `json:"session_id" validate:"required,uuid"`
	GameID    string         `json:"game_id" validate:"required"`
	EventType string         `json:"event_type" validate:"required,oneof=game_started game_completed hint_used level_completed"`
	EventData map[string]any `json:"event_data"`
}
