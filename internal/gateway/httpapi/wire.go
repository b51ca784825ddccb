package httpapi

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/akarev/keepup/internal/model"
)

// Wire DTOs for the /v1 API. Derived streak fields never cross the wire; the
// client recomputes them locally.

type entityDTO struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind"`
	Color       string    `json:"color,omitempty"`
	Severity    int       `json:"severity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
}

type eventDTO struct {
	ID              string    `json:"id,omitempty"`
	EntityIDs       []string  `json:"entity_ids"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Note            string    `json:"note,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Mood            string    `json:"mood,omitempty"`
}

func fromEntity(e model.Entity) entityDTO {
	d := entityDTO{
		Name:        e.Name,
		Description: e.Description,
		Kind:        string(e.Kind),
		Color:       e.Color,
		Severity:    e.Severity,
		CreatedAt:   e.CreatedAt,
		Active:      e.Active,
	}
	// Pending entities carry a local temporary id the backend must not see.
	if !e.Pending && e.ID != uuid.Nil {
		d.ID = e.ID.String()
	}
	return d
}

func (d entityDTO) toModel() (model.Entity, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return model.Entity{}, fmt.Errorf("bad entity id %q: %w", d.ID, err)
	}
	return model.Entity{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Kind:        model.Kind(d.Kind),
		Color:       d.Color,
		Severity:    d.Severity,
		CreatedAt:   d.CreatedAt,
		Active:      d.Active,
	}, nil
}

func fromEvent(ev model.Event) eventDTO {
	d := eventDTO{
		EntityIDs:       make([]string, 0, len(ev.EntityIDs)),
		Timestamp:       ev.Timestamp,
		DurationMinutes: ev.DurationMinutes,
		Note:            ev.Note,
		Tags:            ev.Tags,
		Mood:            ev.Mood,
	}
	for _, id := range ev.EntityIDs {
		d.EntityIDs = append(d.EntityIDs, id.String())
	}
	return d
}

func (d eventDTO) toModel() (model.Event, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return model.Event{}, fmt.Errorf("bad event id %q: %w", d.ID, err)
	}
	ev := model.Event{
		ID:              id,
		Timestamp:       d.Timestamp,
		DurationMinutes: d.DurationMinutes,
		Note:            d.Note,
		Tags:            d.Tags,
		Mood:            d.Mood,
	}
	for _, s := range d.EntityIDs {
		eid, err := uuid.FromString(s)
		if err != nil {
			return model.Event{}, fmt.Errorf("bad event entity id %q: %w", s, err)
		}
		ev.EntityIDs = append(ev.EntityIDs, eid)
	}
	return ev, nil
}
