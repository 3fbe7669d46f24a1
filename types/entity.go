package types

import "time"

// Entity carries record timestamps. Embed it in persisted models.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both timestamps with now.
func NewEntity() Entity {
	return NewEntityAt(time.Now())
}

// NewEntityAt stamps both timestamps with t in UTC.
func NewEntityAt(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch sets UpdatedAt to t in UTC.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}
