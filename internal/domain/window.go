package domain

import "time"

// ActiveWindow bounds when a promotional rule is in effect. The start is
// inclusive and the end exclusive; a nil bound leaves that side open.
type ActiveWindow struct {
	StartsAt *time.Time
	EndsAt   *time.Time
}

// IsActiveAt reports whether now falls inside the window. Activity is always
// evaluated against the supplied instant, never cached.
func (w ActiveWindow) IsActiveAt(now time.Time) bool {
	if w.StartsAt != nil && now.Before(*w.StartsAt) {
		return false
	}
	if w.EndsAt != nil && !now.Before(*w.EndsAt) {
		return false
	}
	return true
}

// DeletedBySystem marks soft deletes performed by automated maintenance
// rather than an operator.
const DeletedBySystem = "system"

// Auditable is the shared soft-delete overlay. A record with DeletedAt set is
// hidden from normal reads but kept for history and reporting.
type Auditable struct {
	DeletedAt      *time.Time
	DeletedBy      string
	DeletionReason string
}

// IsDeleted reports whether the record carries a soft-delete marker.
func (a Auditable) IsDeleted() bool {
	return a.DeletedAt != nil
}

// MarkDeleted stamps the overlay. System deletes carry the DeletedBySystem
// actor and may omit the reason; manual deletes must supply one, which the
// service layer enforces.
func (a *Auditable) MarkDeleted(at time.Time, by, reason string) {
	t := at
	a.DeletedAt = &t
	a.DeletedBy = by
	a.DeletionReason = reason
}
