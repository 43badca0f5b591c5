package models

// Platform is the aggregate root of the projection. It owns its courses.
type Platform struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Courses []Course `json:"courses"`
}

// Course belongs to at most one platform. A nil PlatformID means the course is
// not part of any platform document.
type Course struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PlatformID *int64 `json:"platformId,omitempty"`
}

// HasPlatform reports whether the course is owned by a platform.
func (c Course) HasPlatform() bool { return c.PlatformID != nil }

// User is an enrollee. Courses holds the user's current enrollments, each with
// its owning platform when loaded from the record store.
type User struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Courses []Course `json:"courses"`
}

// CourseIDs returns the ids of the given courses in order.
func CourseIDs(courses []Course) []int64 {
	ids := make([]int64, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids
}

// Int64Ptr is a small helper for optional ids.
func Int64Ptr(v int64) *int64 { return &v }
