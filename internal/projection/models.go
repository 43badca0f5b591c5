package projection

import "strconv"

// PlatformDocument is the denormalized, read-optimized copy of one platform:
// its courses with every enrolled user embedded. Stored in the "platforms"
// collection keyed by the decimal string of the platform id.
type PlatformDocument struct {
	ID      string        `json:"id" bson:"_id"`
	Name    string        `json:"name" bson:"name"`
	Courses []CourseEmbed `json:"courses" bson:"courses"`
}

// CourseEmbed is a course inlined into its platform document.
type CourseEmbed struct {
	ID            string      `json:"id" bson:"id"`
	Title         string      `json:"title" bson:"title"`
	EnrolledUsers []UserEmbed `json:"enrolledUsers" bson:"enrolledUsers"`
}

// UserEmbed is an enrolled user inlined into a course embed.
type UserEmbed struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

// DocumentID returns the document key for a platform id.
func DocumentID(platformID int64) string {
	return strconv.FormatInt(platformID, 10)
}

// Users returns every embedded user across all courses, in document order.
// A user enrolled in several courses appears once per course.
func (d *PlatformDocument) Users() []UserEmbed {
	var out []UserEmbed
	for _, c := range d.Courses {
		out = append(out, c.EnrolledUsers...)
	}
	return out
}
