// Package course defines the domain model shared by ingestion, retrieval,
// and the tool layer. A Course is identified by its title, which is the
// cross-reference key everywhere else in the system.
package course

// Lesson belongs to exactly one course. LessonNumber is unique within
// that course.
type Lesson struct {
	LessonNumber int    `json:"lesson_number"`
	Title        string `json:"title"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

// Course is built once per ingested document and immutable afterwards.
type Course struct {
	Title      string   `json:"title"`
	CourseLink string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson returns the lesson with the given number, or nil.
func (c *Course) Lesson(number int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].LessonNumber == number {
			return &c.Lessons[i]
		}
	}
	return nil
}

// Chunk is one indexed slice of course text. ChunkIndex values for a
// course form a contiguous sequence starting at 0, continuing across
// lesson boundaries. LessonNumber is nil for preamble text that appears
// before the first lesson marker.
type Chunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
}
