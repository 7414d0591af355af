package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Material is a file attached to a lesson. Materials have no identity of
// their own: the list lives inside the owning lesson row and is written as a
// unit with it.
type Material struct {
	Title          string    `json:"title"`
	ResourceURL    string    `json:"resource_url"`
	FileFormat     string    `json:"file_format,omitempty"`
	IsDownloadable bool      `json:"is_downloadable"`
	Order          int       `json:"order"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by,omitempty"`
}

// MaterialList stores the embedded materials of a lesson as a JSONB column.
type MaterialList []Material

// Value implements driver.Valuer.
func (m MaterialList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *MaterialList) Scan(src interface{}) error {
	if src == nil {
		*m = MaterialList{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("materials: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*m = MaterialList{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// NextOrder returns the 1-based order for a material appended to the list.
func (m MaterialList) NextOrder() int {
	max := 0
	for _, mat := range m {
		if mat.Order > max {
			max = mat.Order
		}
	}
	return max + 1
}

// Lesson is a single class inside a course. Order is a dense 1-based
// position within the parent course.
type Lesson struct {
	ID              string       `db:"id" json:"id"`
	CourseID        string       `db:"course_id" json:"course_id"`
	Title           string       `db:"title" json:"title"`
	Summary         *string      `db:"summary" json:"summary,omitempty"`
	DurationSeconds *int         `db:"duration_seconds" json:"duration_seconds,omitempty"`
	Order           int          `db:"position" json:"order"`
	IsPreview       bool         `db:"is_preview" json:"is_preview"`
	VideoURL        *string      `db:"video_url" json:"video_url,omitempty"`
	VideoID         *string      `db:"video_id" json:"video_id,omitempty"`
	Materials       MaterialList `db:"materials" json:"materials"`
	CreatedBy       string       `db:"created_by" json:"created_by"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}
