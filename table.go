package maskflow

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Unassigned is the object id of a detection that tracking has not placed in
// any track
const Unassigned = -1

// Detection is one object instance found in one frame
type Detection struct {
	// ID is unique across the table, dense from 0 in row order
	ID    int
	Frame int
	// ClassID indexes the model class names, ClassLabel is the resolved name
	ClassID    int
	ClassLabel string
	Score      float32
	// X, Y, Width and Height is the box in original image coordinates
	X      int
	Y      int
	Width  int
	Height int
	// ObjectID is the track the detection belongs to, Unassigned until the
	// table has been tracked
	ObjectID int
}

// DetectionTable is the ordered list of detections of a sequence
type DetectionTable struct {
	rows    []Detection
	tracked bool
}

// detectionColumns are the table columns before tracking
var detectionColumns = []string{
	"id", "frame", "class_id", "class_label", "score", "x", "y", "width", "height",
}

// NewDetectionTable returns a table holding rows.  The ids must match the row
// positions.
func NewDetectionTable(rows []Detection) (*DetectionTable, error) {

	for i, r := range rows {
		if r.ID != i {
			return nil, fmt.Errorf("row %d has id %d", i, r.ID)
		}

		if i > 0 && r.Frame < rows[i-1].Frame {
			return nil, fmt.Errorf("row %d frame %d precedes frame %d", i, r.Frame, rows[i-1].Frame)
		}
	}

	return &DetectionTable{rows: rows}, nil
}

// Len returns the number of rows
func (t *DetectionTable) Len() int {
	return len(t.rows)
}

// Row returns row i
func (t *DetectionTable) Row(i int) Detection {
	return t.rows[i]
}

// Rows returns a copy of all rows
func (t *DetectionTable) Rows() []Detection {
	out := make([]Detection, len(t.rows))
	copy(out, t.rows)
	return out
}

// Columns returns the column names, object_id is included once the table
// has been tracked
func (t *DetectionTable) Columns() []string {
	cols := append([]string{}, detectionColumns...)

	if t.tracked {
		cols = append(cols, "object_id")
	}

	return cols
}

// HasObjectIDs reports whether the object_id column has been added
func (t *DetectionTable) HasObjectIDs() bool {
	return t.tracked
}

// AddObjectIDColumn appends the object_id column with every row unassigned
func (t *DetectionTable) AddObjectIDColumn() {
	for i := range t.rows {
		t.rows[i].ObjectID = Unassigned
	}

	t.tracked = true
}

// SetObjectID sets the object id of the row whose detection id is id
func (t *DetectionTable) SetObjectID(id, objectID int) error {

	if id < 0 || id >= len(t.rows) || t.rows[id].ID != id {
		return fmt.Errorf("no detection with id %d", id)
	}

	if !t.tracked {
		t.AddObjectIDColumn()
	}

	t.rows[id].ObjectID = objectID

	return nil
}

// ObjectCount returns the number of distinct assigned object ids
func (t *DetectionTable) ObjectCount() int {
	seen := make(map[int]struct{})

	for _, r := range t.rows {
		if r.ObjectID != Unassigned {
			seen[r.ObjectID] = struct{}{}
		}
	}

	return len(seen)
}

// WriteCSV writes the table with a header row
func (t *DetectionTable) WriteCSV(w io.Writer) error {

	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	for _, r := range t.rows {
		rec := []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Frame),
			strconv.Itoa(r.ClassID),
			r.ClassLabel,
			strconv.FormatFloat(float64(r.Score), 'f', -1, 32),
			strconv.Itoa(r.X),
			strconv.Itoa(r.Y),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
		}

		if t.tracked {
			rec = append(rec, strconv.Itoa(r.ObjectID))
		}

		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("error writing row %d: %w", r.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// BuildTable flattens the per-frame postprocess outputs into one table.  Rows
// are emitted in frame order and, within a frame, in output order.  Boxes
// arrive as (row1, col1, row2, col2) and are emitted in image coordinates as
// x=col1, y=row1, width=col2-col1, height=row2-row1, which places each box
// over its mask plane.
func BuildTable(frames []*PostprocessOutput, label func(classID int) (string, error)) (*DetectionTable, error) {

	ids := NewIDGenerator()
	rows := make([]Detection, 0)

	for frame, out := range frames {

		n := out.Count()
		rois := out.ROIs.Int32s()
		scores := out.Scores.Float32s()
		classIDs := out.ClassIDs.Int32s()

		for i := 0; i < n; i++ {
			r1 := int(rois[i*4])
			c1 := int(rois[i*4+1])
			r2 := int(rois[i*4+2])
			c2 := int(rois[i*4+3])

			cid := int(classIDs[i])
			name, err := label(cid)

			if err != nil {
				return nil, fmt.Errorf("frame %d detection %d: %w", frame, i, err)
			}

			rows = append(rows, Detection{
				ID:         ids.GetNext(),
				Frame:      frame,
				ClassID:    cid,
				ClassLabel: name,
				Score:      scores[i],
				X:          c1,
				Y:          r1,
				Width:      c2 - c1,
				Height:     r2 - r1,
				ObjectID:   Unassigned,
			})
		}
	}

	return &DetectionTable{rows: rows}, nil
}
