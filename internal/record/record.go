// Package record maps in-memory entities onto table rows. An entity embeds
// Record, which holds its row id, raw column values, and a dirty flag; a
// Schema describes the entity's columns and moves values between the two
// sides.
package record

// Record is the mapped state embedded in every entity. The zero value is a
// new, unsaved, dirty record.
type Record struct {
	id     int64
	hasID  bool
	clean  bool
	values map[string]any
}

// Mapped is implemented by entities that embed Record.
type Mapped interface {
	Mapped() *Record
}

// Mapped returns r itself so that any type embedding Record satisfies the
// Mapped interface.
func (r *Record) Mapped() *Record {
	return r
}

// ID returns the row id and whether one has been assigned.
func (r *Record) ID() (int64, bool) {
	return r.id, r.hasID
}

// SetID assigns the row id. It does not change the dirty flag.
func (r *Record) SetID(id int64) {
	r.id = id
	r.hasID = true
}

// Dirty reports whether the record has changes not yet persisted.
func (r *Record) Dirty() bool {
	return !r.clean
}

// Set stores the raw value for a column and marks the record dirty.
func (r *Record) Set(name string, v any) {
	r.put(name, v)
	r.clean = false
}

// Value returns the raw value for a column.
func (r *Record) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r *Record) put(name string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.values[name] = v
}
