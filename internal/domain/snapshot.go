package domain

// FieldMap is an insertion-ordered field name to raw value mapping. Setting an
// existing key replaces its value but keeps its position.
type FieldMap struct {
	keys   []string
	values map[string]string
}

func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]string)}
}

// FieldMapOf builds a FieldMap from alternating key/value pairs.
func FieldMapOf(kv ...string) *FieldMap {
	m := NewFieldMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

func (m *FieldMap) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *FieldMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Merge copies every entry of other into m, in other's order.
func (m *FieldMap) Merge(other *FieldMap) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.Set(k, other.values[k])
	}
}

func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in key insertion order.
func (m *FieldMap) Values() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.values[k]
	}
	return out
}

// Map returns an unordered copy.
func (m *FieldMap) Map() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// CategoryReading is what one category contributed to a snapshot. Regular
// categories fill Fields; the multi-subcategory category fills Subcategories.
type CategoryReading struct {
	Fields        *FieldMap
	Subcategories map[string]*FieldMap
}

// Snapshot is every category reading captured from one content message.
type Snapshot map[string]CategoryReading

// SaveResult reports what one SaveSnapshot call persisted.
type SaveResult struct {
	Snapshots  int
	Categories int
}

// Row is one stored record as returned by queries. Values holds nil for NULL
// columns, float64 for REAL, int64 for INTEGER and string for TEXT.
type Row struct {
	ID        int64          `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Values    map[string]any `json:"values"`
}

// TableStats is the row count of one table.
type TableStats struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}
