package artifact

// Map is the read-only set of artifacts produced by one compilation, keyed
// by unit name. Names are reported in the order the toolchain emitted them.
type Map struct {
	names []string
	data  map[string][]byte
}

// NewMap builds a Map from the given names and contents. Names missing from
// data are ignored. It is mostly useful for tests and for callers that carry
// artifacts between processes.
func NewMap(names []string, data map[string][]byte) *Map {
	m := &Map{data: make(map[string][]byte, len(names))}
	for _, name := range names {
		b, ok := data[name]
		if !ok {
			continue
		}
		if _, dup := m.data[name]; dup {
			continue
		}
		m.names = append(m.names, name)
		m.data[name] = b
	}
	return m
}

// Len returns the number of artifacts.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Names returns the artifact names in emission order.
func (m *Map) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// Get returns the contents of the named artifact. The returned slice must
// not be modified.
func (m *Map) Get(name string) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	b, ok := m.data[name]
	return b, ok
}

// Has reports whether the map holds the named artifact.
func (m *Map) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Size returns the total number of bytes across all artifacts.
func (m *Map) Size() int {
	if m == nil {
		return 0
	}
	var n int
	for _, b := range m.data {
		n += len(b)
	}
	return n
}
