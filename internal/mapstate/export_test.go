package mapstate

import (
	"bytes"
	"io"
)

func (m *Map) isAttached(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[h]
	return ok
}

func (m *Map) attachedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (r *Registry) handleOf(id string) Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.layers[i].handle
	}
	return 0
}

func bytesFile(name string, data []byte) File {
	return File{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}
