package session

// Session is the server-side state of one client. It is not safe for
// concurrent use; a request owns its session handle.
type Session struct {
	id        string
	values    map[string]string
	lists     map[string][]string
	createdAt int64
	dirty     bool
	destroyed bool
}

func newSession(id string, createdAt int64) *Session {
	return &Session{
		id:        id,
		values:    map[string]string{},
		lists:     map[string][]string{},
		createdAt: createdAt,
		dirty:     true,
	}
}

// ID returns the current session id. It changes after [Store.Regenerate].
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the unix second at which the session was first created.
func (s *Session) CreatedAt() int64 {
	return s.createdAt
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Add appends value to the list stored under key.
func (s *Session) Add(key, value string) {
	s.lists[key] = append(s.lists[key], value)
	s.dirty = true
}

// Take returns the list stored under key and removes it.
func (s *Session) Take(key string) []string {
	out := s.lists[key]
	if len(out) == 0 {
		return nil
	}
	delete(s.lists, key)
	s.dirty = true
	return out
}

// Reset removes every value and list while keeping the session id.
func (s *Session) Reset() {
	if len(s.values) == 0 && len(s.lists) == 0 {
		return
	}
	s.values = map[string]string{}
	s.lists = map[string][]string{}
	s.dirty = true
}

// Destroyed reports whether the session was destroyed during this request.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// Dirty reports whether the session changed since it was loaded or saved.
func (s *Session) Dirty() bool {
	return s.dirty
}
