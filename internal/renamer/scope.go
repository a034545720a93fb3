package renamer

// Scope is one lexical scope. Bindings map an original identifier to its
// scope-qualified allocation key; resolution walks the parent chain and
// stops at the first hit.
type Scope struct {
	id       int
	parent   *Scope
	bindings map[string]string
}

func (s *Scope) bind(name, key string) {
	s.bindings[name] = key
}

// resolve returns the allocation key for name, searching outward.
func (s *Scope) resolve(name string) (string, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if key, ok := sc.bindings[name]; ok {
			return key, true
		}
	}
	return "", false
}

// scopeArena creates scopes with stable ids. Ids qualify allocation keys,
// so two declarations of the same identifier in different scopes always
// get distinct keys.
type scopeArena struct {
	next int
}

func (a *scopeArena) new(parent *Scope) *Scope {
	a.next++
	return &Scope{id: a.next, parent: parent, bindings: make(map[string]string)}
}
