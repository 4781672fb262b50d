package domain

// EntityKey implementations let every stored entity plug directly into
// store.Repository[T] without a wrapper type. Most entities key by their ID;
// Permission has no ID of its own and keys by its Resource instead (§3:
// "Permission... keyed uniquely by Resource").

func (u User) EntityKey() string             { return u.ID.String() }
func (g UserGroup) EntityKey() string         { return g.ID.String() }
func (a Account) EntityKey() string           { return a.ID.String() }
func (e AddressBookEntry) EntityKey() string  { return e.ID.String() }
func (a Asset) EntityKey() string             { return a.ID.String() }
func (t Transfer) EntityKey() string          { return t.ID.String() }
func (p Permission) EntityKey() string        { return p.Resource.Key() }
func (n NamedRule) EntityKey() string         { return n.ID.String() }
func (b PolicyBinding) EntityKey() string     { return b.ID.String() }
func (r Request) EntityKey() string           { return r.ID.String() }
