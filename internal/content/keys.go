package content

// PageKey and SectionKey are opaque handles into a Library. Nothing outside
// this package should construct one directly or depend on its underlying
// representation; Library is the sole owner of the graph these keys index
// into, which is what lets pages, sections, and taxonomy terms reference
// each other without pointer cycles.
type PageKey struct{ id int }

// SectionKey identifies a Section within a Library.
type SectionKey struct{ id int }

// Valid reports whether k refers to a real entry (the zero key is invalid).
func (k PageKey) Valid() bool { return k.id != 0 }

// Valid reports whether k refers to a real entry (the zero key is invalid).
func (k SectionKey) Valid() bool { return k.id != 0 }
