package registry

import "time"

// Record is one durable registry row. A record is prepared (pre-copied but
// not yet assigned to a client) exactly when both Created and IPHash are
// nil; grabbing sets both at once, so the two fields stay in lock-step.
type Record struct {
	// ID is assigned by the store's monotonic sequence; never reused.
	ID int64 `json:"id"`
	// Name is the unique random token used as lookup key and directory name.
	Name string `json:"name"`
	// Created is nil while the record is prepared.
	Created *time.Time `json:"created"`
	// IPHash is a truncated hash of the creator's network address; nil
	// exactly when Created is nil.
	IPHash *string `json:"ip_hash"`
}

// IsPrepared reports whether the record is pre-copied and unassigned.
func (r Record) IsPrepared() bool {
	return r.IPHash == nil
}

// Filter selects records in All, Count and Get queries. A nil Filter
// matches every record.
type Filter func(Record) bool

// Prepared matches records not yet assigned to a client.
func Prepared() Filter {
	return func(r Record) bool { return r.IsPrepared() }
}

// Active matches records assigned to a client.
func Active() Filter {
	return func(r Record) bool { return !r.IsPrepared() }
}

// WithName matches the record with the given name.
func WithName(name string) Filter {
	return func(r Record) bool { return r.Name == name }
}

// WithID matches the record with the given id.
func WithID(id int64) Filter {
	return func(r Record) bool { return r.ID == id }
}
