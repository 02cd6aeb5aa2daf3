package fleet

import "github.com/google/uuid"

// Ids are random so that two submissions in the same millisecond on the same
// device never collide. Timestamps stay the sort key, not the identity.

func NewUserID() UserID       { return UserID(uuid.NewString()) }
func NewEntryID() EntryID     { return EntryID(uuid.NewString()) }
func NewSessionID() SessionID { return SessionID(uuid.NewString()) }
func NewAuditID() string      { return uuid.NewString() }
