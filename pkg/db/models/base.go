package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller left it zero, so inserts do not
// depend on database-side uuid generation.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
