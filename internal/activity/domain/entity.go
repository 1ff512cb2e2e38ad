package activity

import (
	"cmp"
	"slices"
)

// Role distinguishes the two kinds of monitored entities.
type Role string

const (
	RoleWorker      Role = "worker"
	RoleWorkstation Role = "workstation"
)

// IsValid checks if the role is supported.
func (r Role) IsValid() bool {
	return r == RoleWorker || r == RoleWorkstation
}

// Entity is static reference data for a worker or a workstation.
type Entity struct {
	Role        Role   `json:"role"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
}

// SortEntities orders entities by id, compared byte-wise. This is the roster order.
func SortEntities(entities []Entity) {
	slices.SortFunc(entities, func(a, b Entity) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
