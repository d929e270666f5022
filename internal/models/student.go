package models

import "time"

// RegistryRole distinguishes students from tutors in the registry.
type RegistryRole string

const (
	RegistryRoleStudent RegistryRole = "student"
	RegistryRoleTutor   RegistryRole = "tutor"
)

// Student is a registry entry. Only digests of the institutional email and
// student ID are kept.
type Student struct {
	ID            string       `db:"id" json:"id"`
	WalletAddress string       `db:"wallet_address" json:"wallet_address"`
	EmailHash     string       `db:"email_hash" json:"email_hash"`
	StudentIDHash string       `db:"student_id_hash" json:"-"`
	RegistryHash  string       `db:"registry_hash" json:"registry_hash"`
	Role          RegistryRole `db:"role" json:"role"`
	RegisteredAt  time.Time    `db:"registered_at" json:"registered_at"`
}
