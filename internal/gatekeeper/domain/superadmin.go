package domain

// SuperAdminInit is the payload for establishing (or replacing) the SuperAdmin.
type SuperAdminInit struct {
	Email    string
	Name     string
	Password string
	Force    bool
}

// SuperAdminDeletion describes the outcome of removing a SuperAdmin holder so
// callers can force a re-login or point the operator at re-initialization.
type SuperAdminDeletion struct {
	UserID            string
	Email             string
	WasSelfDeletion   bool
	WasLastSuperAdmin bool
}
