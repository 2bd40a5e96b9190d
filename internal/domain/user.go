package domain

// User is the session-authenticated caller supplied by the auth middleware.
// Login and account approval live outside this core.
type User struct {
	ID            string
	Email         string
	Name          string
	ClinicAddress string
	Admin         bool
}
