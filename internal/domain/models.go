package domain

// AllModels lists the tables in migration order.
func AllModels() []any {
	return []any{
		&User{},
		&SupervisorProfile{},
		&Project{},
		&Group{},
		&StudentProfile{},
	}
}
