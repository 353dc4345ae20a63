package model

type Staff struct {
	Base
	Email    string `db:"email" json:"email"`
	Name     string `db:"name" json:"name"`
	Role     string `db:"role" json:"role"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Discipline classifies the staff member's role into a therapy discipline.
func (s *Staff) Discipline() Discipline {
	return DisciplineOf(s.Role)
}

type StaffFilters struct {
	Discipline Discipline `form:"discipline"`
	ActiveOnly bool       `form:"active_only"`
}
