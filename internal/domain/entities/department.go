package entities

// Department represents a hospital department with its own queue and
// per-day token sequence
type Department struct {
	Code                  string `json:"code" db:"code"`
	Name                  string `json:"name" db:"name"`
	ActiveDoctors         int    `json:"active_doctors" db:"active_doctors"`
	DefaultConsultMinutes int    `json:"default_consult_minutes" db:"default_consult_minutes"`
}

// Doctor represents a member of a department's roster
type Doctor struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"name" db:"name"`
	Department     string  `json:"department" db:"department"`
	Specialization string  `json:"specialization,omitempty" db:"specialization"`
	Available      bool    `json:"available" db:"available"`
	CurrentToken   *string `json:"current_token,omitempty" db:"current_token"`
}

// Assign marks the doctor busy with the given patient token
func (d *Doctor) Assign(token string) {
	d.Available = false
	d.CurrentToken = &token
}

// Release frees the doctor for the next patient
func (d *Doctor) Release() {
	d.Available = true
	d.CurrentToken = nil
}
