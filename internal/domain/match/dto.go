package match

type CreateRequest struct {
	Title              string `json:"title" validate:"required,min=5,max=200"`
	Description        string `json:"description" validate:"max=500"`
	MatchDate          string `json:"match_date" validate:"required,isodate"`
	PreferredTime      string `json:"preferred_time" validate:"required,max=50"`
	StartTime          string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime            string `json:"end_time" validate:"omitempty,hhmm"`
	PreferredArea      string `json:"preferred_area" validate:"required,max=100"`
	CricketBoxID       string `json:"cricket_box_id"`
	PlayersNeeded      int    `json:"players_needed" validate:"required,min=1,max=11"`
	SkillLevelRequired string `json:"skill_level_required" validate:"omitempty,oneof=beginner intermediate advanced"`
}

// UpdateRequest carries the fields the creator may change on an open
// request. Nil fields are left as they are.
type UpdateRequest struct {
	Title              *string `json:"title" validate:"omitempty,min=5,max=200"`
	Description        *string `json:"description" validate:"omitempty,max=500"`
	MatchDate          *string `json:"match_date" validate:"omitempty,isodate"`
	PreferredTime      *string `json:"preferred_time" validate:"omitempty,max=50"`
	StartTime          *string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime            *string `json:"end_time" validate:"omitempty,hhmm"`
	PreferredArea      *string `json:"preferred_area" validate:"omitempty,max=100"`
	PlayersNeeded      *int    `json:"players_needed" validate:"omitempty,min=1,max=11"`
	SkillLevelRequired *string `json:"skill_level_required" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type JoinMatchRequest struct {
	Message string `json:"message" validate:"max=300"`
}
