package match

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

var statusTransitions = map[Status][]Status{
	StatusOpen: {StatusClosed, StatusCancelled, StatusExpired},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range statusTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type JoinStatus string

const (
	JoinPending  JoinStatus = "pending"
	JoinAccepted JoinStatus = "accepted"
	JoinRejected JoinStatus = "rejected"
)

// JoinRequest is a player's ask to fill a spot. Name, phone, photo and
// skill are copied from the player when the request is made.
type JoinRequest struct {
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name"`
	UserPhone   string     `json:"user_phone,omitempty"`
	UserPhoto   string     `json:"user_photo,omitempty"`
	SkillLevel  string     `json:"skill_level,omitempty"`
	Message     string     `json:"message,omitempty"`
	Status      JoinStatus `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// JoinRequests is stored as a JSON text column.
type JoinRequests []JoinRequest

func (j JoinRequests) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	return string(b), err
}

func (j *JoinRequests) Scan(src any) error {
	return scanJSON(src, j)
}

func (JoinRequests) GormDataType() string {
	return "text"
}

// PlayerIDs is stored as a JSON text column.
type PlayerIDs []string

func (p PlayerIDs) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	return string(b), err
}

func (p *PlayerIDs) Scan(src any) error {
	return scanJSON(src, p)
}

func (PlayerIDs) GormDataType() string {
	return "text"
}

func (p PlayerIDs) Contains(id string) bool {
	for _, v := range p {
		if v == id {
			return true
		}
	}
	return false
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// MatchRequest is a call for players to fill a planned match. Version
// guards every read-modify-write of the row.
type MatchRequest struct {
	ID string `json:"id" gorm:"primaryKey;type:varchar(36)"`

	CreatorID         string `json:"creator_id" gorm:"index;type:varchar(36);not null"`
	CreatorName       string `json:"creator_name"`
	CreatorPhone      string `json:"creator_phone,omitempty"`
	CreatorPhoto      string `json:"creator_photo,omitempty"`
	CreatorSkillLevel string `json:"creator_skill_level,omitempty"`

	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description,omitempty"`

	MatchDate     string `json:"match_date" gorm:"type:varchar(10);index;not null"`
	PreferredTime string `json:"preferred_time"`
	StartTime     string `json:"start_time,omitempty" gorm:"type:varchar(5)"`
	EndTime       string `json:"end_time,omitempty" gorm:"type:varchar(5)"`

	PreferredArea  string `json:"preferred_area" gorm:"index"`
	CricketBoxID   string `json:"cricket_box_id,omitempty" gorm:"type:varchar(36)"`
	CricketBoxName string `json:"cricket_box_name,omitempty"`

	PlayersNeeded      int    `json:"players_needed"`
	PlayersJoined      int    `json:"players_joined"`
	SkillLevelRequired string `json:"skill_level_required,omitempty"`

	JoinRequests    JoinRequests `json:"join_requests"`
	AcceptedPlayers PlayerIDs    `json:"accepted_players"`

	Status     Status  `json:"status" gorm:"type:varchar(16);index;not null"`
	ChatRoomID string  `json:"chat_room_id,omitempty"`
	BookingID  *string `json:"booking_id,omitempty" gorm:"type:varchar(36)"`

	Version   int64     `json:"-" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MatchRequest) TableName() string {
	return "match_requests"
}

// Participant is the snapshot of a player taken when they ask to join.
type Participant struct {
	ID         string
	Name       string
	Phone      string
	Photo      string
	SkillLevel string
}

func (m *MatchRequest) findJoin(userID string) int {
	for i, jr := range m.JoinRequests {
		if jr.UserID == userID {
			return i
		}
	}
	return -1
}

// Join adds a pending join request for p. A previously rejected request
// is replaced.
func (m *MatchRequest) Join(p Participant, message string, now time.Time) error {
	if m.Status != StatusOpen {
		return ErrNotOpen
	}
	if p.ID == m.CreatorID {
		return ErrOwnRequest
	}
	if i := m.findJoin(p.ID); i >= 0 {
		switch m.JoinRequests[i].Status {
		case JoinPending:
			return ErrAlreadyRequested
		case JoinAccepted:
			return ErrAlreadyAccepted
		}
		m.JoinRequests = append(m.JoinRequests[:i], m.JoinRequests[i+1:]...)
	}
	m.JoinRequests = append(m.JoinRequests, JoinRequest{
		UserID:      p.ID,
		UserName:    p.Name,
		UserPhone:   p.Phone,
		UserPhoto:   p.Photo,
		SkillLevel:  p.SkillLevel,
		Message:     message,
		Status:      JoinPending,
		RequestedAt: now,
	})
	return nil
}

// Accept admits a pending player. It reports whether this acceptance
// filled the last spot and closed the request.
func (m *MatchRequest) Accept(userID string, now time.Time) (bool, error) {
	if m.Status != StatusOpen {
		return false, ErrNotOpen
	}
	i := m.findJoin(userID)
	if i < 0 {
		return false, ErrJoinNotFound
	}
	if m.JoinRequests[i].Status != JoinPending {
		return false, ErrJoinNotPending
	}
	if len(m.AcceptedPlayers) >= m.PlayersNeeded {
		return false, ErrFull
	}

	m.JoinRequests[i].Status = JoinAccepted
	m.JoinRequests[i].RespondedAt = &now
	if !m.AcceptedPlayers.Contains(userID) {
		m.AcceptedPlayers = append(m.AcceptedPlayers, userID)
	}
	m.PlayersJoined = len(m.AcceptedPlayers)

	if m.PlayersJoined == m.PlayersNeeded {
		m.Status = StatusClosed
		return true, nil
	}
	return false, nil
}

func (m *MatchRequest) Reject(userID string, now time.Time) error {
	i := m.findJoin(userID)
	if i < 0 {
		return ErrJoinNotFound
	}
	if m.JoinRequests[i].Status != JoinPending {
		return ErrJoinNotPending
	}
	m.JoinRequests[i].Status = JoinRejected
	m.JoinRequests[i].RespondedAt = &now
	return nil
}

// Withdraw removes the player's join request. An accepted player also
// gives up their spot; a closed request reopens only when reopen is set.
func (m *MatchRequest) Withdraw(userID string, reopen bool) (wasAccepted, reopened bool, err error) {
	if m.Status == StatusCancelled || m.Status == StatusExpired {
		return false, false, ErrNotOpen
	}
	i := m.findJoin(userID)
	if i < 0 {
		return false, false, ErrJoinNotFound
	}
	wasAccepted = m.JoinRequests[i].Status == JoinAccepted
	m.JoinRequests = append(m.JoinRequests[:i], m.JoinRequests[i+1:]...)

	if wasAccepted {
		kept := m.AcceptedPlayers[:0]
		for _, id := range m.AcceptedPlayers {
			if id != userID {
				kept = append(kept, id)
			}
		}
		m.AcceptedPlayers = kept
		m.PlayersJoined = len(m.AcceptedPlayers)
		if reopen && m.Status == StatusClosed {
			m.Status = StatusOpen
			reopened = true
		}
	}
	return wasAccepted, reopened, nil
}

// Apply copies the set fields of req onto an open request. Lowering
// players needed to the number already accepted closes it.
func (m *MatchRequest) Apply(req UpdateRequest) (closed bool, err error) {
	if m.Status != StatusOpen {
		return false, ErrNotOpen
	}
	if req.PlayersNeeded != nil && *req.PlayersNeeded < m.PlayersJoined {
		return false, ErrBelowJoined
	}
	start, end := m.StartTime, m.EndTime
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if (start == "") != (end == "") || (start != "" && start >= end) {
		return false, ErrInvalidTimeWindow
	}
	m.StartTime, m.EndTime = start, end

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&m.Title, req.Title)
	set(&m.Description, req.Description)
	set(&m.MatchDate, req.MatchDate)
	set(&m.PreferredTime, req.PreferredTime)
	set(&m.PreferredArea, req.PreferredArea)
	set(&m.SkillLevelRequired, req.SkillLevelRequired)
	if req.PlayersNeeded != nil {
		m.PlayersNeeded = *req.PlayersNeeded
	}

	if m.PlayersJoined == m.PlayersNeeded {
		m.Status = StatusClosed
		return true, nil
	}
	return false, nil
}

// IsParticipant reports whether userID is the creator or an accepted player.
func (m *MatchRequest) IsParticipant(userID string) bool {
	return m.CreatorID == userID || m.AcceptedPlayers.Contains(userID)
}

// HasJoinRequest reports whether userID has any join request on m.
func (m *MatchRequest) HasJoinRequest(userID string) bool {
	return m.findJoin(userID) >= 0
}
