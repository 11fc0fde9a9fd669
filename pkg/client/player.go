package client

import (
	"maps"
	"time"
)

// Player is a Sphere player profile.
type Player struct {
	UID           string `json:"uid"`
	UserName      string `json:"name"`
	DisplayName   string `json:"realName"`
	ProfilePicURL string `json:"profilepicURL,omitempty"`
	// Email is only returned for the signed-in player.
	Email string `json:"email,omitempty"`
	// JoinDate is the day the player first joined this game, as yyyy-mm-dd.
	JoinDate string            `json:"joinDate,omitempty"`
	Level    *int              `json:"level,omitempty"`
	Score    *int64            `json:"score,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	IsBanned bool `json:"isBanned"`
	// BanStartTime is unix milliseconds.
	BanStartTime int64 `json:"banStartTime,omitempty"`
	// BanDurationHours is the ban length in hours.
	BanDurationHours int64  `json:"banDuration,omitempty"`
	BanReason        string `json:"banReason,omitempty"`
}

// Joined parses JoinDate.
func (p *Player) Joined() (time.Time, bool) {
	if p == nil || p.JoinDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, p.JoinDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BanStart returns when the current ban began.
func (p *Player) BanStart() (time.Time, bool) {
	if p == nil || p.BanStartTime == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(p.BanStartTime), true
}

func (p *Player) BanDuration() time.Duration {
	if p == nil {
		return 0
	}
	return time.Duration(p.BanDurationHours) * time.Hour
}

// Name returns the display name, falling back to the user name.
func (p *Player) Name() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserName
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	out := *p
	if p.Level != nil {
		v := *p.Level
		out.Level = &v
	}
	if p.Score != nil {
		v := *p.Score
		out.Score = &v
	}
	out.Metadata = maps.Clone(p.Metadata)
	return &out
}
