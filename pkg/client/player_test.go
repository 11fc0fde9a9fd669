package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlayer_Helpers(t *testing.T) {
	level := 3
	p := &Player{
		UID:              "player-1",
		UserName:         "nova",
		JoinDate:         "not-a-date",
		Level:            &level,
		Metadata:         map[string]string{"k": "v"},
		IsBanned:         true,
		BanStartTime:     1_700_000_000_000,
		BanDurationHours: 48,
	}

	assert.Equal(t, "nova", p.Name(), "falls back to user name")

	_, ok := p.Joined()
	assert.False(t, ok)

	start, ok := p.BanStart()
	assert.True(t, ok)
	assert.Equal(t, int64(1_700_000_000), start.Unix())
	assert.Equal(t, 48*time.Hour, p.BanDuration())

	clone := p.Clone()
	assert.Equal(t, p, clone)
	*clone.Level = 9
	clone.Metadata["k"] = "changed"
	assert.Equal(t, 3, *p.Level)
	assert.Equal(t, "v", p.Metadata["k"])

	var nilPlayer *Player
	assert.Empty(t, nilPlayer.Name())
	assert.Nil(t, nilPlayer.Clone())
}
