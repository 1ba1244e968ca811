package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusSent, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusSent, StatusFailed, false},
		{StatusSent, StatusPending, false},
		{StatusFailed, StatusSent, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseChannels(t *testing.T) {
	t.Run("round trip keeps order", func(t *testing.T) {
		for _, raw := range [][]string{
			{"email"},
			{"push", "email"},
			{"whatsapp", "sms", "push", "email"},
		} {
			cs, err := ParseChannels(raw)
			require.NoError(t, err)

			again, err := ParseChannels(cs.Strings())
			require.NoError(t, err)
			assert.Equal(t, cs, again)
			assert.Equal(t, raw, cs.Strings())
		}
	})

	t.Run("duplicates collapse to first occurrence", func(t *testing.T) {
		cs, err := ParseChannels([]string{"sms", "email", "SMS", " email "})
		require.NoError(t, err)
		assert.Equal(t, ChannelSet{ChannelSMS, ChannelEmail}, cs)
	})

	t.Run("unknown tag rejected", func(t *testing.T) {
		_, err := ParseChannels([]string{"email", "fax"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"fax"`)
		assert.Contains(t, err.Error(), "[email sms whatsapp push]")
	})

	t.Run("empty input yields empty set that fails validation", func(t *testing.T) {
		cs, err := ParseChannels(nil)
		require.NoError(t, err)
		assert.Error(t, cs.Validate())
	})
}

func TestChannelSet_Validate(t *testing.T) {
	assert.NoError(t, ChannelSet{ChannelPush}.Validate())
	assert.Error(t, ChannelSet{}.Validate())
	assert.Error(t, ChannelSet{"pigeon"}.Validate())
}

func TestType_Valid(t *testing.T) {
	assert.True(t, TypeOrderUpdate.Valid())
	assert.True(t, TypeServiceReminder.Valid())
	assert.True(t, TypePromotion.Valid())
	assert.False(t, Type("").Valid())
	assert.False(t, Type("newsletter").Valid())
}
