package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAlarm(t *testing.T) {
	tests := []struct {
		description string
		want        AlarmKind
	}{
		{"Max TP108 ARI exceeded 5 years", AlarmOverflow},
		{"max tp108 ari", AlarmOverflow},
		{"Overflow threshold breached", AlarmOverflow},
		{"Data Recency: no values for 6 hours", AlarmRecency},
		{"Recency alarm on Max TP108 ARI trace", AlarmRecency},
		{"Battery voltage low", AlarmUnknown},
		{"", AlarmUnknown},
		{"Variance check", AlarmUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAlarm(tt.description))
		})
	}
}

func TestParseAlarmScope(t *testing.T) {
	assert.Equal(t, ScopeCatchment, ParseAlarmScope("Catchment"))
	assert.Equal(t, ScopeCatchment, ParseAlarmScope("radar"))
	assert.Equal(t, ScopeGauge, ParseAlarmScope(""))
	assert.Equal(t, ScopeGauge, ParseAlarmScope("gauge"))
}

func TestNewCatchment_DeduplicatesMembers(t *testing.T) {
	c := NewCatchment("c1", "Oakley Creek", []string{"p2", "p1", "p2", "", "p3"})
	assert.Equal(t, []string{"p1", "p2", "p3"}, c.Members)
	assert.Len(t, c.MemberSet(), 3)
}
