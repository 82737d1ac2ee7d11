package kafka

import (
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestCountReady(t *testing.T) {
	tests := []struct {
		name   string
		errs   map[string]error
		expect int
	}{
		{
			name:   "freshly created topic counts as ready",
			errs:   map[string]error{"uploads": nil},
			expect: 1,
		},
		{
			name:   "existing topic counts as ready",
			errs:   map[string]error{"uploads": kafkago.TopicAlreadyExists},
			expect: 1,
		},
		{
			name: "mixed outcomes",
			errs: map[string]error{
				"uploads":  nil,
				"retries":  kafkago.TopicAlreadyExists,
				"rejected": errors.New("invalid replication factor"),
			},
			expect: 2,
		},
		{
			name:   "empty response",
			errs:   map[string]error{},
			expect: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expect, countReady(tt.errs))
		})
	}
}
