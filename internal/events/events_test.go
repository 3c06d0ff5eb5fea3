package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/tutor"
)

var _ tutor.Publisher = Nop{}
var _ tutor.Publisher = (*RedisPublisher)(nil)

func TestEventWireFormat(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := tutor.TurnEvent{
		Key:       "u1@grammar/0/0",
		SessionID: 3,
		Action:    "exercise",
		Mode:      lesson.ModeAwaitingAnswer,
		Status:    lesson.StatusInProgress,
		Version:   4,
		Messages:  []lesson.Message{lesson.AssistantMessage(lesson.KindExercisePrompt, "Name a noun.", at)},
		At:        at,
	}

	raw, err := Encode(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"interaction_mode":"awaiting_answer"`)
	assert.Contains(t, string(raw), `"kind":"exercise_prompt"`)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestNewRedisPublisherRequiresAddr(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "  ", "", nil)
	assert.ErrorContains(t, err, "address is required")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), tutor.TurnEvent{}))
}
