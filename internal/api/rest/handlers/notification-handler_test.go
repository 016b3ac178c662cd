package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/interfaces/mocks"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func encodeEvent(t *testing.T, ev dto.AssignmentEvent) string {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(b)
}

func TestNotificationSendsToRecipients(t *testing.T) {
	mailer := mocks.NewMockMailSender(gomock.NewController(t))
	h := NewNotificationHandler(mailer)
	projectID := uint(12)

	mailer.EXPECT().
		Send(gomock.Any(), []string{"alice.wong@student.uts.edu.au", "sam.taylor@uts.edu.au"}, "Project decision", gomock.Any()).
		DoAndReturn(func(_ any, _ []string, _ string, body string) error {
			assert.Contains(t, body, "Vision")
			assert.Contains(t, body, "#12")
			assert.Contains(t, body, "Approved")
			return nil
		})

	err := h.HandleMessage(encodeEvent(t, dto.AssignmentEvent{
		Type:       dto.EventProjectStatusUpdated,
		GroupName:  "Vision",
		ProjectID:  &projectID,
		Status:     "Approved",
		Recipients: []string{"alice.wong@student.uts.edu.au", "sam.taylor@uts.edu.au"},
		OccurredAt: time.Now(),
	}))
	require.NoError(t, err)
}

func TestNotificationSkipsUnusableEvents(t *testing.T) {
	// no Send expected
	mailer := mocks.NewMockMailSender(gomock.NewController(t))
	h := NewNotificationHandler(mailer)

	assert.NoError(t, h.HandleMessage("{not json"))
	assert.NoError(t, h.HandleMessage(encodeEvent(t, dto.AssignmentEvent{Type: "user.registered", Recipients: []string{"a@b.c"}})))
	assert.NoError(t, h.HandleMessage(encodeEvent(t, dto.AssignmentEvent{Type: dto.EventGroupJoined})))
}

func TestNotificationReturnsDeliveryFailure(t *testing.T) {
	mailer := mocks.NewMockMailSender(gomock.NewController(t))
	h := NewNotificationHandler(mailer)
	mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	err := h.HandleMessage(encodeEvent(t, dto.AssignmentEvent{
		Type:       dto.EventGroupCreated,
		GroupName:  "Vision",
		Recipients: []string{"alice.wong@student.uts.edu.au"},
	}))
	assert.ErrorContains(t, err, "smtp down")
}

func TestLoggerModules(t *testing.T) {
	assert.Equal(t, "projmatch.api.handlers", logger.Name())
	assert.Equal(t, "projmatch.notifier", notifyLogger.Name())
}
