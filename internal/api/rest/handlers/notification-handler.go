package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/ShixuDing/32933-project-match/internal/templates"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var notifyLogger = loggo.GetLogger("projmatch.notifier")

const sendTimeout = 30 * time.Second

type notice struct {
	subject string
	message string
}

var notices = map[string]notice{
	dto.EventGroupCreated:            {"Group created", "Your new group is ready. Share its id with classmates so they can join."},
	dto.EventGroupJoined:             {"New group member", "A student has joined your group."},
	dto.EventGroupLeft:               {"Group member left", "A student has left your group."},
	dto.EventGroupProjectApplied:     {"Project application", "Your group has applied for a project."},
	dto.EventGroupSupervisorAssigned: {"Supervisor assigned", "A supervisor has been assigned to your group."},
	dto.EventGroupSupervisorRemoved:  {"Supervisor removed", "Your group no longer has a supervisor."},
	dto.EventProjectStatusUpdated:    {"Project decision", "The supervisor has made a decision on a project your group applied for."},
}

// NotificationHandler turns assignment events into emails.
type NotificationHandler struct {
	mailer interfaces.MailSender
}

func NewNotificationHandler(mailer interfaces.MailSender) *NotificationHandler {
	return &NotificationHandler{mailer: mailer}
}

// HandleMessage skips malformed or unknown events without error so the
// consumer moves on. Delivery failures are returned.
func (h *NotificationHandler) HandleMessage(message string) error {
	var event dto.AssignmentEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		notifyLogger.Warningf("invalid event payload: %s", message)
		return nil
	}

	n, ok := notices[event.Type]
	if !ok {
		notifyLogger.Warningf("unknown event type %q", event.Type)
		return nil
	}
	if len(event.Recipients) == 0 {
		notifyLogger.Debugf("%s for group %d has no recipients", event.Type, event.GroupID)
		return nil
	}

	data := map[string]any{
		"Title":      n.subject,
		"Message":    n.message,
		"GroupName":  event.GroupName,
		"Status":     event.Status,
		"OccurredAt": event.OccurredAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	if event.ProjectID != nil {
		data["ProjectID"] = *event.ProjectID
	}
	body, err := templates.Render("assignment-event.html", data)
	if err != nil {
		return errors.Trace(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := h.mailer.Send(ctx, event.Recipients, n.subject, body); err != nil {
		return errors.Annotatef(err, "notify %s", event.Type)
	}
	notifyLogger.Infof("notified %d recipients of %s", len(event.Recipients), event.Type)
	return nil
}
