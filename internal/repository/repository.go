package repository

import (
	"fmt"

	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("projmatch.repository")

// translate maps gorm errors onto the error taxonomy. what names the entity
// for the message.
func translate(err error, what string, args ...any) error {
	if err == nil {
		return nil
	}
	subject := fmt.Sprintf(what, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFoundf("%s", subject)
	case helper.IsDuplicateKey(err):
		return errors.AlreadyExistsf("%s", subject)
	default:
		logger.Debugf("%s: %v", subject, err)
		return errors.Annotatef(err, "%s", subject)
	}
}
