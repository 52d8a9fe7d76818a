package store

import (
	"strings"

	"github.com/fallpaper-daemon/fallpaper/errs"
)

// translateWriteErr maps a raw modernc.org/sqlite error from an insert/update
// into the errs sum type. SQLite's driver surfaces constraint violations as
// plain string-formatted errors, so matching on message content is the only
// option — the same approach the teacher uses for its own SQLite error
// classification.
func translateWriteErr(entity string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return errs.Uniqueness(entity, "a "+entity+" with this value already exists", err)
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return errs.Validation("referenced " + entity + " does not exist")
	}
	return err
}
