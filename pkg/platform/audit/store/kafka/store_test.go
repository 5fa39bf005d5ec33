package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "quill/pkg/domain"
	audit "quill/pkg/platform/audit"
)

func TestRecordKey(t *testing.T) {
	userID := id.NewUserID()
	assert.Equal(t, userID.String(), recordKey(audit.Event{UserID: userID, Subject: "ignored"}))
	assert.Equal(t, "reader@example.com", recordKey(audit.Event{Subject: "reader@example.com"}))
}
