package feishu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "verify-token"

func TestParseApprovalEvent_V2(t *testing.T) {
	body := []byte(`{
		"schema": "2.0",
		"header": {"event_id": "evt-1", "event_type": "approval_instance", "token": "verify-token"},
		"event": {"approval_code": "GOLD-SEAL", "instance_code": "INST-1", "status": "APPROVED", "open_id": "ou_lead"}
	}`)

	event, err := ParseApprovalEvent(body, testToken)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "GOLD-SEAL", event.ApprovalCode)
	assert.Equal(t, "INST-1", event.InstanceCode)
	assert.Equal(t, "ou_lead", event.OpenID)
	assert.True(t, event.Final())
}

func TestParseApprovalEvent_V1(t *testing.T) {
	body := []byte(`{
		"type": "event_callback",
		"token": "verify-token",
		"event": {"type": "approval_instance", "approval_code": "GOLD-SEAL", "instance_code": "INST-2", "status": "PENDING"}
	}`)

	event, err := ParseApprovalEvent(body, testToken)
	require.NoError(t, err)
	assert.Equal(t, "INST-2", event.InstanceCode)
	assert.False(t, event.Final())
}

func TestParseApprovalEvent_Errors(t *testing.T) {
	t.Run("token mismatch", func(t *testing.T) {
		body := []byte(`{"header": {"event_type": "approval_instance", "token": "wrong"}, "event": {}}`)
		_, err := ParseApprovalEvent(body, testToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token not configured", func(t *testing.T) {
		body := []byte(`{"header": {"event_type": "approval_instance", "token": "anything"}, "event": {"instance_code": "X"}}`)
		event, err := ParseApprovalEvent(body, "")
		require.NoError(t, err)
		assert.Equal(t, "X", event.InstanceCode)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseApprovalEvent([]byte(`{`), testToken)
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := ParseApprovalEvent([]byte(`{"schema": "2.0"}`), testToken)
		assert.Error(t, err)
	})
}

func TestHandleVerification(t *testing.T) {
	body := []byte(`{"type": "url_verification", "challenge": "abc123", "token": "verify-token"}`)
	assert.True(t, IsVerificationEvent(body))

	challenge, err := HandleVerification(body, testToken)
	require.NoError(t, err)
	assert.Equal(t, "abc123", challenge)

	_, err = HandleVerification(body, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = HandleVerification([]byte(`{"type": "url_verification", "token": "verify-token"}`), testToken)
	assert.Error(t, err)

	assert.False(t, IsVerificationEvent([]byte(`{"type": "event_callback"}`)))
	assert.False(t, IsVerificationEvent([]byte(`not json`)))
}
