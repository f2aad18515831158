package feishu

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidToken 回调verification token不匹配
var ErrInvalidToken = errors.New("feishu webhook: invalid verification token")

// ParseApprovalEvent 解析审批实例回调，兼容v1与v2格式。
// expectedToken非空时校验事件携带的verification token。
func ParseApprovalEvent(body []byte, expectedToken string) (*ApprovalEvent, error) {
	var envelope WebhookEvent
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}

	// v2：header + event
	if envelope.Header != nil && envelope.Header.EventType != "" {
		if err := checkToken(envelope.Header.Token, expectedToken); err != nil {
			return nil, err
		}
		var event ApprovalEvent
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, fmt.Errorf("decode v2 approval event: %w", err)
		}
		event.EventID = envelope.Header.EventID
		return &event, nil
	}

	// v1：token在信封，事件体在event
	if len(envelope.Event) > 0 {
		if err := checkToken(envelope.Token, expectedToken); err != nil {
			return nil, err
		}
		var event ApprovalEvent
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, fmt.Errorf("decode v1 approval event: %w", err)
		}
		return &event, nil
	}

	return nil, errors.New("unrecognized approval event format")
}

func checkToken(got, expected string) error {
	if expected == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// HandleVerification 处理URL验证事件，返回需原样回传的challenge
func HandleVerification(body []byte, expectedToken string) (string, error) {
	var event URLVerificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return "", fmt.Errorf("decode verification event: %w", err)
	}
	if event.Type != EventTypeURLVerification {
		return "", fmt.Errorf("not a verification event: %s", event.Type)
	}
	if err := checkToken(event.Token, expectedToken); err != nil {
		return "", err
	}
	if event.Challenge == "" {
		return "", errors.New("verification event missing challenge")
	}
	return event.Challenge, nil
}

// IsVerificationEvent 是否URL验证事件
func IsVerificationEvent(body []byte) bool {
	var check struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &check); err != nil {
		return false
	}
	return check.Type == EventTypeURLVerification
}
