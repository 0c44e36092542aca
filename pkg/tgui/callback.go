package tgui

import "strings"

// Data formats inline callback data as "group:op" or "group:op:payload".
// The payload is kept as-is and may itself contain ':'.
func Data(group, op, payload string) string {
	group = strings.TrimSpace(group)
	op = strings.TrimSpace(op)
	if payload == "" {
		return group + ":" + op
	}
	return group + ":" + op + ":" + payload
}

// SplitData is the inverse of Data. ok is false when data has no op part.
func SplitData(data string) (group, op, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}

// CheckData reports ErrCallbackDataTooLong for data Telegram would reject.
func CheckData(data string) error {
	if len(data) > MaxCallbackDataLen {
		return ErrCallbackDataTooLong
	}
	return nil
}
