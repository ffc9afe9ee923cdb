package gamehub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// recordSeparator terminates every JSON hub protocol record.
const recordSeparator byte = 0x1e

// MessageType identifies a hub protocol message.
type MessageType int

const (
	MessageInvocation       MessageType = 1
	MessageStreamItem       MessageType = 2
	MessageCompletion       MessageType = 3
	MessageStreamInvocation MessageType = 4
	MessageCancelInvocation MessageType = 5
	MessagePing             MessageType = 6
	MessageClose            MessageType = 7
)

// HubMessage is the decoded form of any inbound record. Fields not used by
// a given message type are left empty.
type HubMessage struct {
	Type           MessageType       `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

// invocationMessage is the outbound form. Arguments is always encoded,
// the hub rejects invocations without it.
type invocationMessage struct {
	Type         MessageType `json:"type"`
	InvocationID string      `json:"invocationId,omitempty"`
	Target       string      `json:"target"`
	Arguments    []any       `json:"arguments"`
}

type completionMessage struct {
	Type         MessageType `json:"type"`
	InvocationID string      `json:"invocationId"`
	Error        string      `json:"error,omitempty"`
}

type pingMessage struct {
	Type MessageType `json:"type"`
}

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

var errIncompleteRecord = errors.New("message is incomplete: missing record separator")

// encodeRecord marshals v and appends the record separator.
func encodeRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode hub message: %w", err)
	}
	return append(data, recordSeparator), nil
}

// splitRecords splits a frame into its records. A frame may carry several
// records but must end with a separator.
func splitRecords(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[len(data)-1] != recordSeparator {
		return nil, errIncompleteRecord
	}
	parts := bytes.Split(data[:len(data)-1], []byte{recordSeparator})
	records := parts[:0]
	for _, p := range parts {
		if len(p) > 0 {
			records = append(records, p)
		}
	}
	return records, nil
}

// parseMessages decodes every record in a frame.
func parseMessages(data []byte) ([]HubMessage, error) {
	records, err := splitRecords(data)
	if err != nil {
		return nil, err
	}
	msgs := make([]HubMessage, 0, len(records))
	var errs []error
	for _, r := range records {
		var m HubMessage
		if err := json.Unmarshal(r, &m); err != nil {
			errs = append(errs, fmt.Errorf("decode hub message: %w", err))
			continue
		}
		if m.Type == 0 {
			errs = append(errs, fmt.Errorf("decode hub message: missing type in %s", r))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, errors.Join(errs...)
}

// parseHandshake decodes the handshake response at the front of data and
// returns whatever follows it in the same frame.
func parseHandshake(data []byte) (handshakeResponse, []byte, error) {
	var resp handshakeResponse
	idx := bytes.IndexByte(data, recordSeparator)
	if idx < 0 {
		return resp, nil, fmt.Errorf("%w: %v", ErrHandshake, errIncompleteRecord)
	}
	if err := json.Unmarshal(data[:idx], &resp); err != nil {
		return resp, nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return resp, data[idx+1:], nil
}
