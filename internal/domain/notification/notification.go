package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound = errors.New("SSE client not found")
	ErrChannelFull    = errors.New("SSE message channel full")
)

// Group names used when routing messages.
const (
	GroupAdmins = "role:admin"
)

// RoleGroup is the group every connected user of a role joins.
func RoleGroup(role string) string {
	return "role:" + strings.ToLower(role)
}

// Rule routes matching events to a group. Condition is a govaluate
// expression over the event parameters, e.g. `action == "accept" && amount >= 5000`.
type Rule struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Group     string `json:"group"`
}

// ParseRules decodes a JSON list of rules. Empty input yields no rules.
func ParseRules(raw string) ([]Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var rules []Rule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("invalid notification rules: %w", err)
	}
	for i, r := range rules {
		if strings.TrimSpace(r.Group) == "" {
			return nil, fmt.Errorf("notification rule %d (%s): group is required", i, r.Name)
		}
	}
	return rules, nil
}

// SSEClient represents an active SSE connection
type SSEClient struct {
	ClientID    string
	UserID      *string
	Groups      []string
	ConnectedAt time.Time
	MessageChan chan *SSEMessage
}

// NewSSEClient creates a new SSE client
func NewSSEClient(clientID string, userID *string, groups []string) *SSEClient {
	return &SSEClient{
		ClientID:    clientID,
		UserID:      userID,
		Groups:      groups,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *SSEMessage, 100),
	}
}

// Close closes the client's message channel
func (c *SSEClient) Close() {
	close(c.MessageChan)
}

// SSEMessage represents a message to be sent via SSE
type SSEMessage struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSSEMessage creates a new SSE message
func NewSSEMessage(event string, data json.RawMessage) *SSEMessage {
	return &SSEMessage{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
