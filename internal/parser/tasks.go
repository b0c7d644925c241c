package parser

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// TaskItem is the typed view of one entry in a Tasks section.
type TaskItem struct {
	Title   string `mapstructure:"title" json:"title"`
	Status  string `mapstructure:"status" json:"status,omitempty"`
	Owner   string `mapstructure:"owner" json:"owner,omitempty"`
	Blocked bool   `mapstructure:"blocked" json:"blocked,omitempty"`
}

// IsBlocked reports whether the task is flagged or marked as blocked.
func (t TaskItem) IsBlocked() bool {
	return t.Blocked || strings.EqualFold(strings.TrimSpace(t.Status), "blocked")
}

// DecodeTasks converts a loosely typed task list into TaskItems.
// Plain strings become titles; items that cannot be decoded are skipped.
func DecodeTasks(tasks []interface{}) []TaskItem {
	out := make([]TaskItem, 0, len(tasks))
	for _, raw := range tasks {
		switch v := raw.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, TaskItem{Title: s})
			}
		case map[string]interface{}:
			var item TaskItem
			if err := mapstructure.WeakDecode(v, &item); err != nil {
				continue
			}
			out = append(out, item)
		}
	}
	return out
}

// DecodeTasksJSON decodes a stored tasks payload. Invalid payloads yield nil.
func DecodeTasksJSON(raw json.RawMessage) []TaskItem {
	if len(raw) == 0 {
		return nil
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return DecodeTasks(list)
}
