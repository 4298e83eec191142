package store

import (
	"fmt"
	"strings"
)

// BuildAnnotationFromEvent materializes an event into its annotation
// record. Only research.update and query.completion events carry
// annotations; everything else returns false.
func BuildAnnotationFromEvent(event RunEvent) (Annotation, bool) {
	eventType := normalizeEventType(event.Type)
	switch eventType {
	case "research.update", "query.completion":
	default:
		return Annotation{}, false
	}

	data, ok := event.Payload["data"].(map[string]any)
	if !ok {
		return Annotation{}, false
	}

	id := readString(data, "id")
	if id == "" {
		id = fmt.Sprintf("annotation-%d", event.Seq)
	}

	return Annotation{
		RunID:     event.RunID,
		ID:        id,
		Type:      eventType,
		Kind:      readString(data, "type"),
		Status:    readString(data, "status"),
		Overwrite: readBool(data, "overwrite"),
		Seq:       event.Seq,
		UpdatedAt: event.Timestamp,
		Data:      data,
	}, true
}

// MergeAnnotation folds an incoming annotation into the existing record
// for the same id. An overwrite write replaces the visible state; a
// non-overwrite write against an existing id keeps the existing state so
// a late running event cannot regress a completed one. The first-seen
// seq is kept for stable ordering.
func MergeAnnotation(existing Annotation, incoming Annotation) Annotation {
	merged := existing
	if merged.ID == "" {
		return incoming
	}
	if merged.Seq == 0 || (incoming.Seq > 0 && incoming.Seq < merged.Seq) {
		merged.Seq = incoming.Seq
	}
	if !incoming.Overwrite {
		return merged
	}
	merged.Type = incoming.Type
	merged.Kind = incoming.Kind
	merged.Status = incoming.Status
	merged.Overwrite = true
	merged.UpdatedAt = incoming.UpdatedAt
	merged.Data = incoming.Data
	return merged
}

func normalizeEventType(eventType string) string {
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	return strings.ReplaceAll(normalized, "_", ".")
}

func readString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func readBool(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}
	value, ok := payload[key]
	if !ok {
		return false
	}
	b, ok := value.(bool)
	if !ok {
		return false
	}
	return b
}
