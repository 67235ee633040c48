package neo4j

import (
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// normalizeValue converts driver-specific values into JSON-safe Go
// primitives. Temporal and spatial types become strings, graph values
// become plain maps, collections are normalized recursively.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, bool, int64, float64, string:
		return v
	case int:
		return int64(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case dbtype.Date:
		return v.Time().Format("2006-01-02")
	case dbtype.LocalTime:
		return v.Time().Format("15:04:05")
	case dbtype.Time:
		return v.Time().Format(time.RFC3339)
	case dbtype.LocalDateTime:
		return v.Time().Format(time.RFC3339)
	case dbtype.Duration:
		return v.String()
	case dbtype.Point2D:
		return v.String()
	case dbtype.Point3D:
		return v.String()
	case dbtype.Node:
		props := make(map[string]interface{}, len(v.Props)+2)
		for k, p := range v.Props {
			props[k] = normalizeValue(p)
		}
		props["id"] = v.ElementId
		props["labels"] = v.Labels
		return props
	case dbtype.Relationship:
		return map[string]interface{}{
			"id":     v.ElementId,
			"source": v.StartElementId,
			"target": v.EndElementId,
			"type":   v.Type,
		}
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asInt(value interface{}) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
