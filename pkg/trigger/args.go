package trigger

import (
	"fmt"
	"time"

	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
)

// durationArg reads a required numeric-seconds argument, matching
// interval.c's use of plain double fields for "interval"/"after".
func durationArg(args map[string]any, key string) (time.Duration, error) {
	v, ok := args[key]
	if !ok {
		return 0, cronerr.New(cronerr.Protocol, fmt.Sprintf("missing required argument %q", key))
	}
	return toDuration(v)
}

func optionalDurationArg(args map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	return toDuration(v)
}

func toDuration(v any) (time.Duration, error) {
	switch n := v.(type) {
	case float64:
		return time.Duration(n * float64(time.Second)), nil
	case int:
		return time.Duration(n) * time.Second, nil
	case time.Duration:
		return n, nil
	default:
		return 0, cronerr.New(cronerr.Protocol, fmt.Sprintf("expected numeric seconds, got %T", v))
	}
}

func optionalIntArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, cronerr.New(cronerr.Protocol, fmt.Sprintf("%s: expected integer, got %T", key, v))
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", cronerr.New(cronerr.Protocol, fmt.Sprintf("missing required argument %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", cronerr.New(cronerr.Protocol, fmt.Sprintf("%s: expected string, got %T", key, v))
	}
	return s, nil
}
