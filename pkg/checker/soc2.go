package checker

import "github.com/Mindburn-Labs/fuse/pkg/spec"

// checkSOC2 evaluates access-control evidence. Every access_logs entry must
// carry a boolean "authorized"; the number of unauthorized events may not
// exceed max_unauthorized (default 0) and the log must hold at least
// min_events entries when that constraint is set.
func checkSOC2(s *spec.ComplianceSpec, data SystemData) Result {
	logs, ok := arrayField(data, "access_logs")
	if !ok {
		return Fail
	}

	maxUnauthorized, ok := intConstraint(s, "max_unauthorized", 0)
	if !ok || maxUnauthorized < 0 {
		return Fail
	}
	minEvents, ok := intConstraint(s, "min_events", 0)
	if !ok || minEvents < 0 {
		return Fail
	}

	var unauthorized int64
	for _, entry := range logs {
		event, ok := asObject(entry)
		if !ok {
			return Fail
		}
		authorized, ok := boolField(event, "authorized")
		if !ok {
			return Fail
		}
		if !authorized {
			unauthorized++
		}
	}

	return resultOf(unauthorized <= maxUnauthorized && int64(len(logs)) >= minEvents)
}
