package worker

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ParseSchedule parses a standard 5-field cron expression. An empty
// expression yields a nil schedule, meaning the fixed interval applies.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("worker: invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}
