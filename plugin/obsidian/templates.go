package obsidian

import (
	"fmt"
	"strings"
	"time"
)

func dailyNote(day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "---\ndate: %s\ntags: [daily]\n---\n\n", day.Format(DateLayout))
	fmt.Fprintf(&b, "# %s\n\n", day.Format("Monday, January 2, 2006"))
	b.WriteString("## Plan\n\n- [ ] \n\n## Notes\n\n")
	return b.String()
}

func workoutNote(kind Workout, day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "---\ndate: %s\ntype: %s\ntags: [workout, %s]\n---\n\n", day.Format(DateLayout), kind, kind)
	fmt.Fprintf(&b, "# %s %s\n\n", kind.dir(), day.Format(DateLayout))
	b.WriteString("## Session\n\n- Duration: \n- Distance: \n- Effort: \n\n## Notes\n\n")
	return b.String()
}
