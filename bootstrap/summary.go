package bootstrap

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/pilgi/component"
)

// Summary is the banner printed once every component has started. A nil
// Out prints nothing.
type Summary struct {
	Out     io.Writer
	Service string
	Version string
}

var healthIcons = map[component.HealthStatus]string{
	component.StatusHealthy:   "✅",
	component.StatusDegraded:  "⚠️",
	component.StatusUnhealthy: "❌",
}

// Print writes the banner followed by the infrastructure, route and health
// sections of reg. Empty sections are left out.
func (s *Summary) Print(ctx context.Context, reg *component.Registry, took time.Duration) {
	if s == nil || s.Out == nil {
		return
	}
	fmt.Fprintf(s.Out, "\n🚀 %s %s started in %.2fs\n", s.Service, cmp.Or(s.Version, "dev"), took.Seconds())
	if reg == nil {
		fmt.Fprintln(s.Out, "   └── No components registered")
		fmt.Fprintln(s.Out)
		return
	}

	var infra []string
	for _, d := range reg.Descriptions() {
		line := fmt.Sprintf("%s [%s] %s", d.Name, d.Type, d.Details)
		if d.Port > 0 {
			line += fmt.Sprintf(" (:%d)", d.Port)
		}
		infra = append(infra, line)
	}
	tree(s.Out, "📊 Infrastructure", infra)

	var routes []string
	for _, r := range reg.Routes() {
		routes = append(routes, fmt.Sprintf("%-7s %s → %s", r.Method, r.Path, r.Handler))
	}
	tree(s.Out, fmt.Sprintf("🌐 Routes (%d)", len(routes)), routes)

	hs := reg.HealthAll(ctx)
	var checks []string
	healthy := 0
	for _, h := range hs {
		line := fmt.Sprintf("%s %s: %s", cmp.Or(healthIcons[h.Status], "❓"), h.Name, strings.ToLower(string(h.Status)))
		if h.Message != "" {
			line += " (" + h.Message + ")"
		}
		checks = append(checks, line)
		if h.Status == component.StatusHealthy {
			healthy++
		}
	}
	tree(s.Out, "🏥 Health Check", checks)
	switch {
	case len(hs) == 0:
	case healthy == len(hs):
		fmt.Fprintf(s.Out, "\n✅ All components healthy (%d/%d)\n", healthy, len(hs))
	default:
		fmt.Fprintf(s.Out, "\n⚠️  Some components have issues (%d/%d healthy)\n", healthy, len(hs))
	}
	fmt.Fprintln(s.Out)
}

// tree prints title and lines as one branch per line, the last one closed.
func tree(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for i, l := range lines {
		branch := "├──"
		if i == len(lines)-1 {
			branch = "└──"
		}
		fmt.Fprintf(w, "   %s %s\n", branch, l)
	}
}
