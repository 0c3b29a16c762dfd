package digest

import (
	"fmt"
	"os"
	"strings"

	"github.com/osteele/liquid"

	"church-portal/internal/celebrations"
)

const defaultTemplate = `Week of {{ this_week.start }} - {{ this_week.end }}
{% if this_week.celebrations.size == 0 %}No celebrations this week.
{% else %}{% for c in this_week.celebrations %}- {{ c.day }}: {{ c.name }} {{ c.label }}{% if c.years > 0 %} ({{ c.years }} years){% endif %}
{% endfor %}{% endif %}{% for e in this_week.events %}* {{ e.day }}: {{ e.title }}{% if e.location != "" %} @ {{ e.location }}{% endif %}
{% endfor %}
Next week ({{ next_week.start }} - {{ next_week.end }})
{% if next_week.celebrations.size == 0 %}No celebrations next week.
{% else %}{% for c in next_week.celebrations %}- {{ c.day }}: {{ c.name }} {{ c.label }}{% if c.years > 0 %} ({{ c.years }} years){% endif %}
{% endfor %}{% endif %}{% for e in next_week.events %}* {{ e.day }}: {{ e.title }}{% if e.location != "" %} @ {{ e.location }}{% endif %}
{% endfor %}`

const dayLayout = "Mon Jan 2"

// Renderer turns a Weekly into text with a Liquid template.
type Renderer struct {
	tpl *liquid.Template
}

// NewRenderer compiles src, or the built-in template when src is empty.
func NewRenderer(src string) (*Renderer, error) {
	if strings.TrimSpace(src) == "" {
		src = defaultTemplate
	}
	tpl, err := liquid.NewEngine().ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Render executes the template against w.
func (r *Renderer) Render(w Weekly) (string, error) {
	out, err := r.tpl.RenderString(liquid.Bindings{
		"reference": w.Reference.Format(dayLayout),
		"this_week": weekBindings(w.ThisWeek),
		"next_week": weekBindings(w.NextWeek),
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return out, nil
}

func weekBindings(w Week) map[string]any {
	cs := make([]map[string]any, 0, len(w.Celebrations))
	for _, c := range w.Celebrations {
		cs = append(cs, map[string]any{
			"day":   c.On.Format(dayLayout),
			"name":  c.Name,
			"kind":  string(c.Kind),
			"label": kindLabel(c.Kind),
			"years": c.Years,
		})
	}
	events := make([]map[string]any, 0, len(w.Events))
	for _, e := range w.Events {
		events = append(events, map[string]any{
			"day":      e.StartsAt.In(w.Window.Start.Location()).Format(dayLayout),
			"title":    e.Title,
			"location": e.Location,
		})
	}
	return map[string]any{
		"start":        w.Window.Start.Format(dayLayout),
		"end":          w.Window.End.Format(dayLayout),
		"celebrations": cs,
		"events":       events,
	}
}

func kindLabel(k celebrations.Kind) string {
	switch k {
	case celebrations.KindBirthday:
		return "birthday"
	case celebrations.KindWeddingAnniversary:
		return "wedding anniversary"
	case celebrations.KindChurchJoinAnniversary:
		return "church anniversary"
	default:
		return string(k)
	}
}

// LoadRenderer compiles the template at path, or the built-in one when path
// is empty.
func LoadRenderer(path string) (*Renderer, error) {
	if path == "" {
		return NewRenderer("")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read digest template: %w", err)
	}
	return NewRenderer(string(src))
}
