package diagnosis

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"listening/api"
)

const (
	Safe    = "안심"
	Caution = "주의"
	Danger  = "위험"
)

// Result is one propList item ready for display.
type Result struct {
	ID          int
	Name        string
	Level       string
	Description string
}

// Describe maps a server level to its description. Unknown levels read as safe.
func Describe(level string) string {
	switch strings.ToUpper(level) {
	case "MEDIUM":
		return Caution
	case "HIGH":
		return Danger
	default:
		return Safe
	}
}

func Results(d api.Diagnosis) []Result {
	out := make([]Result, 0, len(d.PropList))
	for i, item := range d.PropList {
		r := Result{
			ID:          i,
			Name:        item.Name,
			Level:       strings.ToUpper(item.Level),
			Description: Describe(item.Level),
		}
		if item.ID != nil {
			r.ID = *item.ID
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("항목 %d", i+1)
		}
		out = append(out, r)
	}
	return out
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	colors     = map[string]lipgloss.Color{
		Safe:    lipgloss.Color("35"),
		Caution: lipgloss.Color("214"),
		Danger:  lipgloss.Color("196"),
	}
)

// Render formats results the way the result screen lists them.
func Render(nickname string, results []Result) string {
	if nickname == "" {
		nickname = "OOO"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("진단 결과"))
	b.WriteString("\n")
	if len(results) == 0 {
		b.WriteString("결과 항목이 없습니다.\n")
		return b.String()
	}
	for _, r := range results {
		desc := lipgloss.NewStyle().Foreground(colors[r.Description]).Bold(true).Render(r.Description)
		fmt.Fprintf(&b, "%s 님은 현재 %s %s 단계입니다.\n", nickname, r.Name, desc)
	}
	return b.String()
}
