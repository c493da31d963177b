package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const maxSkillBadges = 3

// BudgetLabel 职位预算展示，0 视为未填写
func BudgetLabel(budgetMin, budgetMax *float64) string {
	lo, hi := positive(budgetMin), positive(budgetMax)
	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("$%s - $%s", plainNumber(lo), plainNumber(hi))
	case lo > 0:
		return fmt.Sprintf("$%s+", plainNumber(lo))
	case hi > 0:
		return fmt.Sprintf("Up to $%s", plainNumber(hi))
	default:
		return "Budget not specified"
	}
}

func positive(v *float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}

func plainNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SkillBadges returns the first three skills and the "+N more" overflow label.
func SkillBadges(skills []string) ([]string, string) {
	if len(skills) <= maxSkillBadges {
		return skills, ""
	}
	return skills[:maxSkillBadges], fmt.Sprintf("+%d more", len(skills)-maxSkillBadges)
}

// FundingProgress is current/goal as a percentage capped at 100.
func FundingProgress(current, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return math.Min(current/goal*100, 100)
}

// FormatAmount renders a USD amount like "$1,200" or "$1,200.5".
func FormatAmount(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	whole, frac := cents/100, cents%100

	out := sign + "$" + message.NewPrinter(language.English).Sprintf("%d", whole)
	if frac != 0 {
		out += strings.TrimRight(fmt.Sprintf(".%02d", frac), "0")
	}
	return out
}

// DaysLeftLabel 距截止日的剩余天数（向上取整）
func DaysLeftLabel(deadline, now time.Time) string {
	days := int(math.Ceil(deadline.Sub(now).Hours() / 24))
	switch {
	case days < 0:
		return "Ended"
	case days == 0:
		return "Last day"
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

// FirstName 取全名的第一个词，空则为 "User"
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "User"
	}
	return fields[0]
}

// ParseList splits a comma separated string, trimming entries and dropping
// empty ones. An empty result is nil.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeSkills trims, drops empties and de-duplicates preserving order.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	var out []string
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

const dateLayout = "2006-01-02"

func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
