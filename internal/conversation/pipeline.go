package conversation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shoptalk/shoptalk/internal/query"
)

const anaphoraInstruction = "IMPORTANT: If the user's question refers to 'those', 'that', 'them', " +
	"'these results', use the context above to understand what they're referring to."

// BuildContext renders the most recent prior turns as a memory block for
// the translator. Prior turns are windowed first, then system entries
// dropped; each line truncates content to 150 characters. Returns the
// empty string when there is nothing to remember.
func BuildContext(prior []Message, lastSQL string, window int) string {
	if window <= 0 || len(prior) == 0 {
		return ""
	}
	start := len(prior) - window
	if start < 0 {
		start = 0
	}
	recent := make([]Message, 0, window)
	for _, msg := range prior[start:] {
		if msg.Role == RoleSystem {
			continue
		}
		recent = append(recent, msg)
	}
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Recent Conversation Context (for follow-up questions):\n")
	for i, msg := range recent {
		label := "Assistant"
		if msg.Role == RoleUser {
			label = "User"
		}
		fmt.Fprintf(&b, "%s #%d: %.150s...\n", label, i+1, msg.Content)
	}
	if lastSQL != "" {
		fmt.Fprintf(&b, "\nLast SQL Query: %s\n", lastSQL)
	}
	b.WriteString("\n" + anaphoraInstruction + "\n")
	return b.String()
}

// LastSQL returns the SQL of the most recent assistant turn that carried
// one, or the empty string.
func LastSQL(prior []Message) string {
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].Role == RoleAssistant && prior[i].SQL != "" {
			return prior[i].SQL
		}
	}
	return ""
}

var (
	codeFencePattern  = regexp.MustCompile("```sql\\s*|```\\s*")
	leadingSQLPattern = regexp.MustCompile(`(?i)^sql\s*`)
)

// SanitizeSQL strips the wrapping noise translators commonly emit:
// code fences, a leading language tag, trailing semicolons, and
// irregular whitespace.
func SanitizeSQL(raw string) string {
	sqlText := codeFencePattern.ReplaceAllString(raw, "")
	sqlText = strings.TrimSpace(sqlText)
	sqlText = leadingSQLPattern.ReplaceAllString(sqlText, "")
	sqlText = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sqlText), ";"))
	return strings.Join(strings.Fields(sqlText), " ")
}

// ValidateSQL is a shallow syntactic gate: the statement must start with
// SELECT and contain a FROM clause. It rejects obviously-wrong
// completions before they reach the warehouse, nothing more.
func ValidateSQL(sqlText string) error {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("Invalid SQL: doesn't start with SELECT")
	}
	if !strings.Contains(upper, "FROM") {
		return fmt.Errorf("Invalid SQL: missing FROM clause")
	}
	return nil
}

// FormatResult turns a result table into a terse user-facing answer.
func FormatResult(result query.Result) string {
	if result.RowCount() == 0 {
		return "I found no results for your query."
	}
	if value, ok := result.SingleValue(); ok {
		return fmt.Sprintf("The answer is: %v", value)
	}
	return fmt.Sprintf("I found %d results for your query.", result.RowCount())
}
