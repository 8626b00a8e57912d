package utils

import (
	"os/user"
	"strings"

	"github.com/PolarWolf314/chatvault/internal/ui"
)

// FormatList formats values as an indented bullet list.
func FormatList(values []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, v := range values {
		b.WriteString("    - ")
		b.WriteString(ui.Highlight.Sprint(v))
		b.WriteString("\n")
	}
	return b.String()
}

// SplitIDs splits comma separated ids, trimming spaces and dropping empties
// and duplicates while keeping order.
func SplitIDs(values []string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// GetUsername returns the current OS username, used as the default user id.
func GetUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
