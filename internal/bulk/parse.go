// Package bulk turns pasted server tables into registration rows and
// submits them one at a time, tracking each row's result.
package bulk

import (
	"strconv"
	"strings"

	"github.com/org/opsconsole/pkg/models"
)

type column int

const (
	colHostname column = iota
	colIP
	colPort
	colUser
	colPassword
)

// headerKeywords are checked in order; the first column kind whose keyword
// appears in a header cell claims it.
var headerKeywords = []struct {
	col      column
	keywords []string
}{
	{colHostname, []string{"hostname", "host", "호스트"}},
	{colIP, []string{"ip", "address", "주소"}},
	{colPort, []string{"port", "포트"}},
	{colUser, []string{"user", "사용자"}},
	{colPassword, []string{"pass", "비밀번호"}},
}

func classify(cell string) (column, bool) {
	for _, hk := range headerKeywords {
		for _, kw := range hk.keywords {
			if strings.Contains(cell, kw) {
				return hk.col, true
			}
		}
	}
	return 0, false
}

// Parse reads tab- or comma-separated text. The separator is a tab if the
// first line contains one. When the first line has recognizable headers it
// maps the columns; otherwise it is data in hostname, ip, port, user,
// password order. Lines with fewer than two cells are skipped.
func Parse(text string) []*Row {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	sep := ","
	if strings.Contains(lines[0], "\t") {
		sep = "\t"
	}

	cols := map[column]int{}
	for i, cell := range strings.Split(strings.ToLower(lines[0]), sep) {
		if c, ok := classify(strings.TrimSpace(cell)); ok {
			cols[c] = i
		}
	}
	start := 1
	if len(cols) == 0 {
		start = 0
		cols = map[column]int{colHostname: 0, colIP: 1, colPort: 2, colUser: 3, colPassword: 4}
	}

	var rows []*Row
	for _, line := range lines[start:] {
		cells := strings.Split(line, sep)
		if len(cells) < 2 {
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		get := func(c column) string {
			i, ok := cols[c]
			if !ok || i >= len(cells) {
				return ""
			}
			return cells[i]
		}
		row := &Row{
			Hostname:    get(colHostname),
			IPAddress:   get(colIP),
			SSHPort:     parsePort(get(colPort)),
			SSHUsername: orDefault(get(colUser), models.DefaultSSHUser),
			SSHPassword: get(colPassword),
		}
		row.setStatus(Idle, "")
		rows = append(rows, row)
	}
	return rows
}

func parsePort(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return models.DefaultSSHPort
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
