package ics

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	beginCalendar = "BEGIN:VCALENDAR"
	endCalendar   = "END:VCALENDAR"
)

var utf8BOM = []byte("\xEF\xBB\xBF")

// splitCalendars cuts a document into its VCALENDAR blocks, each including
// its BEGIN and END lines. Blank lines between blocks are ignored; any other
// content outside a block is an error. Folded continuation lines, which
// start with a space or a tab, belong to the line before them and are never
// read as a BEGIN or END token. A leading UTF-8 byte order mark is dropped.
func splitCalendars(body []byte) ([][]byte, error) {
	r := bufio.NewReader(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))

	var (
		blocks [][]byte
		cur    *bytes.Buffer
	)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			token := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case cur != nil && isContinuation(line):
				cur.WriteString(line)
			case cur == nil && token == "":
			case cur == nil && token == beginCalendar:
				cur = new(bytes.Buffer)
				cur.WriteString(line)
			case cur == nil:
				return nil, errors.New("content outside of VCALENDAR: " + truncate(token, 40))
			default:
				cur.WriteString(line)
				if token == endCalendar {
					if !strings.HasSuffix(line, "\n") {
						cur.WriteString("\r\n")
					}
					blocks = append(blocks, cur.Bytes())
					cur = nil
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if cur != nil {
		return nil, errors.New("unterminated VCALENDAR")
	}
	return blocks, nil
}

func isContinuation(line string) bool {
	return line[0] == ' ' || line[0] == '\t'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
