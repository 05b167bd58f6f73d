package ics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCalendars(t *testing.T) {
	body := []byte("BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n\n\nbegin:vcalendar\r\nPRODID:x\r\nend:vcalendar")

	blocks, err := splitCalendars(body)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "BEGIN:VCALENDAR\nVERSION:2.0\nEND:VCALENDAR\n", string(blocks[0]))
	assert.Equal(t, "begin:vcalendar\r\nPRODID:x\r\nend:vcalendar\r\n", string(blocks[1]))
}

func TestSplitCalendarsErrors(t *testing.T) {
	_, err := splitCalendars([]byte("BEGIN:VCALENDAR\nVERSION:2.0\n"))
	assert.EqualError(t, err, "unterminated VCALENDAR")

	_, err = splitCalendars([]byte("BEGIN:VEVENT\nEND:VEVENT\n"))
	assert.ErrorContains(t, err, "content outside of VCALENDAR")
}

func TestSplitCalendarsNone(t *testing.T) {
	blocks, err := splitCalendars([]byte("\r\n\r\n"))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestSplitCalendarsFoldedEndToken(t *testing.T) {
	body := []byte("BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"DESCRIPTION:see\r\n" +
		" END:VCALENDAR\r\n" +
		"\tEND:VCALENDAR\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n")

	blocks, err := splitCalendars(body)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, string(body), string(blocks[0]))
}

func TestSplitCalendarsByteOrderMark(t *testing.T) {
	body := []byte("\xEF\xBB\xBFBEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")

	blocks, err := splitCalendars(body)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n", string(blocks[0]))
}
