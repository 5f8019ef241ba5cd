package monitoring

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestNopReporterIsSilent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(log.Writer())

	NopReporter{}.Report("transform", 5, 10)
	if buf.Len() != 0 {
		t.Fatalf("NopReporter wrote output: %q", buf.String())
	}
}

func TestLogReporterPercentage(t *testing.T) {
	cases := []struct {
		name      string
		completed int
		total     int
		want      string
	}{
		{"halfway", 5, 10, "50%"},
		{"start", 0, 10, "0%"},
		{"done", 10, 10, "100%"},
		{"zero total", 3, 0, "0%"},
		{"overshoot clamped", 15, 10, "100%"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log.SetOutput(&buf)
			defer log.SetOutput(log.Writer())

			LogReporter{}.Report("transform", tc.completed, tc.total)
			if got := buf.String(); !strings.Contains(got, tc.want) {
				t.Fatalf("Report output %q does not contain %q", got, tc.want)
			}
		})
	}
}
