package linebuffer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jpalmerr/winevent"
)

func TestFromEvent(t *testing.T) {
	created := time.UnixMilli(1455736094000)
	now := time.UnixMilli(1700000000000)

	got := FromEvent(winevent.LogEvent{
		ProviderName: "Microsoft-Windows-DNS-Client",
		Message:      "DNS query is completed",
		TimeCreated:  created,
	}, now)

	want := Line{
		Kind:      "log",
		Timestamp: 1455736094000,
		Text:      "DNS query is completed",
		Source:    "Microsoft-Windows-DNS-Client",
	}
	if got != want {
		t.Errorf("FromEvent() = %+v, want %+v", got, want)
	}
}

func TestFromEvent_MissingTimestampUsesNow(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	got := FromEvent(winevent.LogEvent{Message: "x"}, now)
	if got.Timestamp != 1700000000123 {
		t.Errorf("Timestamp = %d, want %d", got.Timestamp, int64(1700000000123))
	}
}

func TestLine_JSONNames(t *testing.T) {
	data, err := json.Marshal(Line{Kind: "log", Timestamp: 1, Text: "t", Source: "s"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"kind":"log","timestamp":1,"text":"t","source":"s"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
