package clock

import (
	"testing"
	"time"

	"tasksync/internal/timecube"
)

func TestSystemReportsConfiguredZone(t *testing.T) {
	c, err := NewSystem("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	now := c.Now()
	if got := now.Location().String(); got != "America/New_York" {
		t.Fatalf("zone = %s", got)
	}
	if d := time.Since(now.UTC()); d < 0 || d > time.Minute {
		t.Fatalf("clock skew %v", d)
	}
}

func TestSystemUnknownZone(t *testing.T) {
	if _, err := NewSystem("Mars/Olympus"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFixed(t *testing.T) {
	at := timecube.MustParse("2025-03-01T08:00:00", "Europe/Paris")
	if !(Fixed{At: at}).Now().Equal(at) {
		t.Fatal("fixed clock moved")
	}
}
