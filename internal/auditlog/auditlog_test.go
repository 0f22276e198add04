package auditlog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/orb-project/orb-core/internal/mcu"
)

func TestMarshalCommandsIncludesTypeTag(t *testing.T) {
	commands := []mcu.Command{
		mcu.SetIrLed{Wavelength: mcu.IrLed940},
		mcu.SetMirror{Phi: 1, Theta: 2},
	}
	out, err := marshalCommands(commands)
	if err != nil {
		t.Fatalf("marshalCommands: %v", err)
	}
	if !strings.Contains(out, "mcu.SetIrLed") || !strings.Contains(out, "mcu.SetMirror") {
		t.Fatalf("expected type tags in output, got %s", out)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestMarshalCommandsEmpty(t *testing.T) {
	out, err := marshalCommands(nil)
	if err != nil {
		t.Fatalf("marshalCommands: %v", err)
	}
	if out != "[]" {
		t.Fatalf("expected empty array, got %s", out)
	}
}
