// Package auditlog persists a durable per-session record of what a
// biometric capture session did: its start and finish times, its outcome,
// the SVID fingerprint, and the MCU command history, written once after
// run_post so a capture session survives the orb itself rebooting.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/orb-project/orb-core/internal/mcu"
)

// Entry is one session's durable record.
type Entry struct {
	SessionID   string
	StartedAt   time.Time
	FinishedAt  time.Time
	TimedOut    bool
	Captured    bool
	SVIDHash    uint64
	McuCommands []mcu.Command
}

// Store writes session Entries to Cloud Spanner.
type Store struct {
	client *spanner.Client
}

// NewStore dials Spanner at projects/<project>/instances/<instance>/databases/<database>.
func NewStore(ctx context.Context, project, instance, database string) (*Store, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, database)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("auditlog: new spanner client: %w", err)
	}
	return &Store{client: client}, nil
}

// Record writes one session's audit entry. The MCU command log is
// serialized to JSON since Spanner has no native representation for a
// heterogeneous command sequence.
func (s *Store) Record(ctx context.Context, e Entry) error {
	commands, err := marshalCommands(e.McuCommands)
	if err != nil {
		return fmt.Errorf("auditlog: marshal mcu commands: %w", err)
	}

	mutation := spanner.Insert("CaptureSessions",
		[]string{"SessionID", "StartedAt", "FinishedAt", "TimedOut", "Captured", "SVIDHash", "McuCommands"},
		[]interface{}{e.SessionID, e.StartedAt, e.FinishedAt, e.TimedOut, e.Captured, int64(e.SVIDHash), commands},
	)
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		return fmt.Errorf("auditlog: apply mutation: %w", err)
	}
	slog.Info("biometric session audit logged", "session_id", e.SessionID, "captured", e.Captured, "timed_out", e.TimedOut)
	return nil
}

func marshalCommands(commands []mcu.Command) (string, error) {
	rows := make([]map[string]any, 0, len(commands))
	for _, c := range commands {
		b, err := json.Marshal(c)
		if err != nil {
			return "", err
		}
		var raw map[string]any
		if err := json.Unmarshal(b, &raw); err != nil {
			return "", err
		}
		raw["type"] = fmt.Sprintf("%T", c)
		rows = append(rows, raw)
	}
	out, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Close releases the Spanner client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}
