package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tether/internal/modules/session/domain"
	sessionout "tether/internal/modules/session/port/out"
	"tether/internal/platform/markdown"
)

// VaultNoteStore writes one markdown note per ended session under
// dir/YYYY/MM/DD.
type VaultNoteStore struct {
	dir string
}

func NewVaultNoteStore(dir string) sessionout.NoteStore {
	return &VaultNoteStore{dir: dir}
}

func (s *VaultNoteStore) Save(_ context.Context, session domain.Session, events []domain.PauseEvent) (string, error) {
	if session.EndTime == nil {
		return "", fmt.Errorf("session %s is still open", session.ID)
	}
	date := session.StartTime
	dir := filepath.Join(s.dir, date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", date.Format("150405"), session.ID))

	elapsed, _ := session.EffectiveElapsed(*session.EndTime)
	fields := []markdown.Field{
		{Key: "schema_version", Value: domain.SchemaVersion},
		{Key: "id", Value: session.ID},
		{Key: "owner_id", Value: session.OwnerID},
		{Key: "started_at", Value: session.StartTime.Format(time.RFC3339)},
		{Key: "ended_at", Value: session.EndTime.Format(time.RFC3339)},
		{Key: "effective_minutes", Value: int(elapsed.Minutes())},
		{Key: "paused_minutes", Value: int(session.AccumulatedPause.Minutes())},
		{Key: "pauses", Value: len(events)},
		{Key: "hardcore", Value: session.IsHardcoreMode},
		{Key: "emergency_unlocked", Value: session.EmergencyUnlocked},
	}
	if session.GoalDuration != nil {
		fields = append(fields, markdown.Field{Key: "goal_minutes", Value: int(session.GoalDuration.Minutes())})
	}
	if session.EndReason != "" {
		fields = append(fields, markdown.Field{Key: "end_reason", Value: session.EndReason})
	}

	body := strings.Builder{}
	fmt.Fprintf(&body, "# Session %s\n\n", session.ID)
	fmt.Fprintf(&body, "- Effective: %s\n- Paused: %s\n", elapsed.Round(time.Second), session.AccumulatedPause.Round(time.Second))
	if len(events) > 0 {
		body.WriteString("\n## Pauses\n\n")
		for _, event := range events {
			line := fmt.Sprintf("- %s", event.StartTime.Format("15:04:05"))
			if event.EndTime != nil {
				line += fmt.Sprintf(" to %s (%s)", event.EndTime.Format("15:04:05"), event.Duration.Round(time.Second))
			}
			if event.Reason != "" {
				line += ": " + event.Reason
			}
			if event.OverrideUsed {
				line += " [override]"
			}
			body.WriteString(line + "\n")
		}
	}
	if session.Notes != "" {
		fmt.Fprintf(&body, "\n## Notes\n\n%s\n", session.Notes)
	}

	rendered, err := markdown.Render(fields, body.String())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	return path, nil
}
