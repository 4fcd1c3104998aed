package record

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// Session groups records captured during one stretch of work on a project.
// At most one session per project is active at a time.
type Session struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	Status    SessionStatus   `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Metadata  SessionMetadata `json:"metadata"`
}

// SessionMetadata records which tools touched the session.
type SessionMetadata struct {
	Tools []string `json:"tools,omitempty"`
}

// AddTool records a tool name once.
func (m *SessionMetadata) AddTool(tool string) {
	if tool == "" {
		return
	}
	for _, t := range m.Tools {
		if t == tool {
			return
		}
	}
	m.Tools = append(m.Tools, tool)
}

// Transition moves the session to the next status. Completed is terminal.
func (s *Session) Transition(next SessionStatus, now time.Time) error {
	if s.Status == next {
		return nil
	}
	switch s.Status {
	case SessionCompleted:
		return fmt.Errorf("session %s is completed", s.ID)
	case SessionActive, SessionPaused:
	default:
		return fmt.Errorf("session %s has unknown status %q", s.ID, s.Status)
	}

	switch next {
	case SessionActive, SessionPaused:
	case SessionCompleted:
		s.EndedAt = &now
	default:
		return fmt.Errorf("unknown session status %q", next)
	}
	s.Status = next
	return nil
}

// Project is a codebase identified by its canonical root path.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RootPath    string    `json:"root_path"`
	RemoteURL   string    `json:"remote_url,omitempty"`
	Language    string    `json:"language,omitempty"`
	Framework   string    `json:"framework,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
