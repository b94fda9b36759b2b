package conversation

import (
	"time"

	"github.com/google/uuid"

	"mestre7c-backend/internal/models"
)

// Store is the ordered message sequence of one session. It is not safe for
// concurrent use; the Controller serialises access.
type Store struct {
	messages []models.Message
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Append adds a message and returns it.
func (s *Store) Append(role models.Role, text string) models.Message {
	m := models.Message{
		ID:        uuid.New(),
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, m)
	return m
}

// Remove deletes the message with id and reports whether it was present.
func (s *Store) Remove(id uuid.UUID) bool {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) Get(id uuid.UUID) (models.Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

func (s *Store) Clear() {
	s.messages = nil
}

func (s *Store) Len() int {
	return len(s.messages)
}

// Messages returns a copy of the sequence in conversational order.
func (s *Store) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
