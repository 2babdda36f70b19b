package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ilkoid/apichat/pkg/llm"
	"github.com/ilkoid/apichat/pkg/postprocess"
	"github.com/ilkoid/apichat/pkg/utils"
)

// Session - один диалог оператора с ассистентом.
//
// Сообщения одной сессии обрабатываются строго по очереди (turn).
// История меняется только после успешного сообщения: неудачное
// сообщение оставляет сессию в прежнем состоянии.
type Session struct {
	ID        string
	Artifacts *postprocess.ArtifactCounter
	CreatedAt time.Time

	// turn - ёмкость 1: один активный Send на сессию
	turn chan struct{}

	mu      sync.RWMutex
	history []llm.Message
}

// NewSession создаёт пустую сессию. Пустой id - новый uuid.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Session{
		ID:        id,
		Artifacts: postprocess.NewArtifactCounter(),
		CreatedAt: now,
		turn:      make(chan struct{}, 1),
	}
}

// acquire занимает очередь сессии или возвращает ошибку ctx.
func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquire занимает очередь без ожидания.
func (s *Session) tryAcquire() bool {
	select {
	case s.turn <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) release() {
	<-s.turn
}

// History возвращает копию истории.
func (s *Session) History() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]llm.Message(nil), s.history...)
}

// commit заменяет историю рабочей копией успешного сообщения.
func (s *Session) commit(history []llm.Message) {
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
}

// SessionStore - ограниченное хранилище сессий в памяти.
//
// При переполнении вытесняется давно не использованная сессия.
type SessionStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Session]
}

// NewSessionStore создаёт хранилище на size сессий.
func NewSessionStore(size int) (*SessionStore, error) {
	cache, err := lru.NewWithEvict(size, func(id string, _ *Session) {
		utils.Debug("Session evicted", "session_id", id)
	})
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	return &SessionStore{cache: cache}, nil
}

// GetOrCreate возвращает сессию по id или создаёт новую.
//
// Пустой id всегда создаёт новую сессию со сгенерированным id.
func (s *SessionStore) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.cache.Get(id); ok {
			return sess
		}
	}

	sess := NewSession(id)
	s.cache.Add(sess.ID, sess)
	utils.Debug("Session created", "session_id", sess.ID)
	return sess
}

// Get возвращает существующую сессию.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(id)
}

// Reset удаляет сессию. Возвращает false если её не было.
func (s *SessionStore) Reset(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Remove(id)
}

// Len возвращает количество сессий.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}
