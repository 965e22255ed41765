// Package memory — чистая in-memory реализация портов хранилища для тестов и -dev.
// Каскад «родитель → потомки» выполняется на уровне приложения, повторяя поведение
// FK ON DELETE CASCADE в Postgres-реализации.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	blocks   map[string]model.TransferBlock
	texts    map[string]model.TextItem
	files    map[string]model.FileItem
	users    map[string]model.User
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]model.Session),
		blocks:   make(map[string]model.TransferBlock),
		texts:    make(map[string]model.TextItem),
		files:    make(map[string]model.FileItem),
		users:    make(map[string]model.User),
	}
}

// --- сессии ---

func (s *Store) Create(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.sessions {
		if other.Password == sess.Password {
			return repository.ErrPasswordTaken
		}
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) GetActiveByDeviceID(ctx context.Context, deviceID string, now time.Time) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.DeviceID == deviceID && sess.IsActive && now.Before(sess.ExpiresAt) {
			out := sess
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetByPassword(ctx context.Context, pwd string, now time.Time) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Password == pwd && sess.IsActive && now.Before(sess.ExpiresAt) {
			out := sess
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) DeactivateByDeviceID(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.DeviceID == deviceID && sess.IsActive {
			sess.IsActive = false
			s.sessions[id] = sess
		}
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			s.deleteSessionCascade(id)
			n++
		}
	}
	return n, nil
}

// deleteSessionCascade — под мьютексом: сессия и все её блоки с содержимым.
func (s *Store) deleteSessionCascade(sessionID string) {
	delete(s.sessions, sessionID)
	for id, b := range s.blocks {
		if b.SessionID == sessionID {
			s.deleteBlockCascade(id)
		}
	}
}

// --- блоки передачи ---

func (s *Store) CreateBlock(ctx context.Context, b *model.TransferBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blk := *b
	blk.TextItems = nil
	blk.FileItems = nil
	s.blocks[b.ID] = blk
	return nil
}

func (s *Store) InsertTextItem(ctx context.Context, t *model.TextItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[t.ID] = *t
	return nil
}

func (s *Store) InsertFileItems(ctx context.Context, items []model.FileItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range items {
		s.files[f.ID] = f
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string, now time.Time) ([]model.TransferBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blocks := make([]model.TransferBlock, 0, 8)
	for _, b := range s.blocks {
		if b.SessionID != sessionID || !now.Before(b.ExpiresAt) {
			continue
		}
		b.TextItems = []model.TextItem{}
		b.FileItems = []model.FileItem{}
		for _, t := range s.texts {
			if t.BlockID == b.ID {
				b.TextItems = append(b.TextItems, t)
			}
		}
		for _, f := range s.files {
			if f.BlockID == b.ID {
				b.FileItems = append(b.FileItems, f)
			}
		}
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].CreatedAt.After(blocks[j].CreatedAt) })
	return blocks, nil
}

func (s *Store) ExtendBlock(ctx context.Context, blockID string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok {
		return false, nil
	}
	b.ExpiresAt = until
	b.IsExpired = false
	s.blocks[blockID] = b
	return true, nil
}

func (s *Store) FileURLsByBlock(ctx context.Context, blockID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var urls []string
	for _, f := range s.files {
		if f.BlockID == blockID {
			urls = append(urls, f.URL)
		}
	}
	return urls, nil
}

func (s *Store) FileURLsExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var urls []string
	for _, f := range s.files {
		if b, ok := s.blocks[f.BlockID]; ok && b.ExpiresAt.Before(cutoff) {
			urls = append(urls, f.URL)
		}
	}
	return urls, nil
}

func (s *Store) GetFileItem(ctx context.Context, itemID string) (*model.FileItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[itemID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (s *Store) DeleteBlock(ctx context.Context, blockID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[blockID]; !ok {
		return false, nil
	}
	s.deleteBlockCascade(blockID)
	return true, nil
}

func (s *Store) deleteBlockCascade(blockID string) {
	delete(s.blocks, blockID)
	for id, t := range s.texts {
		if t.BlockID == blockID {
			delete(s.texts, id)
		}
	}
	for id, f := range s.files {
		if f.BlockID == blockID {
			delete(s.files, id)
		}
	}
}

func (s *Store) DeleteTextItem(ctx context.Context, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.texts[itemID]; !ok {
		return false, nil
	}
	delete(s.texts, itemID)
	return true, nil
}

func (s *Store) DeleteFileItem(ctx context.Context, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[itemID]; !ok {
		return false, nil
	}
	delete(s.files, itemID)
	return true, nil
}

func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, b := range s.blocks {
		if !b.IsExpired && b.ExpiresAt.Before(now) {
			b.IsExpired = true
			s.blocks[id] = b
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, b := range s.blocks {
		if b.ExpiresAt.Before(cutoff) {
			s.deleteBlockCascade(id)
			n++
		}
	}
	return n, nil
}

// --- пользователи ---

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}
