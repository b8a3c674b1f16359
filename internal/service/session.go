package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/store"
)

type sessionKey struct {
	projectID uuid.UUID
	sourceID  uuid.UUID
}

// sessionEntry guards one loaded session. Events emitted while a change is
// applied are held in pending until the change is committed.
type sessionEntry struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	session  *coding.Session
	pending  []coding.Event
	lastUsed time.Time
}

func (e *sessionEntry) reset() {
	e.session = nil
	e.pending = nil
}

func (s *CodingService) entry(key sessionKey) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[key]
	if !ok {
		e = &sessionEntry{}
		s.sessions[key] = e
	}
	e.lastUsed = s.now()
	return e
}

// open returns the session of the entry, loading it from the store on first use.
// The entry lock must be held.
func (s *CodingService) open(ctx context.Context, st store.Store, key sessionKey, e *sessionEntry) (*coding.Session, error) {
	if e.session != nil {
		return e.session, nil
	}

	session, err := s.load(ctx, st, key)
	if err != nil {
		return nil, err
	}
	session.Subscribe(coding.ObserverFunc(func(event coding.Event) {
		e.pending = append(e.pending, event)
	}))
	e.session = session

	return session, nil
}

func (s *CodingService) load(ctx context.Context, st store.Store, key sessionKey) (*coding.Session, error) {
	source, err := st.GetSource(ctx, key.sourceID)
	if err != nil {
		return nil, err
	}
	if source.ProjectID != key.projectID.String() {
		return nil, fmt.Errorf("%w: source %s, project %s", ErrSourceOutsideProject, key.sourceID, key.projectID)
	}

	codebookRows, err := st.ListCodebooks(ctx, key.projectID)
	if err != nil {
		return nil, err
	}
	codebooks := make([]coding.Codebook, 0, len(codebookRows))
	codebookIDs := make([]uuid.UUID, 0, len(codebookRows))
	for _, row := range codebookRows {
		codebooks = append(codebooks, row.IntoCodebook())
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: codebook id %q", coding.ErrConstraintViolation, row.ID)
		}
		codebookIDs = append(codebookIDs, id)
	}

	codeRows, err := st.ListCodes(ctx, codebookIDs)
	if err != nil {
		return nil, err
	}
	codes := make([]coding.Code, 0, len(codeRows))
	for _, row := range codeRows {
		codes = append(codes, row.IntoCode())
	}

	selectionRows, err := st.ListSelections(ctx, key.sourceID)
	if err != nil {
		return nil, err
	}
	selections := make([]coding.Selection, 0, len(selectionRows))
	for _, row := range selectionRows {
		selections = append(selections, row.IntoSelection())
	}

	session, err := coding.NewSession(coding.SessionConfig{
		ProjectID:  key.projectID.String(),
		SourceID:   key.sourceID.String(),
		Text:       source.Content,
		Codebooks:  codebooks,
		Codes:      codes,
		Selections: selections,
	})
	if err != nil {
		return nil, err
	}

	logrus.Debugf("loaded session of source %s: %d codebooks, %d codes, %d selections",
		key.sourceID, len(codebooks), len(codes), len(selections))

	return session, nil
}

// lockProject takes the project lock and returns its release. Every session
// of a project carries a copy of the code hierarchy, so a structural change
// holds the lock exclusively from its check until the other sessions are evicted.
func (s *CodingService) lockProject(projectID uuid.UUID, exclusive bool) func() {
	s.mu.Lock()
	l, ok := s.projects[projectID]
	if !ok {
		l = &sync.RWMutex{}
		s.projects[projectID] = l
	}
	s.mu.Unlock()

	if exclusive {
		l.Lock()
		return l.Unlock
	}
	l.RLock()
	return l.RUnlock
}

// mutation applies a change to the session and returns the writes that make
// it durable. A nil persist means the change lives only in memory.
type mutation func(session *coding.Session) (persist func(ctx context.Context, tx store.Store) error, err error)

func (s *CodingService) mutate(ctx context.Context, projectID, sourceID uuid.UUID, structural bool, m mutation) error {
	st, err := s.provider.Provide(projectID)
	if err != nil {
		return err
	}

	release := s.lockProject(projectID, structural)
	e, events, err := s.apply(ctx, st, sessionKey{projectID: projectID, sourceID: sourceID}, structural, m)
	release()
	if err != nil {
		return err
	}

	// the notify lock was taken before the entry lock was released, so
	// events of one source reach observers in commit order
	defer e.notifyMu.Unlock()
	for _, event := range events {
		for _, o := range s.observers {
			o.Notify(event)
		}
	}

	return nil
}

// apply runs the mutation under the entry lock and returns the committed
// events. On success the entry's notify lock is held by the caller.
func (s *CodingService) apply(ctx context.Context, st store.Store, key sessionKey, structural bool, m mutation) (*sessionEntry, []coding.Event, error) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := s.open(ctx, st, key, e)
	if err != nil {
		return nil, nil, err
	}

	persist, err := m(session)
	if err != nil {
		e.pending = nil
		return nil, nil, err
	}

	if persist != nil {
		err = st.Transaction(ctx, func(tx store.Store) error {
			return persist(ctx, tx)
		})
		if err != nil {
			logrus.Errorf("failed to persist change to source %s, dropping session: %v", key.sourceID, err)
			e.reset()
			s.invalidate(ctx, key.sourceID)
			return nil, nil, err
		}
	}

	s.invalidate(ctx, key.sourceID)
	if structural {
		s.evictProject(ctx, st, key.projectID, key)
	}

	events := e.pending
	e.pending = nil
	e.notifyMu.Lock()

	return e, events, nil
}

// read runs fn against the session while holding its lock.
func (s *CodingService) read(ctx context.Context, projectID, sourceID uuid.UUID, fn func(session *coding.Session) error) error {
	st, err := s.provider.Provide(projectID)
	if err != nil {
		return err
	}

	release := s.lockProject(projectID, false)
	defer release()

	key := sessionKey{projectID: projectID, sourceID: sourceID}
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := s.open(ctx, st, key, e)
	if err != nil {
		return err
	}

	return fn(session)
}

func (s *CodingService) invalidate(ctx context.Context, sourceIDs ...uuid.UUID) {
	if err := s.cache.Invalidate(ctx, sourceIDs...); err != nil {
		logrus.Warnf("failed to invalidate segments of %d sources: %v", len(sourceIDs), err)
	}
}

// evictProject drops every other open session of the project so it reloads
// the code structure on next use, and drops the cached segments of every
// source of the project. The project lock must be held exclusively.
func (s *CodingService) evictProject(ctx context.Context, st store.Store, projectID uuid.UUID, except sessionKey) {
	s.mu.Lock()
	evicted := 0
	for key := range s.sessions {
		if key.projectID == projectID && key != except {
			delete(s.sessions, key)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		logrus.Debugf("evicted %d sessions of project %s", evicted, projectID)
	}

	sources, err := st.ListSources(ctx, projectID)
	if err != nil {
		logrus.Warnf("failed to list sources of project %s: %v", projectID, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(sources))
	for _, source := range sources {
		if id, err := uuid.Parse(source.ID); err == nil {
			ids = append(ids, id)
		}
	}
	s.invalidate(ctx, ids...)
}

// Evict drops the session of a source. The next call reloads it from the store.
func (s *CodingService) Evict(projectID, sourceID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{projectID: projectID, sourceID: sourceID})
}

// EvictIdle drops the sessions unused for longer than maxIdle and returns how
// many were dropped. Sessions busy with a call are skipped.
func (s *CodingService) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(-maxIdle)
	count := 0
	for key, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(deadline) {
			delete(s.sessions, key)
			count++
		}
		e.mu.Unlock()
	}

	return count
}

// OpenSessions returns the number of sessions held in memory.
func (s *CodingService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
