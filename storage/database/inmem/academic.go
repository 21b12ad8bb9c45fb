package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) CheckSessionUniqueness(ctx context.Context, name string, excludedSessions ...academic.Session) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

sessions:
	for _, sess := range repo.db.sessions {
		if sess.Name != name {
			continue
		}
		for _, excl := range excludedSessions {
			if excl.ID == sess.ID {
				continue sessions
			}
		}
		return academic.ErrSessionExists
	}
	return nil
}

func (repo *academicRepository) CreateSession(ctx context.Context, sess academic.Session) (academic.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sess.IsCurrent {
		for _, prev := range repo.db.sessions {
			prev.IsCurrent = false
		}
	}
	sess.ID = uuid.New().String()
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *academicRepository) QuerySessions(ctx context.Context) ([]academic.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]academic.Session, 0, len(repo.db.sessions))
	for _, sess := range repo.db.sessions {
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].IsCurrent != sessions[j].IsCurrent {
			return sessions[i].IsCurrent
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (repo *academicRepository) GetSession(ctx context.Context, id string) (academic.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return academic.Session{}, academic.ErrSessionNotFound
}

func (repo *academicRepository) GetCurrentSession(ctx context.Context) (academic.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sess := range repo.db.sessions {
		if sess.IsCurrent {
			return *sess, nil
		}
	}
	return academic.Session{}, academic.ErrSessionNotFound
}

func (repo *academicRepository) UpdateSession(ctx context.Context, sess academic.Session) (academic.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.sessions[sess.ID]
	if !ok {
		return academic.Session{}, academic.ErrSessionNotFound
	}
	sess.CreatedAt = orig.CreatedAt
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *academicRepository) DeleteSession(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.sessions, id)

	// semesters go with their session
	for semID, sem := range repo.db.semesters {
		if sem.SessionID == id {
			delete(repo.db.semesters, semID)
		}
	}
	return nil
}

func (repo *academicRepository) CreateSemester(ctx context.Context, sem academic.Semester) (academic.Semester, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sem.IsCurrent {
		for _, prev := range repo.db.semesters {
			prev.IsCurrent = false
		}
	}
	sem.ID = uuid.New().String()
	repo.db.semesters[sem.ID] = &sem
	return sem, nil
}

func (repo *academicRepository) QuerySemesters(ctx context.Context) ([]academic.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	semesters := make([]academic.Semester, 0, len(repo.db.semesters))
	for _, sem := range repo.db.semesters {
		semesters = append(semesters, *sem)
	}
	sort.Slice(semesters, func(i, j int) bool {
		if semesters[i].IsCurrent != semesters[j].IsCurrent {
			return semesters[i].IsCurrent
		}
		return semesters[i].CreatedAt.After(semesters[j].CreatedAt)
	})
	return semesters, nil
}

func (repo *academicRepository) GetSemester(ctx context.Context, id string) (academic.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sem, ok := repo.db.semesters[id]; ok {
		return *sem, nil
	}
	return academic.Semester{}, academic.ErrSemesterNotFound
}

func (repo *academicRepository) GetCurrentSemester(ctx context.Context) (academic.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sem := range repo.db.semesters {
		if sem.IsCurrent {
			return *sem, nil
		}
	}
	return academic.Semester{}, academic.ErrSemesterNotFound
}

func (repo *academicRepository) UpdateSemester(ctx context.Context, sem academic.Semester) (academic.Semester, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.semesters[sem.ID]
	if !ok {
		return academic.Semester{}, academic.ErrSemesterNotFound
	}
	sem.CreatedAt = orig.CreatedAt
	repo.db.semesters[sem.ID] = &sem
	return sem, nil
}

func (repo *academicRepository) DeleteSemester(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.semesters, id)
	return nil
}
