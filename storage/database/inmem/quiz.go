package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) *quizRepository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CheckQuizUniqueness(ctx context.Context, courseID, slug string, excludedQuizzes ...quiz.Quiz) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

quizzes:
	for _, qz := range repo.db.quizzes {
		if qz.CourseID != courseID || qz.Slug != slug {
			continue
		}
		for _, excl := range excludedQuizzes {
			if excl.ID == qz.ID {
				continue quizzes
			}
		}
		return quiz.ErrQuizExists
	}
	return nil
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	qz.ID = uuid.New().String()
	repo.db.quizzes[qz.ID] = &qz
	return qz, nil
}

func (repo *quizRepository) QueryCourseQuizzes(ctx context.Context, courseID string) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.quizzes {
		if qz.CourseID == courseID && !qz.Draft {
			quizzes = append(quizzes, *qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if qz, ok := repo.db.quizzes[id]; ok {
		return *qz, nil
	}
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}

func (repo *quizRepository) GetQuizBySlug(ctx context.Context, courseID, slug string) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, qz := range repo.db.quizzes {
		if qz.CourseID == courseID && qz.Slug == slug {
			return *qz, nil
		}
	}
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}

func (repo *quizRepository) CreateQuestion(ctx context.Context, qst quiz.Question, quizIDs ...string) (quiz.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	qst.ID = uuid.New().String()
	repo.db.questions[qst.ID] = &qst
	for _, quizID := range quizIDs {
		repo.db.quizQuestions[quizID] = append(repo.db.quizQuestions[quizID], qst.ID)
	}
	return qst, nil
}

func (repo *quizRepository) QueryQuizQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := repo.db.quizQuestions[quizID]
	questions := make([]quiz.Question, 0, len(ids))
	for _, id := range ids {
		if qst, ok := repo.db.questions[id]; ok {
			questions = append(questions, *qst)
		}
	}
	return questions, nil
}

func (repo *quizRepository) GetQuestion(ctx context.Context, id string) (quiz.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if qst, ok := repo.db.questions[id]; ok {
		return *qst, nil
	}
	return quiz.Question{}, quiz.ErrQuestionNotFound
}

func (repo *quizRepository) CreateChoice(ctx context.Context, ch quiz.Choice) (quiz.Choice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ch.ID = uuid.New().String()
	repo.db.choices[ch.ID] = &ch
	return ch, nil
}

func (repo *quizRepository) QueryQuestionChoices(ctx context.Context, questionID string) ([]quiz.Choice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	choices := make([]quiz.Choice, 0)
	for _, ch := range repo.db.choices {
		if ch.QuestionID == questionID {
			choices = append(choices, *ch)
		}
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].ID < choices[j].ID })
	return choices, nil
}

func (repo *quizRepository) CreateSitting(ctx context.Context, s quiz.Sitting) (quiz.Sitting, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = uuid.New().String()
	stored := copySitting(s)
	repo.db.sittings[s.ID] = &stored
	return s, nil
}

func (repo *quizRepository) GetOpenSitting(ctx context.Context, userID, quizID string) (quiz.Sitting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.sittings {
		if s.UserID == userID && s.QuizID == quizID && !s.Complete {
			return copySitting(*s), nil
		}
	}
	return quiz.Sitting{}, quiz.ErrSittingNotFound
}

func (repo *quizRepository) HasCompletedSitting(ctx context.Context, userID, quizID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.sittings {
		if s.UserID == userID && s.QuizID == quizID && s.Complete {
			return true, nil
		}
	}
	return false, nil
}

func (repo *quizRepository) UpdateSitting(ctx context.Context, s quiz.Sitting) (quiz.Sitting, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sittings[s.ID]; !ok {
		return quiz.Sitting{}, quiz.ErrSittingNotFound
	}
	stored := copySitting(s)
	repo.db.sittings[s.ID] = &stored
	return s, nil
}

func (repo *quizRepository) DeleteSitting(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.sittings, id)
	return nil
}

func (repo *quizRepository) UpsertProgressRecord(ctx context.Context, userID string, rec quiz.ProgressRecord) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prog, ok := repo.db.progresses[userID]
	if !ok {
		prog = &quiz.Progress{ID: uuid.New().String(), UserID: userID}
		repo.db.progresses[userID] = prog
	}
	for i, r := range prog.Records {
		if r.QuizID == rec.QuizID {
			prog.Records[i] = rec
			return nil
		}
	}
	prog.Records = append(prog.Records, rec)
	return nil
}

func (repo *quizRepository) GetProgress(ctx context.Context, userID string) (quiz.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prog, ok := repo.db.progresses[userID]; ok {
		records := make([]quiz.ProgressRecord, len(prog.Records))
		copy(records, prog.Records)
		return quiz.Progress{ID: prog.ID, UserID: prog.UserID, Records: records}, nil
	}
	return quiz.Progress{}, quiz.ErrProgressNotFound
}

// copySitting detaches slices and the answers map so callers cannot mutate stored state.
func copySitting(s quiz.Sitting) quiz.Sitting {
	cp := s
	cp.QuestionOrder = append([]string(nil), s.QuestionOrder...)
	cp.Unanswered = append([]string(nil), s.Unanswered...)
	cp.Incorrect = append([]string(nil), s.Incorrect...)
	cp.UserAnswers = make(map[string]string, len(s.UserAnswers))
	for k, v := range s.UserAnswers {
		cp.UserAnswers[k] = v
	}
	return cp
}
