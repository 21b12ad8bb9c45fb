package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrSittingNotFound  = errors.New("sitting not found")
	ErrProgressNotFound = errors.New("progress not found")
	ErrQuizExists       = errors.New("quiz with this slug already exists for this course")

	ErrNoQuestions   = errors.New("this quiz has no questions available")
	ErrSingleAttempt = errors.New("you have already completed this quiz, only one attempt is permitted")
	ErrNotEnrolled   = errors.New("you are not enrolled in this course")

	// result messages
	PassMessage = "You have passed this quiz, congratulations!"
	FailMessage = "You have failed this quiz, review the course material and try again."

	ShuffleFunc = rand.Shuffle // mockable
)

type (
	Repository interface {
		CheckQuizUniqueness(ctx context.Context, courseID, slug string, excludedQuizzes ...Quiz) error
		CreateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		// QueryCourseQuizzes returns the course's non-draft quizzes, newest first.
		QueryCourseQuizzes(ctx context.Context, courseID string) ([]Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		GetQuizBySlug(ctx context.Context, courseID, slug string) (Quiz, error)

		CreateQuestion(ctx context.Context, qst Question, quizIDs ...string) (Question, error)
		// QueryQuizQuestions returns a quiz's questions in insertion order.
		QueryQuizQuestions(ctx context.Context, quizID string) ([]Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		CreateChoice(ctx context.Context, ch Choice) (Choice, error)
		QueryQuestionChoices(ctx context.Context, questionID string) ([]Choice, error)

		CreateSitting(ctx context.Context, s Sitting) (Sitting, error)
		GetOpenSitting(ctx context.Context, userID, quizID string) (Sitting, error)
		HasCompletedSitting(ctx context.Context, userID, quizID string) (bool, error)
		UpdateSitting(ctx context.Context, s Sitting) (Sitting, error)
		DeleteSitting(ctx context.Context, id string) error

		// UpsertProgressRecord records the user's latest score for a quiz,
		// creating the user's Progress on first use.
		UpsertProgressRecord(ctx context.Context, userID string, rec ProgressRecord) error
		GetProgress(ctx context.Context, userID string) (Progress, error)
	}

	// EnrollmentChecker guards quiz taking behind course enrollment.
	EnrollmentChecker interface {
		IsUserEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	}

	Service struct {
		repo       Repository
		enrollment EnrollmentChecker
	}
)

func NewService(repo Repository, enrollment EnrollmentChecker) *Service {
	return &Service{repo: repo, enrollment: enrollment}
}

func (svc *Service) checkQuizUniqueness(ctx context.Context, courseID, slug string, exclQuizzes ...Quiz) error {
	if err := svc.repo.CheckQuizUniqueness(ctx, courseID, slug, exclQuizzes...); err != nil {
		if err == ErrQuizExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nq NewQuiz) (Quiz, error) {
	now := time.Now().UTC()
	qz := Quiz{
		CourseID:      nq.CourseID,
		Title:         nq.Title,
		Slug:          nq.Slug,
		Description:   nq.Description,
		Category:      nq.Category,
		RandomOrder:   nq.RandomOrder,
		AnswersAtEnd:  nq.AnswersAtEnd,
		ExamPaper:     nq.ExamPaper,
		SingleAttempt: nq.SingleAttempt,
		Draft:         nq.Draft,
		PassMark:      nq.PassMark,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateQuiz(ctx, qz)
}

func (svc *Service) QueryByCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	return svc.repo.QueryCourseQuizzes(ctx, courseID)
}

func (svc *Service) GetBySlug(ctx context.Context, courseID, slug string) (Quiz, error) {
	qz, err := svc.repo.GetQuizBySlug(ctx, courseID, core.CleanString(slug, true /* lower */))
	if err != nil {
		return Quiz{}, err
	}
	if qz.Draft {
		return Quiz{}, ErrQuizNotFound
	}
	return qz, nil
}

func (svc *Service) AddQuestion(ctx context.Context, nq NewQuestion) (Question, error) {
	for _, quizID := range nq.QuizIDs {
		if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
			if err == ErrQuizNotFound {
				return Question{}, core.NewValidationError(err, core.FieldError{Field: "quiz_ids", Error: err.Error()})
			}
			return Question{}, err
		}
	}
	qst := Question{Content: nq.Content, Explanation: nq.Explanation}
	return svc.repo.CreateQuestion(ctx, qst, nq.QuizIDs...)
}

func (svc *Service) AddChoice(ctx context.Context, nc NewChoice) (Choice, error) {
	if _, err := svc.repo.GetQuestion(ctx, nc.QuestionID); err != nil {
		if err == ErrQuestionNotFound {
			return Choice{}, core.NewValidationError(err, core.FieldError{Field: "question_id", Error: err.Error()})
		}
		return Choice{}, err
	}
	ch := Choice{QuestionID: nc.QuestionID, Text: nc.Text, Correct: nc.Correct}
	return svc.repo.CreateChoice(ctx, ch)
}

// TakeState is what a quiz taker sees after starting a quiz or answering a question.
type TakeState struct {
	Quiz      Quiz          `json:"quiz"`
	Question  *Question     `json:"question,omitempty"` // next question to answer; nil when completed
	Previous  *Previous     `json:"previous,omitempty"` // hidden when Quiz.AnswersAtEnd
	Progress  TakenProgress `json:"progress"`
	Completed bool          `json:"completed"`
	Result    *Result       `json:"result,omitempty"`
}

type TakenProgress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// Previous reveals how the last submitted question was answered.
type Previous struct {
	Question       Question `json:"question"`
	Answer         Choice   `json:"answer"`
	Correct        bool     `json:"correct"`
	CorrectAnswers []Choice `json:"correct_answers"`
}

type Result struct {
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
	Percent  int    `json:"percent"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// Take starts a new sitting for the user on the course's quiz, or resumes the
// open one, and returns the current question.
func (svc *Service) Take(ctx context.Context, userID, courseID, slug string) (TakeState, error) {
	qz, sitting, err := svc.startOrResume(ctx, userID, courseID, slug)
	if err != nil {
		return TakeState{}, err
	}

	state := TakeState{
		Quiz:     qz,
		Progress: TakenProgress{Answered: sitting.Answered(), Total: sitting.MaxScore()},
	}
	qst, err := svc.getQuestionWithChoices(ctx, sitting.CurrentQuestionID())
	if err != nil {
		return TakeState{}, err
	}
	state.Question = &qst
	return state, nil
}

// SubmitAnswer records the user's answer to the current question of their
// sitting, advancing it and completing the quiz after the last question.
func (svc *Service) SubmitAnswer(ctx context.Context, userID, courseID, slug string, ans Answer) (TakeState, error) {
	qz, sitting, err := svc.startOrResume(ctx, userID, courseID, slug)
	if err != nil {
		return TakeState{}, err
	}

	qst, err := svc.getQuestionWithChoices(ctx, sitting.CurrentQuestionID())
	if err != nil {
		return TakeState{}, err
	}

	var answer *Choice
	for i, ch := range qst.Choices {
		if ch.ID == ans.ChoiceID {
			answer = &qst.Choices[i]
			break
		}
	}
	if answer == nil {
		return TakeState{}, core.NewValidationError(nil, core.FieldError{
			Field: "answers",
			Error: fmt.Sprintf("select a valid choice: %s is not one of the available choices", ans.ChoiceID),
		})
	}

	sitting.RecordAnswer(qst.ID, answer.ID, answer.Correct)

	if err := svc.repo.UpsertProgressRecord(ctx, userID, ProgressRecord{
		QuizID:   qz.ID,
		Score:    sitting.CurrentScore,
		Possible: sitting.MaxScore(),
	}); err != nil {
		return TakeState{}, err
	}

	state := TakeState{
		Quiz:     qz,
		Progress: TakenProgress{Answered: sitting.Answered(), Total: sitting.MaxScore()},
	}
	if !qz.AnswersAtEnd {
		var correct []Choice
		for _, ch := range qst.Choices {
			if ch.Correct {
				correct = append(correct, ch)
			}
		}
		state.Previous = &Previous{
			Question:       qst,
			Answer:         *answer,
			Correct:        answer.Correct,
			CorrectAnswers: correct,
		}
	}

	if sitting.CurrentQuestionID() == "" { // that was the last question
		sitting.Complete = true
		sitting.End = time.Now().UTC()

		state.Completed = true
		state.Result = &Result{
			Score:    sitting.CurrentScore,
			MaxScore: sitting.MaxScore(),
			Percent:  sitting.PercentCorrect(),
			Passed:   sitting.CheckIfPassed(qz.PassMark),
		}
		if state.Result.Passed {
			state.Result.Message = PassMessage
		} else {
			state.Result.Message = FailMessage
		}

		// only exam papers are archived
		if qz.ExamPaper {
			if _, err := svc.repo.UpdateSitting(ctx, sitting); err != nil {
				return TakeState{}, err
			}
		} else if err := svc.repo.DeleteSitting(ctx, sitting.ID); err != nil {
			return TakeState{}, err
		}
		return state, nil
	}

	if _, err := svc.repo.UpdateSitting(ctx, sitting); err != nil {
		return TakeState{}, err
	}
	next, err := svc.getQuestionWithChoices(ctx, sitting.CurrentQuestionID())
	if err != nil {
		return TakeState{}, err
	}
	state.Question = &next
	return state, nil
}

func (svc *Service) GetProgress(ctx context.Context, userID string) (Progress, error) {
	prog, err := svc.repo.GetProgress(ctx, userID)
	if err == ErrProgressNotFound {
		return Progress{UserID: userID, Records: []ProgressRecord{}}, nil
	}
	return prog, err
}

func (svc *Service) startOrResume(ctx context.Context, userID, courseID, slug string) (Quiz, Sitting, error) {
	qz, err := svc.GetBySlug(ctx, courseID, slug)
	if err != nil {
		return Quiz{}, Sitting{}, err
	}

	enrolled, err := svc.enrollment.IsUserEnrolled(ctx, userID, qz.CourseID)
	if err != nil {
		return Quiz{}, Sitting{}, err
	}
	if !enrolled {
		return Quiz{}, Sitting{}, core.NewValidationError(ErrNotEnrolled)
	}

	questions, err := svc.repo.QueryQuizQuestions(ctx, qz.ID)
	if err != nil {
		return Quiz{}, Sitting{}, err
	}
	if len(questions) == 0 {
		return Quiz{}, Sitting{}, core.NewValidationError(ErrNoQuestions)
	}

	if qz.SingleAttempt {
		done, err := svc.repo.HasCompletedSitting(ctx, userID, qz.ID)
		if err != nil {
			return Quiz{}, Sitting{}, err
		}
		if done {
			return Quiz{}, Sitting{}, core.NewValidationError(ErrSingleAttempt)
		}
	}

	sitting, err := svc.repo.GetOpenSitting(ctx, userID, qz.ID)
	if err == ErrSittingNotFound {
		sitting, err = svc.newSitting(ctx, userID, qz, questions)
	}
	if err != nil {
		return Quiz{}, Sitting{}, err
	}
	return qz, sitting, nil
}

func (svc *Service) newSitting(ctx context.Context, userID string, qz Quiz, questions []Question) (Sitting, error) {
	order := make([]string, 0, len(questions))
	for _, qst := range questions {
		order = append(order, qst.ID)
	}
	if qz.RandomOrder {
		ShuffleFunc(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	unanswered := make([]string, len(order))
	copy(unanswered, order)

	return svc.repo.CreateSitting(ctx, Sitting{
		UserID:        userID,
		QuizID:        qz.ID,
		CourseID:      qz.CourseID,
		QuestionOrder: order,
		Unanswered:    unanswered,
		Incorrect:     []string{},
		UserAnswers:   make(map[string]string),
		Start:         time.Now().UTC(),
	})
}

func (svc *Service) getQuestionWithChoices(ctx context.Context, id string) (Question, error) {
	qst, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	choices, err := svc.repo.QueryQuestionChoices(ctx, qst.ID)
	if err != nil {
		return Question{}, err
	}
	qst.Choices = choices
	return qst, nil
}
