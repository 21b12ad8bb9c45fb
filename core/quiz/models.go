package quiz

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

// Categories
const (
	CategoryAssignment = "assignment"
	CategoryExam       = "exam"
	CategoryPractice   = "practice"
)

type Quiz struct {
	ID            string    `json:"id"`
	CourseID      string    `json:"course_id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	RandomOrder   bool      `json:"random_order"`
	AnswersAtEnd  bool      `json:"answers_at_end"`
	ExamPaper     bool      `json:"exam_paper"`
	SingleAttempt bool      `json:"single_attempt"`
	Draft         bool      `json:"draft"`
	PassMark      int       `json:"pass_mark"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// Question is a multiple-choice question; it may belong to several quizzes.
type Question struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Explanation string   `json:"explanation,omitempty"`
	Choices     []Choice `json:"choices,omitempty"`
}

type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	Correct    bool   `json:"-"` // never serialized to quiz takers
}

// Sitting tracks a user's pass through a quiz: the questions served, those
// still unanswered, the ones answered incorrectly and the running score.
type Sitting struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	QuizID        string            `json:"quiz_id"`
	CourseID      string            `json:"course_id"`
	QuestionOrder []string          `json:"question_order"`
	Unanswered    []string          `json:"unanswered"`
	Incorrect     []string          `json:"incorrect"`
	UserAnswers   map[string]string `json:"user_answers"`
	CurrentScore  int               `json:"current_score"`
	Complete      bool              `json:"complete"`
	Start         time.Time         `json:"start"` // UTC
	End           time.Time         `json:"end"`   // UTC
}

// CurrentQuestionID returns the next question to be answered, or "" when done.
func (s *Sitting) CurrentQuestionID() string {
	if len(s.Unanswered) == 0 {
		return ""
	}
	return s.Unanswered[0]
}

// RecordAnswer marks the current question answered with the given choice.
func (s *Sitting) RecordAnswer(questionID, choiceID string, correct bool) {
	if correct {
		s.CurrentScore++
	} else {
		s.Incorrect = append(s.Incorrect, questionID)
	}
	if s.UserAnswers == nil {
		s.UserAnswers = make(map[string]string)
	}
	s.UserAnswers[questionID] = choiceID
	if len(s.Unanswered) > 0 && s.Unanswered[0] == questionID {
		s.Unanswered = s.Unanswered[1:]
	}
}

func (s *Sitting) MaxScore() int { return len(s.QuestionOrder) }

func (s *Sitting) Answered() int { return len(s.QuestionOrder) - len(s.Unanswered) }

func (s *Sitting) PercentCorrect() int {
	if max := s.MaxScore(); max > 0 {
		return s.CurrentScore * 100 / max
	}
	return 0
}

// CheckIfPassed reports whether the sitting meets the quiz pass mark.
func (s *Sitting) CheckIfPassed(passMark int) bool {
	return s.PercentCorrect() >= passMark
}

// Progress accumulates a user's score records across quizzes.
type Progress struct {
	ID      string           `json:"id"`
	UserID  string           `json:"user_id"`
	Records []ProgressRecord `json:"records"`
}

type ProgressRecord struct {
	QuizID   string `json:"quiz_id"`
	Score    int    `json:"score"`
	Possible int    `json:"possible"`
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	CourseID      string `json:"course_id" validate:"required"`
	Title         string `json:"title" validate:"required,max=60"`
	Slug          string `json:"slug" validate:"required,max=60,slug"`
	Description   string `json:"description"`
	Category      string `json:"category" validate:"required,oneof=assignment exam practice"`
	RandomOrder   bool   `json:"random_order"`
	AnswersAtEnd  bool   `json:"answers_at_end"`
	ExamPaper     bool   `json:"exam_paper"`
	SingleAttempt bool   `json:"single_attempt"`
	Draft         bool   `json:"draft"`
	PassMark      int    `json:"pass_mark" validate:"min=0,max=100"`
}

func (nq *NewQuiz) Validate(ctx context.Context, svc *Service) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Slug = core.CleanString(nq.Slug, true /* lower */)
	nq.Description = core.CleanString(nq.Description)

	if err := core.Validate.Struct(nq); err != nil {
		return err
	}
	return svc.checkQuizUniqueness(ctx, nq.CourseID, nq.Slug)
}

// NewQuestion contains information needed to create a new Question.
type NewQuestion struct {
	Content     string   `json:"content" validate:"required,max=1000"`
	Explanation string   `json:"explanation" validate:"max=2000"`
	QuizIDs     []string `json:"quiz_ids" validate:"required,min=1"`
}

func (nq *NewQuestion) Validate() error {
	nq.Content = core.CleanString(nq.Content)
	nq.Explanation = core.CleanString(nq.Explanation)
	return core.Validate.Struct(nq)
}

// NewChoice contains information needed to add a Choice to a Question.
type NewChoice struct {
	QuestionID string `json:"question_id" validate:"required"`
	Text       string `json:"text" validate:"required,max=1000"`
	Correct    bool   `json:"correct"`
}

func (nc *NewChoice) Validate() error {
	nc.Text = core.CleanString(nc.Text)
	return core.Validate.Struct(nc)
}

// Answer is a quiz taker's answer submission for the current question.
type Answer struct {
	ChoiceID string `json:"answers" validate:"required"`
}

func (a *Answer) Validate() error {
	a.ChoiceID = core.CleanString(a.ChoiceID)
	return core.Validate.Struct(a)
}
