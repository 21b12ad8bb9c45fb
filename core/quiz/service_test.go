package quiz_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/quiz"
	"github.com/trezcool/shule/core/user"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

type fixture struct {
	svc      *quiz.Service
	quizRepo quiz.Repository
	crsRepo  course.Repository
	usrRepo  user.Repository

	student user.User
	course  course.Course
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	f := &fixture{
		quizRepo: inmemdb.NewQuizRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		usrRepo:  inmemdb.NewUserRepository(db),
	}
	f.svc = quiz.NewService(f.quizRepo, course.NewService(f.crsRepo))

	f.student = testutil.CreateUser(t, f.usrRepo, "Student", "student", "student@test.cd", "", user.StudentRoles, true)
	prog := testutil.CreateProgram(t, f.crsRepo, "Computer Science")
	f.course = testutil.CreateCourse(t, f.crsRepo, "Algorithms", "algorithms", prog.ID)
	std := testutil.CreateStudent(t, f.crsRepo, f.student.ID, prog.ID)
	testutil.EnrollStudent(t, f.crsRepo, std.ID, f.course.ID)
	return f
}

// addQuestions gives the quiz n questions of two choices each; the first
// choice is always the correct one.
func (f *fixture) addQuestions(t *testing.T, quizID string, n int) []quiz.Question {
	t.Helper()

	questions := make([]quiz.Question, 0, n)
	for i := 0; i < n; i++ {
		qst := testutil.CreateQuestion(t, f.quizRepo, fmt.Sprintf("Question %d?", i+1), quizID)
		testutil.CreateChoice(t, f.quizRepo, qst.ID, "right", true)
		testutil.CreateChoice(t, f.quizRepo, qst.ID, "wrong", false)
		questions = append(questions, qst)
	}
	return questions
}

func assertValidationErr(t *testing.T, err, want error) {
	t.Helper()

	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
	}
	if want != nil && vErr.Err != want {
		t.Errorf("ValidationError.Err = %v, want %v", vErr.Err, want)
	}
}

// answer fetches the current question's choice by correctness and submits it.
func (f *fixture) answer(t *testing.T, slug string, correct bool) quiz.TakeState {
	t.Helper()

	ctx := context.Background()
	state, err := f.svc.Take(ctx, f.student.ID, f.course.ID, slug)
	if err != nil {
		t.Fatalf("Take() failed: %v", err)
	}
	var choiceID string
	for _, ch := range state.Question.Choices {
		if ch.Correct == correct {
			choiceID = ch.ID
			break
		}
	}
	state, err = f.svc.SubmitAnswer(ctx, f.student.ID, f.course.ID, slug, quiz.Answer{ChoiceID: choiceID})
	if err != nil {
		t.Fatalf("SubmitAnswer() failed: %v", err)
	}
	return state
}

func TestTakeGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("unknown quiz", func(t *testing.T) {
		if _, err := f.svc.Take(ctx, f.student.ID, f.course.ID, "nope"); err != quiz.ErrQuizNotFound {
			t.Errorf("Take() error = %v, want %v", err, quiz.ErrQuizNotFound)
		}
	})

	t.Run("draft quiz is hidden", func(t *testing.T) {
		testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Draft", Slug: "draft", Draft: true})
		if _, err := f.svc.Take(ctx, f.student.ID, f.course.ID, "draft"); err != quiz.ErrQuizNotFound {
			t.Errorf("Take() error = %v, want %v", err, quiz.ErrQuizNotFound)
		}
	})

	t.Run("no questions", func(t *testing.T) {
		testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Empty", Slug: "empty"})
		_, err := f.svc.Take(ctx, f.student.ID, f.course.ID, "empty")
		assertValidationErr(t, err, quiz.ErrNoQuestions)
	})

	t.Run("not enrolled", func(t *testing.T) {
		other := testutil.CreateUser(t, f.usrRepo, "Other", "other1", "other@test.cd", "", user.StudentRoles, true)
		qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Guarded", Slug: "guarded"})
		f.addQuestions(t, qz.ID, 1)
		_, err := f.svc.Take(ctx, other.ID, f.course.ID, "guarded")
		assertValidationErr(t, err, quiz.ErrNotEnrolled)
	})
}

func TestTakeServesQuestionsInOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Ordered", Slug: "ordered", PassMark: 50})
	questions := f.addQuestions(t, qz.ID, 3)

	state, err := f.svc.Take(ctx, f.student.ID, f.course.ID, "ordered")
	if err != nil {
		t.Fatalf("Take() failed: %v", err)
	}
	if state.Question == nil {
		t.Fatal("Take() returned no question")
	}
	if state.Question.ID != questions[0].ID {
		t.Errorf("first question = %s, want %s", state.Question.ID, questions[0].ID)
	}
	if len(state.Question.Choices) != 2 {
		t.Errorf("question has %d choices, want 2", len(state.Question.Choices))
	}
	if state.Progress.Answered != 0 || state.Progress.Total != 3 {
		t.Errorf("progress = %+v, want 0/3", state.Progress)
	}

	// taking again resumes the same sitting
	state, err = f.svc.Take(ctx, f.student.ID, f.course.ID, "ordered")
	if err != nil {
		t.Fatalf("Take() failed: %v", err)
	}
	if state.Question.ID != questions[0].ID {
		t.Errorf("resumed question = %s, want %s", state.Question.ID, questions[0].ID)
	}
}

func TestTakeRandomOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Random", Slug: "random", RandomOrder: true})
	questions := f.addQuestions(t, qz.ID, 3)

	// reverse instead of shuffling
	quiz.ShuffleFunc = func(n int, swap func(i, j int)) {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			swap(i, j)
		}
	}
	defer func() { quiz.ShuffleFunc = rand.Shuffle }()

	state, err := f.svc.Take(ctx, f.student.ID, f.course.ID, "random")
	if err != nil {
		t.Fatalf("Take() failed: %v", err)
	}
	if state.Question.ID != questions[2].ID {
		t.Errorf("first question = %s, want %s (shuffled)", state.Question.ID, questions[2].ID)
	}
}

func TestSubmitAnswer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Basics", Slug: "basics", PassMark: 50})
	questions := f.addQuestions(t, qz.ID, 2)

	t.Run("invalid choice", func(t *testing.T) {
		_, err := f.svc.SubmitAnswer(ctx, f.student.ID, f.course.ID, "basics", quiz.Answer{ChoiceID: "nope"})
		vErr, ok := err.(*core.ValidationError)
		if !ok {
			t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
		}
		want := "select a valid choice: nope is not one of the available choices"
		if len(vErr.Fields) == 0 || vErr.Fields[0].Error != want {
			t.Errorf("field error = %+v, want %q", vErr.Fields, want)
		}
	})

	t.Run("correct answer advances and reveals the previous question", func(t *testing.T) {
		state := f.answer(t, "basics", true /* correct */)
		if state.Previous == nil {
			t.Fatal("expected the previous question to be revealed")
		}
		if !state.Previous.Correct {
			t.Error("answer should be correct")
		}
		if state.Previous.Question.ID != questions[0].ID {
			t.Errorf("previous question = %s, want %s", state.Previous.Question.ID, questions[0].ID)
		}
		if len(state.Previous.CorrectAnswers) != 1 {
			t.Errorf("got %d correct answers, want 1", len(state.Previous.CorrectAnswers))
		}
		if state.Completed {
			t.Error("quiz should not be completed yet")
		}
		if state.Question == nil || state.Question.ID != questions[1].ID {
			t.Errorf("next question = %+v, want %s", state.Question, questions[1].ID)
		}
		if state.Progress.Answered != 1 {
			t.Errorf("answered = %d, want 1", state.Progress.Answered)
		}
	})

	t.Run("last answer completes the quiz", func(t *testing.T) {
		state := f.answer(t, "basics", false /* incorrect */)
		if !state.Completed {
			t.Fatal("quiz should be completed")
		}
		if state.Question != nil {
			t.Error("no next question expected")
		}
		if state.Previous == nil || state.Previous.Correct {
			t.Error("last answer should be incorrect")
		}
		res := state.Result
		if res == nil {
			t.Fatal("expected a result")
		}
		if res.Score != 1 || res.MaxScore != 2 || res.Percent != 50 {
			t.Errorf("result = %+v, want 1/2 (50%%)", res)
		}
		if !res.Passed || res.Message != quiz.PassMessage {
			t.Errorf("result = %+v, want passed with %q", res, quiz.PassMessage)
		}
	})

	t.Run("progress is recorded", func(t *testing.T) {
		prog, err := f.svc.GetProgress(ctx, f.student.ID)
		if err != nil {
			t.Fatalf("GetProgress() failed: %v", err)
		}
		if len(prog.Records) != 1 {
			t.Fatalf("got %d records, want 1", len(prog.Records))
		}
		rec := prog.Records[0]
		if rec.QuizID != qz.ID || rec.Score != 1 || rec.Possible != 2 {
			t.Errorf("record = %+v, want {%s 1 2}", rec, qz.ID)
		}
	})

	t.Run("non-exam sitting is discarded on completion", func(t *testing.T) {
		if _, err := f.quizRepo.GetOpenSitting(ctx, f.student.ID, qz.ID); err != quiz.ErrSittingNotFound {
			t.Errorf("GetOpenSitting() error = %v, want %v", err, quiz.ErrSittingNotFound)
		}
		done, err := f.quizRepo.HasCompletedSitting(ctx, f.student.ID, qz.ID)
		if err != nil {
			t.Fatalf("HasCompletedSitting() failed: %v", err)
		}
		if done {
			t.Error("discarded sitting should not count as completed")
		}
	})
}

func TestSubmitAnswerFail(t *testing.T) {
	f := setup(t)

	qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Hard", Slug: "hard", PassMark: 80})
	f.addQuestions(t, qz.ID, 2)

	f.answer(t, "hard", true)
	state := f.answer(t, "hard", false)
	res := state.Result
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Passed || res.Message != quiz.FailMessage {
		t.Errorf("result = %+v, want failed with %q", res, quiz.FailMessage)
	}
}

func TestAnswersAtEnd(t *testing.T) {
	f := setup(t)

	qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Silent", Slug: "silent", AnswersAtEnd: true})
	f.addQuestions(t, qz.ID, 2)

	state := f.answer(t, "silent", true)
	if state.Previous != nil {
		t.Error("answers should be withheld until the end")
	}
}

func TestExamPaperArchivesSitting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	qz := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{
		CourseID: f.course.ID, Title: "Final", Slug: "final", Category: quiz.CategoryExam,
		ExamPaper: true, SingleAttempt: true, PassMark: 50,
	})
	f.addQuestions(t, qz.ID, 1)

	state := f.answer(t, "final", true)
	if !state.Completed {
		t.Fatal("quiz should be completed")
	}

	done, err := f.quizRepo.HasCompletedSitting(ctx, f.student.ID, qz.ID)
	if err != nil {
		t.Fatalf("HasCompletedSitting() failed: %v", err)
	}
	if !done {
		t.Error("exam paper sitting should be archived")
	}

	// only one attempt is permitted
	_, err = f.svc.Take(ctx, f.student.ID, f.course.ID, "final")
	assertValidationErr(t, err, quiz.ErrSingleAttempt)
}

func TestGetProgressEmpty(t *testing.T) {
	f := setup(t)

	prog, err := f.svc.GetProgress(context.Background(), f.student.ID)
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if prog.UserID != f.student.ID {
		t.Errorf("UserID = %s, want %s", prog.UserID, f.student.ID)
	}
	if prog.Records == nil || len(prog.Records) != 0 {
		t.Errorf("Records = %v, want empty slice", prog.Records)
	}
}

func TestAddQuestionAndChoiceValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("question requires existing quizzes", func(t *testing.T) {
		_, err := f.svc.AddQuestion(ctx, quiz.NewQuestion{Content: "Huh?", QuizIDs: []string{"nope"}})
		assertValidationErr(t, err, quiz.ErrQuizNotFound)
	})

	t.Run("choice requires an existing question", func(t *testing.T) {
		_, err := f.svc.AddChoice(ctx, quiz.NewChoice{QuestionID: "nope", Text: "42"})
		assertValidationErr(t, err, quiz.ErrQuestionNotFound)
	})

	t.Run("question lands in every target quiz", func(t *testing.T) {
		qz1 := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "A", Slug: "quiz-a"})
		qz2 := testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "B", Slug: "quiz-b"})

		qst, err := f.svc.AddQuestion(ctx, quiz.NewQuestion{Content: "Shared?", QuizIDs: []string{qz1.ID, qz2.ID}})
		if err != nil {
			t.Fatalf("AddQuestion() failed: %v", err)
		}
		for _, quizID := range []string{qz1.ID, qz2.ID} {
			questions, err := f.quizRepo.QueryQuizQuestions(ctx, quizID)
			if err != nil {
				t.Fatalf("QueryQuizQuestions() failed: %v", err)
			}
			if len(questions) != 1 || questions[0].ID != qst.ID {
				t.Errorf("quiz %s questions = %+v, want [%s]", quizID, questions, qst.ID)
			}
		}
	})
}

func TestQuizUniqueness(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateQuiz(t, f.quizRepo, quiz.Quiz{CourseID: f.course.ID, Title: "Taken", Slug: "taken"})

	data := quiz.NewQuiz{CourseID: f.course.ID, Title: "Taken Again", Slug: "taken", Category: quiz.CategoryPractice}
	err := data.Validate(ctx, f.svc)
	assertValidationErr(t, err, quiz.ErrQuizExists)

	// same slug on another course is fine
	prog := testutil.CreateProgram(t, f.crsRepo, "Mathematics")
	other := testutil.CreateCourse(t, f.crsRepo, "Calculus", "calculus", prog.ID)
	data = quiz.NewQuiz{CourseID: other.ID, Title: "Taken", Slug: "taken", Category: quiz.CategoryPractice}
	if err := data.Validate(ctx, f.svc); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}
