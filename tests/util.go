package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/quiz"
	"github.com/trezcool/shule/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSession(
	t *testing.T,
	repo academic.Repository,
	name string,
	isCurrent bool,
	nextBegins time.Time,
	createdAt ...time.Time,
) academic.Session {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	sess, err := repo.CreateSession(context.Background(), academic.Session{
		Name:              name,
		IsCurrent:         isCurrent,
		NextSessionBegins: nextBegins.UTC(),
		CreatedAt:         tstamp,
		UpdatedAt:         tstamp,
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func CreateSemester(
	t *testing.T,
	repo academic.Repository,
	name, sessionID string,
	isCurrent bool,
	nextBegins time.Time,
) academic.Semester {
	t.Helper()

	now := time.Now().UTC()
	sem, err := repo.CreateSemester(context.Background(), academic.Semester{
		Name:               name,
		IsCurrent:          isCurrent,
		SessionID:          sessionID,
		NextSemesterBegins: nextBegins.UTC(),
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		t.Fatalf("CreateSemester() failed: %v", err)
	}
	return sem
}

func CreateProgram(t *testing.T, repo course.Repository, title string) course.Program {
	t.Helper()

	now := time.Now().UTC()
	prog, err := repo.CreateProgram(context.Background(), course.Program{Title: title, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateProgram() failed: %v", err)
	}
	return prog
}

func CreateCourse(t *testing.T, repo course.Repository, title, slug, programID string) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:     title,
		Slug:      slug,
		Code:      "CS100",
		Credit:    3,
		Semester:  academic.SemesterFirst,
		Level:     course.LevelBachelor,
		ProgramID: programID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateStudent(t *testing.T, repo course.Repository, userID, programID string) course.Student {
	t.Helper()

	std, err := repo.CreateStudent(context.Background(), course.Student{
		UserID:    userID,
		ProgramID: programID,
		Level:     course.LevelBachelor,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func EnrollStudent(t *testing.T, repo course.Repository, studentID, courseID string) course.TakenCourse {
	t.Helper()

	tc, err := repo.CreateTakenCourse(context.Background(), course.TakenCourse{
		StudentID: studentID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("EnrollStudent() failed: %v", err)
	}
	return tc
}

func CreateQuiz(t *testing.T, repo quiz.Repository, qz quiz.Quiz) quiz.Quiz {
	t.Helper()

	now := time.Now().UTC()
	if qz.Category == "" {
		qz.Category = quiz.CategoryPractice
	}
	qz.CreatedAt = now
	qz.UpdatedAt = now
	qz, err := repo.CreateQuiz(context.Background(), qz)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return qz
}

func CreateQuestion(t *testing.T, repo quiz.Repository, content string, quizIDs ...string) quiz.Question {
	t.Helper()

	qst, err := repo.CreateQuestion(context.Background(), quiz.Question{Content: content}, quizIDs...)
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return qst
}

func CreateChoice(t *testing.T, repo quiz.Repository, questionID, text string, correct bool) quiz.Choice {
	t.Helper()

	ch, err := repo.CreateChoice(context.Background(), quiz.Choice{QuestionID: questionID, Text: text, Correct: correct})
	if err != nil {
		t.Fatalf("CreateChoice() failed: %v", err)
	}
	return ch
}
