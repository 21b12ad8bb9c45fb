// Package inmemdb implements the core repositories on in-memory tables.
// It backs the test suites and local hacking; PostgreSQL is the real store.
package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/quiz"
	"github.com/trezcool/shule/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users map[string]*user.User

	sessions  map[string]*academic.Session
	semesters map[string]*academic.Semester

	programs     map[string]*course.Program
	courses      map[string]*course.Course
	students     map[string]*course.Student
	takenCourses map[string]*course.TakenCourse

	quizzes       map[string]*quiz.Quiz
	questions     map[string]*quiz.Question
	quizQuestions map[string][]string // quizID -> questionIDs in insertion order
	choices       map[string]*quiz.Choice
	sittings      map[string]*quiz.Sitting
	progresses    map[string]*quiz.Progress // keyed by userID
}

func Open() (*DB, error) {
	db := &DB{
		users:         make(map[string]*user.User),
		sessions:      make(map[string]*academic.Session),
		semesters:     make(map[string]*academic.Semester),
		programs:      make(map[string]*course.Program),
		courses:       make(map[string]*course.Course),
		students:      make(map[string]*course.Student),
		takenCourses:  make(map[string]*course.TakenCourse),
		quizzes:       make(map[string]*quiz.Quiz),
		questions:     make(map[string]*quiz.Question),
		quizQuestions: make(map[string][]string),
		choices:       make(map[string]*quiz.Choice),
		sittings:      make(map[string]*quiz.Sitting),
		progresses:    make(map[string]*quiz.Progress),
	}
	return db, nil
}
