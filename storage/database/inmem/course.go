package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateProgram(ctx context.Context, prog course.Program) (course.Program, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prog.ID = uuid.New().String()
	repo.db.programs[prog.ID] = &prog
	return prog, nil
}

func (repo *courseRepository) QueryPrograms(ctx context.Context) ([]course.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	programs := make([]course.Program, 0, len(repo.db.programs))
	for _, prog := range repo.db.programs {
		programs = append(programs, *prog)
	}
	sort.Slice(programs, func(i, j int) bool { return programs[i].CreatedAt.After(programs[j].CreatedAt) })
	return programs, nil
}

func (repo *courseRepository) GetProgram(ctx context.Context, id string) (course.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prog, ok := repo.db.programs[id]; ok {
		return *prog, nil
	}
	return course.Program{}, course.ErrProgramNotFound
}

func (repo *courseRepository) CheckCourseUniqueness(ctx context.Context, slug string, excludedCourses ...course.Course) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

courses:
	for _, crs := range repo.db.courses {
		if crs.Slug != slug {
			continue
		}
		for _, excl := range excludedCourses {
			if excl.ID == crs.ID {
				continue courses
			}
		}
		return course.ErrCourseExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Slug == slug {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) CreateStudent(ctx context.Context, std course.Student) (course.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	std.ID = uuid.New().String()
	repo.db.students[std.ID] = &std
	return std, nil
}

func (repo *courseRepository) GetStudentByUserID(ctx context.Context, userID string) (course.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, std := range repo.db.students {
		if std.UserID == userID {
			return *std, nil
		}
	}
	return course.Student{}, course.ErrStudentNotFound
}

func (repo *courseRepository) CreateTakenCourse(ctx context.Context, tc course.TakenCourse) (course.TakenCourse, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tc.ID = uuid.New().String()
	repo.db.takenCourses[tc.ID] = &tc
	return tc, nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tc := range repo.db.takenCourses {
		if tc.StudentID == studentID && tc.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) QueryStudentCourses(ctx context.Context, studentID string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	taken := make([]course.TakenCourse, 0)
	for _, tc := range repo.db.takenCourses {
		if tc.StudentID == studentID {
			taken = append(taken, *tc)
		}
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i].CreatedAt.After(taken[j].CreatedAt) })

	courses := make([]course.Course, 0, len(taken))
	for _, tc := range taken {
		if crs, ok := repo.db.courses[tc.CourseID]; ok {
			courses = append(courses, *crs)
		}
	}
	return courses, nil
}
