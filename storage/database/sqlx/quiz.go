package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/quiz"
)

var (
	quizColumns = []string{
		"id", "course_id", "title", "slug", "description", "category", "random_order",
		"answers_at_end", "exam_paper", "single_attempt", "draft", "pass_mark", "created_at", "updated_at",
	}
	questionColumns = []string{"id", "content", "explanation"}
	choiceColumns   = []string{"id", "question_id", "text", "correct"}
	sittingColumns  = []string{
		"id", "user_id", "quiz_id", "course_id", "question_order", "unanswered",
		"incorrect", "user_answers", "current_score", "complete", "start", `"end"`,
	}
)

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sqlx.DB) *quizRepository {
	return &quizRepository{db: db}
}

type quizRow struct {
	ID            string    `db:"id"`
	CourseID      string    `db:"course_id"`
	Title         string    `db:"title"`
	Slug          string    `db:"slug"`
	Description   string    `db:"description"`
	Category      string    `db:"category"`
	RandomOrder   bool      `db:"random_order"`
	AnswersAtEnd  bool      `db:"answers_at_end"`
	ExamPaper     bool      `db:"exam_paper"`
	SingleAttempt bool      `db:"single_attempt"`
	Draft         bool      `db:"draft"`
	PassMark      int       `db:"pass_mark"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r quizRow) unpack() quiz.Quiz {
	return quiz.Quiz{
		ID:            r.ID,
		CourseID:      r.CourseID,
		Title:         r.Title,
		Slug:          r.Slug,
		Description:   r.Description,
		Category:      r.Category,
		RandomOrder:   r.RandomOrder,
		AnswersAtEnd:  r.AnswersAtEnd,
		ExamPaper:     r.ExamPaper,
		SingleAttempt: r.SingleAttempt,
		Draft:         r.Draft,
		PassMark:      r.PassMark,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type questionRow struct {
	ID          string `db:"id"`
	Content     string `db:"content"`
	Explanation string `db:"explanation"`
}

func (r questionRow) unpack() quiz.Question {
	return quiz.Question{ID: r.ID, Content: r.Content, Explanation: r.Explanation}
}

type choiceRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Text       string `db:"text"`
	Correct    bool   `db:"correct"`
}

func (r choiceRow) unpack() quiz.Choice {
	return quiz.Choice{ID: r.ID, QuestionID: r.QuestionID, Text: r.Text, Correct: r.Correct}
}

// sittingRow flattens ID slices to CSV and the answers map to JSON.
type sittingRow struct {
	ID            string       `db:"id"`
	UserID        string       `db:"user_id"`
	QuizID        string       `db:"quiz_id"`
	CourseID      string       `db:"course_id"`
	QuestionOrder string       `db:"question_order"`
	Unanswered    string       `db:"unanswered"`
	Incorrect     string       `db:"incorrect"`
	UserAnswers   string       `db:"user_answers"`
	CurrentScore  int          `db:"current_score"`
	Complete      bool         `db:"complete"`
	Start         time.Time    `db:"start"`
	End           sql.NullTime `db:"end"`
}

func (r sittingRow) unpack() (quiz.Sitting, error) {
	answers := make(map[string]string)
	if r.UserAnswers != "" {
		if err := json.Unmarshal([]byte(r.UserAnswers), &answers); err != nil {
			return quiz.Sitting{}, errors.Wrap(err, "decoding user answers")
		}
	}
	return quiz.Sitting{
		ID:            r.ID,
		UserID:        r.UserID,
		QuizID:        r.QuizID,
		CourseID:      r.CourseID,
		QuestionOrder: splitIDs(r.QuestionOrder),
		Unanswered:    splitIDs(r.Unanswered),
		Incorrect:     splitIDs(r.Incorrect),
		UserAnswers:   answers,
		CurrentScore:  r.CurrentScore,
		Complete:      r.Complete,
		Start:         r.Start,
		End:           r.End.Time,
	}, nil
}

func packSitting(s quiz.Sitting) (sittingRow, error) {
	answers, err := json.Marshal(s.UserAnswers)
	if err != nil {
		return sittingRow{}, errors.Wrap(err, "encoding user answers")
	}
	return sittingRow{
		ID:            s.ID,
		UserID:        s.UserID,
		QuizID:        s.QuizID,
		CourseID:      s.CourseID,
		QuestionOrder: strings.Join(s.QuestionOrder, ","),
		Unanswered:    strings.Join(s.Unanswered, ","),
		Incorrect:     strings.Join(s.Incorrect, ","),
		UserAnswers:   string(answers),
		CurrentScore:  s.CurrentScore,
		Complete:      s.Complete,
		Start:         s.Start.UTC(),
		End:           sql.NullTime{Time: s.End.UTC(), Valid: !s.End.IsZero()},
	}, nil
}

func splitIDs(csv string) []string {
	if csv == "" {
		return []string{}
	}
	return strings.Split(csv, ",")
}

func (repo quizRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo quizRepository) CheckQuizUniqueness(ctx context.Context, courseID, slug string, excludedQuizzes ...quiz.Quiz) error {
	qb := psql.Select("COUNT(*)").From("quiz").Where(sq.Eq{"course_id": courseID, "slug": slug})
	if len(excludedQuizzes) > 0 {
		ids := make([]string, 0, len(excludedQuizzes))
		for _, qz := range excludedQuizzes {
			ids = append(ids, qz.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building quiz uniqueness query")
	}

	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking quiz uniqueness")
	}
	if count > 0 {
		return quiz.ErrQuizExists
	}
	return nil
}

func (repo quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	qz.ID = uuid.New().String()
	query, args, err := psql.Insert("quiz").
		Columns(quizColumns...).
		Values(qz.ID, qz.CourseID, qz.Title, qz.Slug, qz.Description, qz.Category, qz.RandomOrder,
			qz.AnswersAtEnd, qz.ExamPaper, qz.SingleAttempt, qz.Draft, qz.PassMark,
			qz.CreatedAt.UTC(), qz.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "building quiz insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return qz, nil
}

func (repo quizRepository) QueryCourseQuizzes(ctx context.Context, courseID string) ([]quiz.Quiz, error) {
	query, args, err := psql.Select(quizColumns...).From("quiz").
		Where(sq.Eq{"course_id": courseID, "draft": false}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building course quizzes query")
	}
	var rows []quizRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying course quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.unpack())
	}
	return quizzes, nil
}

func (repo quizRepository) getQuiz(ctx context.Context, cond interface{}) (quiz.Quiz, error) {
	query, args, err := psql.Select(quizColumns...).From("quiz").Where(cond).ToSql()
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "building quiz query")
	}
	var row quizRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return quiz.Quiz{}, repo.trapNoRowsErr(err, quiz.ErrQuizNotFound, "finding quiz")
	}
	return row.unpack(), nil
}

func (repo quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return repo.getQuiz(ctx, sq.Eq{"id": id})
}

func (repo quizRepository) GetQuizBySlug(ctx context.Context, courseID, slug string) (quiz.Quiz, error) {
	return repo.getQuiz(ctx, sq.Eq{"course_id": courseID, "slug": slug})
}

func (repo quizRepository) CreateQuestion(ctx context.Context, qst quiz.Question, quizIDs ...string) (quiz.Question, error) {
	qst.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Insert("question").
		Columns(questionColumns...).
		Values(qst.ID, qst.Content, qst.Explanation).
		ToSql()
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "building question insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return quiz.Question{}, errors.Wrap(err, "inserting question")
	}

	for _, quizID := range quizIDs {
		query, args, err = psql.Insert("quiz_question").
			Columns("quiz_id", "question_id").
			Values(quizID, qst.ID).
			ToSql()
		if err != nil {
			return quiz.Question{}, errors.Wrap(err, "building quiz question insert")
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return quiz.Question{}, errors.Wrap(err, "attaching question to quiz")
		}
	}

	if err = tx.Commit(); err != nil {
		return quiz.Question{}, errors.Wrap(err, "committing question insert")
	}
	return qst, nil
}

func (repo quizRepository) QueryQuizQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	query, args, err := psql.Select("q.id", "q.content", "q.explanation").From("question q").
		Join("quiz_question qq ON qq.question_id = q.id").
		Where(sq.Eq{"qq.quiz_id": quizID}).
		OrderBy("qq.ordinal").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building quiz questions query")
	}
	var rows []questionRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying quiz questions")
	}
	questions := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.unpack())
	}
	return questions, nil
}

func (repo quizRepository) GetQuestion(ctx context.Context, id string) (quiz.Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quiz.Question{}, quiz.ErrQuestionNotFound
	}
	query, args, err := psql.Select(questionColumns...).From("question").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "building question query")
	}
	var row questionRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return quiz.Question{}, repo.trapNoRowsErr(err, quiz.ErrQuestionNotFound, "finding question")
	}
	return row.unpack(), nil
}

func (repo quizRepository) CreateChoice(ctx context.Context, ch quiz.Choice) (quiz.Choice, error) {
	ch.ID = uuid.New().String()
	query, args, err := psql.Insert("choice").
		Columns(choiceColumns...).
		Values(ch.ID, ch.QuestionID, ch.Text, ch.Correct).
		ToSql()
	if err != nil {
		return quiz.Choice{}, errors.Wrap(err, "building choice insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return quiz.Choice{}, errors.Wrap(err, "inserting choice")
	}
	return ch, nil
}

func (repo quizRepository) QueryQuestionChoices(ctx context.Context, questionID string) ([]quiz.Choice, error) {
	query, args, err := psql.Select(choiceColumns...).From("choice").
		Where(sq.Eq{"question_id": questionID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building question choices query")
	}
	var rows []choiceRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying question choices")
	}
	choices := make([]quiz.Choice, 0, len(rows))
	for _, row := range rows {
		choices = append(choices, row.unpack())
	}
	return choices, nil
}

func (repo quizRepository) CreateSitting(ctx context.Context, s quiz.Sitting) (quiz.Sitting, error) {
	s.ID = uuid.New().String()
	row, err := packSitting(s)
	if err != nil {
		return quiz.Sitting{}, err
	}

	query, args, err := psql.Insert("sitting").
		Columns(sittingColumns...).
		Values(row.ID, row.UserID, row.QuizID, row.CourseID, row.QuestionOrder, row.Unanswered,
			row.Incorrect, row.UserAnswers, row.CurrentScore, row.Complete, row.Start, row.End).
		ToSql()
	if err != nil {
		return quiz.Sitting{}, errors.Wrap(err, "building sitting insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return quiz.Sitting{}, errors.Wrap(err, "inserting sitting")
	}
	return s, nil
}

func (repo quizRepository) GetOpenSitting(ctx context.Context, userID, quizID string) (quiz.Sitting, error) {
	query, args, err := psql.Select(sittingColumns...).From("sitting").
		Where(sq.Eq{"user_id": userID, "quiz_id": quizID, "complete": false}).
		ToSql()
	if err != nil {
		return quiz.Sitting{}, errors.Wrap(err, "building sitting query")
	}
	var row sittingRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return quiz.Sitting{}, repo.trapNoRowsErr(err, quiz.ErrSittingNotFound, "finding open sitting")
	}
	return row.unpack()
}

func (repo quizRepository) HasCompletedSitting(ctx context.Context, userID, quizID string) (bool, error) {
	query, args, err := psql.Select("COUNT(*)").From("sitting").
		Where(sq.Eq{"user_id": userID, "quiz_id": quizID, "complete": true}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building completed sitting query")
	}
	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return false, errors.Wrap(err, "checking completed sitting")
	}
	return count > 0, nil
}

func (repo quizRepository) UpdateSitting(ctx context.Context, s quiz.Sitting) (quiz.Sitting, error) {
	row, err := packSitting(s)
	if err != nil {
		return quiz.Sitting{}, err
	}

	query, args, err := psql.Update("sitting").
		Set("unanswered", row.Unanswered).
		Set("incorrect", row.Incorrect).
		Set("user_answers", row.UserAnswers).
		Set("current_score", row.CurrentScore).
		Set("complete", row.Complete).
		Set(`"end"`, row.End).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return quiz.Sitting{}, errors.Wrap(err, "building sitting update")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return quiz.Sitting{}, errors.Wrap(err, "updating sitting")
	}
	return s, nil
}

func (repo quizRepository) DeleteSitting(ctx context.Context, id string) error {
	query, args, err := psql.Delete("sitting").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building sitting delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting sitting")
	}
	return nil
}

func (repo quizRepository) UpsertProgressRecord(ctx context.Context, userID string, rec quiz.ProgressRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// the user's progress row is created on first use
	query, args, err := psql.Insert("progress").
		Columns("id", "user_id").
		Values(uuid.New().String(), userID).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building progress insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "inserting progress")
	}

	var progressID string
	query, args, err = psql.Select("id").From("progress").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building progress query")
	}
	if err = sqlx.GetContext(ctx, tx, &progressID, query, args...); err != nil {
		return errors.Wrap(err, "finding progress")
	}

	query, args, err = psql.Insert("progress_record").
		Columns("progress_id", "quiz_id", "score", "possible").
		Values(progressID, rec.QuizID, rec.Score, rec.Possible).
		Suffix("ON CONFLICT (progress_id, quiz_id) DO UPDATE SET score = EXCLUDED.score, possible = EXCLUDED.possible").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building progress record upsert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "upserting progress record")
	}

	return errors.Wrap(tx.Commit(), "committing progress record upsert")
}

func (repo quizRepository) GetProgress(ctx context.Context, userID string) (quiz.Progress, error) {
	query, args, err := psql.Select("id", "user_id").From("progress").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return quiz.Progress{}, errors.Wrap(err, "building progress query")
	}
	var prog struct {
		ID     string `db:"id"`
		UserID string `db:"user_id"`
	}
	if err = sqlx.GetContext(ctx, repo.db, &prog, query, args...); err != nil {
		return quiz.Progress{}, repo.trapNoRowsErr(err, quiz.ErrProgressNotFound, "finding progress")
	}

	query, args, err = psql.Select("quiz_id", "score", "possible").From("progress_record").
		Where(sq.Eq{"progress_id": prog.ID}).
		OrderBy("quiz_id").
		ToSql()
	if err != nil {
		return quiz.Progress{}, errors.Wrap(err, "building progress records query")
	}
	var rows []struct {
		QuizID   string `db:"quiz_id"`
		Score    int    `db:"score"`
		Possible int    `db:"possible"`
	}
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return quiz.Progress{}, errors.Wrap(err, "querying progress records")
	}

	records := make([]quiz.ProgressRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, quiz.ProgressRecord{QuizID: row.QuizID, Score: row.Score, Possible: row.Possible})
	}
	return quiz.Progress{ID: prog.ID, UserID: prog.UserID, Records: records}, nil
}
