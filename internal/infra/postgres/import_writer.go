package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// ImportWriter persists bulk-imported quizzes and questions.
type ImportWriter struct {
	pool *pgxpool.Pool
}

func NewImportWriter(pool *pgxpool.Pool) *ImportWriter {
	return &ImportWriter{pool: pool}
}

func (w *ImportWriter) EnsureQuiz(ctx context.Context, subjectCode, examCode, title string) (string, error) {
	var id string
	err := w.pool.QueryRow(ctx, `
		INSERT INTO quizzes (id, subject_code, exam_code, title)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_code, exam_code)
		DO UPDATE SET title = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE quizzes.title END
		RETURNING id`,
		uuid.NewString(), subjectCode, examCode, title,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("ensure quiz %s/%s: %w", subjectCode, examCode, err)
	}
	return id, nil
}

func (w *ImportWriter) UpsertQuestion(ctx context.Context, quizID string, position int, q domain.RawQuestion) error {
	id := q.ID
	if id == "" {
		// Deterministic per slot, so re-importing the same sheet updates
		// rows instead of duplicating them.
		id = fmt.Sprintf("%s:q%d", quizID, position)
	}
	var correct *string
	if len(q.CorrectAnswer) > 0 {
		correct = &q.CorrectAnswer[0]
	}
	var points *int
	if q.Points > 0 {
		points = &q.Points
	}
	_, err := w.pool.Exec(ctx, `
		INSERT INTO questions (id, quiz_id, question_text, answer_a, answer_b, answer_c, answer_d,
		                       correct_answer, points, question_img, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			question_text = EXCLUDED.question_text,
			answer_a = EXCLUDED.answer_a,
			answer_b = EXCLUDED.answer_b,
			answer_c = EXCLUDED.answer_c,
			answer_d = EXCLUDED.answer_d,
			correct_answer = EXCLUDED.correct_answer,
			points = EXCLUDED.points,
			question_img = EXCLUDED.question_img,
			position = EXCLUDED.position`,
		id, quizID, q.Text, nullable(q.AnswerA), nullable(q.AnswerB), nullable(q.AnswerC), nullable(q.AnswerD),
		correct, points, nullable(q.QuestionImg), position,
	)
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", id, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
