package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// QuestionSource loads quiz metadata and questions from Postgres. Question
// rows are stored in the upstream's heterogeneous shape (modern JSON answer
// arrays next to legacy per-letter columns) and normalized on the way out.
type QuestionSource struct {
	pool *pgxpool.Pool
}

func NewQuestionSource(pool *pgxpool.Pool) *QuestionSource {
	return &QuestionSource{pool: pool}
}

func (s *QuestionSource) LoadQuestionSet(ctx context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	var info domain.QuizInfo
	err := s.pool.QueryRow(ctx, `
		SELECT id, subject_code, exam_code, title, time_limit_minutes, author, ai_generated
		FROM quizzes
		WHERE subject_code = $1 AND exam_code = $2`,
		subjectCode, examCode,
	).Scan(&info.ID, &info.SubjectCode, &info.ExamCode, &info.Title, &info.TimeLimitMinutes, &info.Author, &info.AIGenerated)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load quiz metadata: %w", err)
	}

	questions, err := s.loadQuestions(ctx, info.ID)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return domain.QuestionSet{Quiz: info, Questions: questions, Source: domain.SourceLive}, nil
}

// QuestionsByQuizID exposes the question list for attempt scoring.
func (s *QuestionSource) QuestionsByQuizID(ctx context.Context, quizID string) ([]domain.Question, error) {
	return s.loadQuestions(ctx, quizID)
}

func (s *QuestionSource) loadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, question_text, answers, answer_a, answer_b, answer_c, answer_d,
		       correct_answer, points, question_img
		FROM questions
		WHERE quiz_id = $1
		ORDER BY position, id`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			raw        domain.RawQuestion
			answersRaw []byte
			a, b, c, d *string
			correct    *string
			points     *int
			img        *string
		)
		if err := rows.Scan(&raw.ID, &raw.Text, &answersRaw, &a, &b, &c, &d, &correct, &points, &img); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(answersRaw) > 0 {
			if err := json.Unmarshal(answersRaw, &raw.Answers); err != nil {
				return nil, fmt.Errorf("unmarshal answers for question %s: %w", raw.ID, err)
			}
		}
		raw.AnswerA = deref(a)
		raw.AnswerB = deref(b)
		raw.AnswerC = deref(c)
		raw.AnswerD = deref(d)
		if correct != nil {
			raw.CorrectAnswer = domain.StringList{*correct}
		}
		if points != nil {
			raw.Points = *points
		}
		raw.QuestionImg = deref(img)
		questions = append(questions, raw.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
