package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"quiz-session-service/internal/domain"
)

// QuestionWriter is the storage side of an import run.
type QuestionWriter interface {
	EnsureQuiz(ctx context.Context, subjectCode, examCode, title string) (string, error)
	UpsertQuestion(ctx context.Context, quizID string, position int, q domain.RawQuestion) error
}

// ImportConfig defines which columns of the sheet hold which fields.
type ImportConfig struct {
	FilePath      string
	SheetName     string
	StartRow      int // 1-based; rows above are skipped
	SubjectColumn string
	ExamColumn    string
	TitleColumn   string
	TextColumn    string
	AnswerAColumn string
	AnswerBColumn string
	AnswerCColumn string
	AnswerDColumn string
	CorrectColumn string
	PointsColumn  string
	ImageColumn   string
}

// DefaultImportConfig returns the column layout the admin template uses.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName:     "Sheet1",
		StartRow:      2,
		SubjectColumn: "A",
		ExamColumn:    "B",
		TitleColumn:   "C",
		TextColumn:    "D",
		AnswerAColumn: "E",
		AnswerBColumn: "F",
		AnswerCColumn: "G",
		AnswerDColumn: "H",
		CorrectColumn: "I",
		PointsColumn:  "J",
		ImageColumn:   "K",
	}
}

// ImportResult holds the outcome of an import run.
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// ImportQuestions reads question rows from an Excel workbook and writes
// them through the writer. Rows missing subject, exam or question text are
// skipped with a recorded error; a bad row never aborts the run.
func ImportQuestions(ctx context.Context, cfg ImportConfig, writer QuestionWriter) (*ImportResult, error) {
	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", cfg.SheetName, err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	quizIDs := make(map[string]string)
	positions := make(map[string]int)

	for i, row := range rows {
		if i < cfg.StartRow-1 {
			continue
		}
		result.TotalProcessed++

		subject := cell(row, cfg.SubjectColumn)
		exam := cell(row, cfg.ExamColumn)
		text := cell(row, cfg.TextColumn)
		if subject == "" || exam == "" || text == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing subject, exam or question text", i+1))
			continue
		}

		quizKey := subject + ":" + exam
		quizID, ok := quizIDs[quizKey]
		if !ok {
			quizID, err = writer.EnsureQuiz(ctx, subject, exam, cell(row, cfg.TitleColumn))
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: ensure quiz: %v", i+1, err))
				continue
			}
			quizIDs[quizKey] = quizID
		}
		positions[quizKey]++

		raw := domain.RawQuestion{
			Text:        text,
			AnswerA:     cell(row, cfg.AnswerAColumn),
			AnswerB:     cell(row, cfg.AnswerBColumn),
			AnswerC:     cell(row, cfg.AnswerCColumn),
			AnswerD:     cell(row, cfg.AnswerDColumn),
			QuestionImg: cell(row, cfg.ImageColumn),
		}
		if correct := cell(row, cfg.CorrectColumn); correct != "" {
			raw.CorrectAnswer = domain.StringList{correct}
		}
		if pts := cell(row, cfg.PointsColumn); pts != "" {
			if v, err := strconv.Atoi(pts); err == nil && v > 0 {
				raw.Points = v
			}
		}

		if err := writer.UpsertQuestion(ctx, quizID, positions[quizKey], raw); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx := columnToIndex(column)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// columnToIndex converts an Excel column letter ("A", "AB") to an index.
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
