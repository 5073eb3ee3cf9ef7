package excel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"quiz-session-service/internal/domain"
)

type fakeWriter struct {
	quizzes   map[string]string
	questions map[string][]domain.RawQuestion
	failQuiz  string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		quizzes:   make(map[string]string),
		questions: make(map[string][]domain.RawQuestion),
	}
}

func (w *fakeWriter) EnsureQuiz(_ context.Context, subjectCode, examCode, title string) (string, error) {
	if subjectCode == w.failQuiz {
		return "", errors.New("storage down")
	}
	id := subjectCode + "/" + examCode
	w.quizzes[id] = title
	return id, nil
}

func (w *fakeWriter) UpsertQuestion(_ context.Context, quizID string, position int, q domain.RawQuestion) error {
	w.questions[quizID] = append(w.questions[quizID], q)
	if len(w.questions[quizID]) != position {
		return errors.New("position out of order")
	}
	return nil
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		for j, value := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue("Sheet1", name, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "questions.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestImportQuestions(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Subject", "Exam", "Title", "Question", "A", "B", "C", "D", "Correct", "Points", "Image"},
		{"math", "101", "Algebra", "2+2?", "3", "4", "5", "", "B", 5, ""},
		{"math", "101", "Algebra", "Primes?", "2", "4", "7", "9", "A,C", "", ""},
		{"", "101", "Algebra", "orphan row", "", "", "", "", "", "", ""},
		{"geo", "201", "Maps", "Capital of France?", "Paris", "Rome", "", "", "A", 10, "paris.png"},
	})

	cfg := DefaultImportConfig()
	cfg.FilePath = path

	writer := newFakeWriter()
	result, err := ImportQuestions(context.Background(), cfg, writer)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if result.TotalProcessed != 4 || result.Created != 3 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %v", result.Errors)
	}

	if len(writer.quizzes) != 2 {
		t.Fatalf("expected 2 quizzes, got %v", writer.quizzes)
	}
	if writer.quizzes["math/101"] != "Algebra" {
		t.Fatalf("quiz title lost: %v", writer.quizzes)
	}

	mathQs := writer.questions["math/101"]
	if len(mathQs) != 2 {
		t.Fatalf("expected 2 math questions, got %d", len(mathQs))
	}
	if mathQs[0].Text != "2+2?" || mathQs[0].Points != 5 {
		t.Fatalf("first row mismatch: %+v", mathQs[0])
	}
	// The delimited key stays raw here; normalization resolves it on load.
	q := mathQs[1].Normalize()
	if !q.Correct.Multiple() || !q.Correct.Contains("A") || !q.Correct.Contains("C") {
		t.Fatalf("delimited correct not preserved: %+v", q.Correct.Labels())
	}

	geoQs := writer.questions["geo/201"]
	if len(geoQs) != 1 || geoQs[0].QuestionImg != "paris.png" {
		t.Fatalf("geo row mismatch: %+v", geoQs)
	}
}

func TestImportQuestionsBadRowsDoNotAbort(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Subject", "Exam", "Title", "Question", "A", "B", "C", "D", "Correct", "Points", "Image"},
		{"broken", "101", "T", "q?", "x", "y", "", "", "A", "", ""},
		{"math", "101", "T", "q?", "x", "y", "", "", "A", "", ""},
	})

	cfg := DefaultImportConfig()
	cfg.FilePath = path

	writer := newFakeWriter()
	writer.failQuiz = "broken"
	result, err := ImportQuestions(context.Background(), cfg, writer)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(writer.questions["math/101"]) != 1 {
		t.Fatalf("good row lost: %+v", writer.questions)
	}
}

func TestImportQuestionsMissingFile(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "nope.xlsx")
	if _, err := ImportQuestions(context.Background(), cfg, newFakeWriter()); err == nil {
		t.Fatalf("expected error for missing workbook")
	}
}
