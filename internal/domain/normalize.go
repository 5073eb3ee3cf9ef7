package domain

import (
	"encoding/json"
	"strings"
)

// StringList accepts either a JSON string or a JSON array of strings.
// Upstream question records use both shapes for the correct-answer field.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var arr []string
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = []string{s}
	return nil
}

// RawQuestion is the heterogeneous upstream shape: modern records carry an
// answers array, legacy records carry per-letter fields and a delimited
// correct-answer string.
type RawQuestion struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	QuestionText  string     `json:"questionText"`
	Answers       []string   `json:"answers"`
	AnswerA       string     `json:"answerA"`
	AnswerB       string     `json:"answerB"`
	AnswerC       string     `json:"answerC"`
	AnswerD       string     `json:"answerD"`
	Correct       StringList `json:"correct"`
	CorrectAnswer StringList `json:"correctAnswer"`
	Points        int        `json:"points"`
	QuestionImg   string     `json:"questionImg"`
}

// DefaultQuestionPoints is the weight used when a record carries none.
const DefaultQuestionPoints = 10

// SplitCorrectLabels expands delimited correct-answer values. A single
// string "A,C" or "A;C" denotes a multi-answer key.
func SplitCorrectLabels(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';'
		}) {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ResolveCorrect builds the tagged answer key from split labels.
func ResolveCorrect(labels []string) CorrectAnswer {
	switch len(labels) {
	case 0:
		return CorrectAnswer{}
	case 1:
		return SingleAnswer(labels[0])
	default:
		return MultipleAnswer(labels...)
	}
}

// Normalize converts one raw record into the uniform Question shape:
//   - answers synthesized from per-letter fields (in letter order) when the
//     array is absent, or from the singleton correct answer as a last resort
//   - the correct field resolved once into the CorrectAnswer variant
//   - correct labels missing from answers appended, so the answer key is
//     always drawn from the offered options
func (r RawQuestion) Normalize() Question {
	text := r.Text
	if text == "" {
		text = r.QuestionText
	}

	answers := make([]string, 0, 4)
	if len(r.Answers) > 0 {
		for _, a := range r.Answers {
			if a != "" {
				answers = append(answers, a)
			}
		}
	} else {
		for _, a := range []string{r.AnswerA, r.AnswerB, r.AnswerC, r.AnswerD} {
			if a != "" {
				answers = append(answers, a)
			}
		}
	}

	rawCorrect := r.CorrectAnswer
	if len(rawCorrect) == 0 {
		rawCorrect = r.Correct
	}
	correct := ResolveCorrect(SplitCorrectLabels(rawCorrect))

	if len(answers) == 0 && correct.Defined() {
		answers = correct.Labels()
	}
	for _, label := range correct.Labels() {
		if !contains(answers, label) {
			answers = append(answers, label)
		}
	}

	points := r.Points
	if points <= 0 {
		points = DefaultQuestionPoints
	}

	return Question{
		ID:      r.ID,
		Text:    text,
		Answers: answers,
		Correct: correct,
		Points:  points,
		Image:   r.QuestionImg,
	}
}

// NormalizeAll maps Normalize over a raw question list.
func NormalizeAll(raw []RawQuestion) []Question {
	out := make([]Question, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.Normalize())
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
