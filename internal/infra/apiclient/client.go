package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-session-service/internal/domain"
)

// Client talks to the upstream LMS REST API. It implements both
// app.QuestionSource and app.AttemptService, for deployments where quiz
// content and attempts live behind the existing backend instead of a
// local database.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) LoadQuestionSet(ctx context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	var info domain.QuizInfo
	metaPath := fmt.Sprintf("/api/subjects/%s/exams/%s",
		url.PathEscape(subjectCode), url.PathEscape(examCode))
	if err := c.getJSON(ctx, metaPath, &info); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load quiz metadata: %w", err)
	}
	info.SubjectCode = subjectCode
	info.ExamCode = examCode

	var raw []domain.RawQuestion
	if err := c.getJSON(ctx, metaPath+"/questions", &raw); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load questions: %w", err)
	}

	return domain.QuestionSet{
		Quiz:      info,
		Questions: domain.NormalizeAll(raw),
		Source:    domain.SourceLive,
	}, nil
}

func (c *Client) StartAttempt(ctx context.Context, quizID, userID string) (string, error) {
	var resp struct {
		AttemptID string `json:"attemptId"`
	}
	body := map[string]string{"userId": userID}
	path := "/api/quizzes/" + url.PathEscape(quizID) + "/attempts"
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	if resp.AttemptID == "" {
		return "", fmt.Errorf("start attempt: empty attempt id in response")
	}
	return resp.AttemptID, nil
}

func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, answers map[string][]string) error {
	body := map[string]any{"answers": answers}
	path := "/api/attempts/" + url.PathEscape(attemptID) + "/answers"
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	return nil
}

func (c *Client) LoadLeaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	path := "/api/quizzes/" + url.PathEscape(quizID) + "/leaderboard"
	if err := c.getJSON(ctx, path, &entries); err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return entries, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrQuizNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
