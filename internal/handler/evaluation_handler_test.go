package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/handler"
	"github.com/autoeval/autoeval-go-api/internal/ocr"
	"github.com/autoeval/autoeval-go-api/internal/ratelimit"
	"github.com/autoeval/autoeval-go-api/internal/service"
)

type mockEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (m *mockEnqueuer) Enqueue(_ context.Context, task *asynq.Task) error {
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

type mockEvaluationService struct {
	validateSheetErr  error
	validateCourseErr error
	scores            []dto.AnswerScoreResponse
	answers           []dto.ParsedAnswerResponse
	queryErr          error
}

func (m *mockEvaluationService) EvaluateSheet(context.Context, dto.EvaluateSheetRequest, string) error {
	return nil
}

func (m *mockEvaluationService) EvaluateCourse(context.Context, dto.BulkEvaluateRequest, string) error {
	return nil
}

func (m *mockEvaluationService) ValidateSheetRequest(context.Context, dto.EvaluateSheetRequest) error {
	return m.validateSheetErr
}

func (m *mockEvaluationService) ValidateCourseRequest(context.Context, dto.BulkEvaluateRequest) error {
	return m.validateCourseErr
}

func (m *mockEvaluationService) Scores(context.Context, dto.EvaluateSheetRequest) ([]dto.AnswerScoreResponse, error) {
	return m.scores, m.queryErr
}

func (m *mockEvaluationService) ParsedAnswers(context.Context, dto.EvaluateSheetRequest) ([]dto.ParsedAnswerResponse, error) {
	return m.answers, m.queryErr
}

func newEvaluationApp(svc service.EvaluationService, enqueuer *mockEnqueuer) *fiber.App {
	logger := zerolog.New(io.Discard)
	limiter := ratelimit.New(time.Minute, logger)

	app := fiber.New()
	group := app.Group("/api/v1/evaluations", func(c *fiber.Ctx) error {
		c.Locals("username", "prof.kumar")
		return c.Next()
	})
	handler.NewEvaluationHandler(svc, enqueuer, limiter, logger).Register(group)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestEvaluateSheetAccepted(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	app := newEvaluationApp(&mockEvaluationService{}, enqueuer)

	resp := postJSON(t, app, "/api/v1/evaluations/sheet", dto.EvaluateSheetRequest{
		StudentUsername: "s.rao",
		CourseName:      "Physics",
		SheetType:       "MIDTERM",
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, "evaluation:sheet", enqueuer.tasks[0].Type())
}

func TestEvaluateSheetCooldownRejected(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	app := newEvaluationApp(&mockEvaluationService{}, enqueuer)

	payload := dto.EvaluateSheetRequest{StudentUsername: "s.rao", CourseName: "Physics", SheetType: "MIDTERM"}

	resp := postJSON(t, app, "/api/v1/evaluations/sheet", payload)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/evaluations/sheet", payload)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Len(t, enqueuer.tasks, 1, "rejected request must not enqueue")
}

func TestEvaluateSheetValidationFailure(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	app := newEvaluationApp(&mockEvaluationService{validateSheetErr: service.ErrAssignmentNumberRequired}, enqueuer)

	resp := postJSON(t, app, "/api/v1/evaluations/sheet", dto.EvaluateSheetRequest{
		StudentUsername: "s.rao",
		CourseName:      "Physics",
		SheetType:       "ASSIGNMENT",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, enqueuer.tasks)
}

func TestEvaluateCourseMissingPaper(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	app := newEvaluationApp(&mockEvaluationService{validateCourseErr: service.ErrQuestionPaperNotFound}, enqueuer)

	resp := postJSON(t, app, "/api/v1/evaluations/course", dto.BulkEvaluateRequest{
		CourseName: "Physics",
		SheetType:  "MIDTERM",
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Empty(t, enqueuer.tasks)
}

func TestScoresQueryParams(t *testing.T) {
	svc := &mockEvaluationService{scores: []dto.AnswerScoreResponse{{QuestionLabel: "Ans1", ObtainedMarks: 4, TotalMarks: 5}}}
	app := newEvaluationApp(svc, &mockEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/scores?studentUsername=s.rao&courseName=Physics&sheetType=MIDTERM", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                      `json:"success"`
		Data    []dto.AnswerScoreResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	require.True(t, response.Success)
	require.Len(t, response.Data, 1)
	require.Equal(t, "Ans1", response.Data[0].QuestionLabel)
}

func TestScoresQueryRequiresParams(t *testing.T) {
	app := newEvaluationApp(&mockEvaluationService{}, &mockEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/scores?courseName=Physics", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type mockUploadService struct {
	validateErr error
	readErr     error
	files       []ocr.File
}

func (m *mockUploadService) ValidateSheetRequest(context.Context, dto.UploadSheetRequest) error {
	return m.validateErr
}

func (m *mockUploadService) ValidateBulkRequest(context.Context, dto.BulkUploadRequest) error {
	return m.validateErr
}

func (m *mockUploadService) ReadFiles([]*multipart.FileHeader) ([]ocr.File, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.files, nil
}

func (m *mockUploadService) ProcessSheet(context.Context, dto.UploadSheetRequest, []ocr.File, string) error {
	return nil
}

func (m *mockUploadService) ProcessBulk(context.Context, dto.BulkUploadRequest, []byte, string) error {
	return nil
}

func newUploadApp(svc service.UploadService, enqueuer *mockEnqueuer) *fiber.App {
	logger := zerolog.New(io.Discard)
	limiter := ratelimit.New(time.Minute, logger)

	app := fiber.New()
	group := app.Group("/api/v1/uploads", func(c *fiber.Ctx) error {
		c.Locals("username", "prof.kumar")
		return c.Next()
	})
	handler.NewUploadHandler(svc, enqueuer, limiter, 100, logger).Register(group)
	return app
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, content []byte) *http.Request {
	t.Helper()
	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadSheetAccepted(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	svc := &mockUploadService{files: []ocr.File{{Name: "page1.png", Content: []byte{1}}}}
	app := newUploadApp(svc, enqueuer)

	req := multipartRequest(t, "/api/v1/uploads/sheet", map[string]string{
		"rollNo":     "21CS042",
		"courseName": "Physics",
		"sheetType":  "MIDTERM",
	}, "files", "page1.png", []byte("fake image"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, "upload:sheet", enqueuer.tasks[0].Type())
}

func TestUploadSheetRejectedFileType(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	svc := &mockUploadService{readErr: service.ErrUploadTypeNotAllowed}
	app := newUploadApp(svc, enqueuer)

	req := multipartRequest(t, "/api/v1/uploads/sheet", map[string]string{
		"rollNo":     "21CS042",
		"courseName": "Physics",
		"sheetType":  "MIDTERM",
	}, "files", "notes.txt", []byte("text"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, enqueuer.tasks)
}

func TestUploadBulkAccepted(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	app := newUploadApp(&mockUploadService{}, enqueuer)

	req := multipartRequest(t, "/api/v1/uploads/bulk", map[string]string{
		"courseName": "Physics",
		"sheetType":  "ENDTERM",
	}, "archive", "sheets.zip", []byte("zip bytes"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, "upload:bulk", enqueuer.tasks[0].Type())
}

func TestUploadBulkMissingArchive(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	app := newUploadApp(&mockUploadService{}, enqueuer)

	req := multipartRequest(t, "/api/v1/uploads/bulk", map[string]string{
		"courseName": "Physics",
		"sheetType":  "ENDTERM",
	}, "", "", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, enqueuer.tasks)
}
