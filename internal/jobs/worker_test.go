package jobs

import (
	"context"
	"errors"
	"mime/multipart"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/ocr"
)

type evalServiceStub struct {
	sheetCalls  []EvaluateSheetPayload
	courseCalls []EvaluateCoursePayload
	err         error
}

func (s *evalServiceStub) EvaluateSheet(_ context.Context, req dto.EvaluateSheetRequest, teacher string) error {
	s.sheetCalls = append(s.sheetCalls, EvaluateSheetPayload{Request: req, Teacher: teacher})
	return s.err
}

func (s *evalServiceStub) EvaluateCourse(_ context.Context, req dto.BulkEvaluateRequest, teacher string) error {
	s.courseCalls = append(s.courseCalls, EvaluateCoursePayload{Request: req, Teacher: teacher})
	return s.err
}

func (s *evalServiceStub) ValidateSheetRequest(context.Context, dto.EvaluateSheetRequest) error {
	return nil
}

func (s *evalServiceStub) ValidateCourseRequest(context.Context, dto.BulkEvaluateRequest) error {
	return nil
}

func (s *evalServiceStub) Scores(context.Context, dto.EvaluateSheetRequest) ([]dto.AnswerScoreResponse, error) {
	return nil, nil
}

func (s *evalServiceStub) ParsedAnswers(context.Context, dto.EvaluateSheetRequest) ([]dto.ParsedAnswerResponse, error) {
	return nil, nil
}

type uploadServiceStub struct {
	sheetCalls []UploadSheetPayload
	bulkCalls  []UploadBulkPayload
}

func (s *uploadServiceStub) ValidateSheetRequest(context.Context, dto.UploadSheetRequest) error {
	return nil
}

func (s *uploadServiceStub) ValidateBulkRequest(context.Context, dto.BulkUploadRequest) error {
	return nil
}

func (s *uploadServiceStub) ReadFiles([]*multipart.FileHeader) ([]ocr.File, error) {
	return nil, nil
}

func (s *uploadServiceStub) ProcessSheet(_ context.Context, req dto.UploadSheetRequest, files []ocr.File, teacher string) error {
	s.sheetCalls = append(s.sheetCalls, UploadSheetPayload{Request: req, Files: files, Teacher: teacher})
	return nil
}

func (s *uploadServiceStub) ProcessBulk(_ context.Context, req dto.BulkUploadRequest, archive []byte, teacher string) error {
	s.bulkCalls = append(s.bulkCalls, UploadBulkPayload{Request: req, Archive: archive, Teacher: teacher})
	return nil
}

func TestWorkerDispatchesEvaluationTasks(t *testing.T) {
	evals := &evalServiceStub{}
	uploads := &uploadServiceStub{}
	mux := NewWorker(evals, uploads, zerolog.Nop()).Mux()

	req := dto.EvaluateSheetRequest{StudentUsername: "s.rao", CourseName: "Physics", SheetType: "MIDTERM"}
	task, err := NewEvaluateSheetTask(req, "prof.kumar")
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Len(t, evals.sheetCalls, 1)
	require.Equal(t, req, evals.sheetCalls[0].Request)
	require.Equal(t, "prof.kumar", evals.sheetCalls[0].Teacher)
}

func TestWorkerSwallowsPipelineFailures(t *testing.T) {
	evals := &evalServiceStub{err: errors.New("scoring down")}
	mux := NewWorker(evals, &uploadServiceStub{}, zerolog.Nop()).Mux()

	task, err := NewEvaluateCourseTask(dto.BulkEvaluateRequest{CourseName: "Physics", SheetType: "ENDTERM"}, "prof.kumar")
	require.NoError(t, err)

	// The failure was already published as an event; retrying would publish it
	// again, so the handler reports success to the queue.
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Len(t, evals.courseCalls, 1)
}

func TestWorkerCarriesUploadBytes(t *testing.T) {
	uploads := &uploadServiceStub{}
	mux := NewWorker(&evalServiceStub{}, uploads, zerolog.Nop()).Mux()

	files := []ocr.File{{Name: "page1.png", Content: []byte{0x89, 'P', 'N', 'G'}}}
	req := dto.UploadSheetRequest{RollNo: "21CS042", CourseName: "Physics", SheetType: "MIDTERM"}
	task, err := NewUploadSheetTask(req, files, "prof.kumar")
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	require.Len(t, uploads.sheetCalls, 1)
	require.Equal(t, files, uploads.sheetCalls[0].Files, "scan bytes must survive the queue round trip")
}
