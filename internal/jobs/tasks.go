// Package jobs defines the async task types the HTTP layer enqueues and the
// worker consumes. All pipeline work happens here, never in a request handler.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/ocr"
)

const (
	TypeEvaluateSheet  = "evaluation:sheet"
	TypeEvaluateCourse = "evaluation:course"
	TypeUploadSheet    = "upload:sheet"
	TypeUploadBulk     = "upload:bulk"
)

const (
	QueueEvaluations = "evaluations"
	QueueUploads     = "uploads"
)

// Tasks are never retried: every failure past acceptance is converted into a
// notification event by the handler, and a retry would double-publish it.
var noRetry = asynq.MaxRetry(0)

// EvaluateSheetPayload carries one single-subject evaluation job.
type EvaluateSheetPayload struct {
	Request dto.EvaluateSheetRequest `json:"request"`
	Teacher string                   `json:"teacher"`
}

// EvaluateCoursePayload carries one whole-course evaluation job.
type EvaluateCoursePayload struct {
	Request dto.BulkEvaluateRequest `json:"request"`
	Teacher string                  `json:"teacher"`
}

// UploadSheetPayload carries one student's validated scans.
type UploadSheetPayload struct {
	Request dto.UploadSheetRequest `json:"request"`
	Files   []ocr.File             `json:"files"`
	Teacher string                 `json:"teacher"`
}

// UploadBulkPayload carries a whole-class zip archive.
type UploadBulkPayload struct {
	Request dto.BulkUploadRequest `json:"request"`
	Archive []byte                `json:"archive"`
	Teacher string                `json:"teacher"`
}

func NewEvaluateSheetTask(req dto.EvaluateSheetRequest, teacher string) (*asynq.Task, error) {
	payload, err := json.Marshal(EvaluateSheetPayload{Request: req, Teacher: teacher})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEvaluateSheet, payload, asynq.Queue(QueueEvaluations), noRetry), nil
}

func NewEvaluateCourseTask(req dto.BulkEvaluateRequest, teacher string) (*asynq.Task, error) {
	payload, err := json.Marshal(EvaluateCoursePayload{Request: req, Teacher: teacher})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEvaluateCourse, payload, asynq.Queue(QueueEvaluations), noRetry), nil
}

func NewUploadSheetTask(req dto.UploadSheetRequest, files []ocr.File, teacher string) (*asynq.Task, error) {
	payload, err := json.Marshal(UploadSheetPayload{Request: req, Files: files, Teacher: teacher})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUploadSheet, payload, asynq.Queue(QueueUploads), noRetry), nil
}

func NewUploadBulkTask(req dto.BulkUploadRequest, archive []byte, teacher string) (*asynq.Task, error) {
	payload, err := json.Marshal(UploadBulkPayload{Request: req, Archive: archive, Teacher: teacher})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUploadBulk, payload, asynq.Queue(QueueUploads), noRetry), nil
}
