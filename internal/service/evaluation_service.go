package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/answersheet"
	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/models"
	"github.com/autoeval/autoeval-go-api/internal/notify"
	"github.com/autoeval/autoeval-go-api/internal/observability"
	"github.com/autoeval/autoeval-go-api/internal/repository"
	"github.com/autoeval/autoeval-go-api/internal/scoring"
)

// ErrStudentNotFound indicates the requested student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrCourseNotFound indicates the requested course does not exist.
var ErrCourseNotFound = errors.New("course not found")

// ErrEnrolmentNotFound indicates the student is not enrolled in the course.
var ErrEnrolmentNotFound = errors.New("enrolment not found")

// ErrQuestionPaperNotFound indicates no answer key exists for the requested sheet.
var ErrQuestionPaperNotFound = errors.New("question paper not found")

// ErrSubmissionNotFound indicates no uploaded sheet exists for the assignment.
var ErrSubmissionNotFound = errors.New("assignment submission not found")

// ErrEmptySubmission indicates the stored sheet transcript is blank.
var ErrEmptySubmission = errors.New("answer sheet text is empty")

// ErrAssignmentNumberRequired indicates an assignment request without a number.
var ErrAssignmentNumberRequired = errors.New("assignment number is required")

// ErrInvalidSheetType indicates an unrecognised sheet type value.
var ErrInvalidSheetType = errors.New("invalid sheet type")

// EvaluationService runs the scoring pipeline and answers score queries.
type EvaluationService interface {
	EvaluateSheet(ctx context.Context, req dto.EvaluateSheetRequest, teacher string) error
	EvaluateCourse(ctx context.Context, req dto.BulkEvaluateRequest, teacher string) error
	ValidateSheetRequest(ctx context.Context, req dto.EvaluateSheetRequest) error
	ValidateCourseRequest(ctx context.Context, req dto.BulkEvaluateRequest) error
	Scores(ctx context.Context, req dto.EvaluateSheetRequest) ([]dto.AnswerScoreResponse, error)
	ParsedAnswers(ctx context.Context, req dto.EvaluateSheetRequest) ([]dto.ParsedAnswerResponse, error)
}

type evaluationService struct {
	students  repository.StudentRepository
	courses   repository.CourseRepository
	papers    repository.QuestionPaperRepository
	enrols    repository.EnrolmentRepository
	scorer    scoring.Client
	publisher notify.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEvaluationService builds the evaluation orchestrator.
func NewEvaluationService(
	students repository.StudentRepository,
	courses repository.CourseRepository,
	papers repository.QuestionPaperRepository,
	enrols repository.EnrolmentRepository,
	scorer scoring.Client,
	publisher notify.Publisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		students:  students,
		courses:   courses,
		papers:    papers,
		enrols:    enrols,
		scorer:    scorer,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("evaluation-service"),
	}
}

func (s *evaluationService) ValidateSheetRequest(ctx context.Context, req dto.EvaluateSheetRequest) error {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return err
	}
	return s.checkAssignmentNumber(req.SheetType, req.AssignmentNumber)
}

func (s *evaluationService) ValidateCourseRequest(ctx context.Context, req dto.BulkEvaluateRequest) error {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return err
	}
	if err := s.checkAssignmentNumber(req.SheetType, req.AssignmentNumber); err != nil {
		return err
	}

	// Bulk jobs are rejected up front when no answer key exists, rather than
	// failing every subject individually after acceptance.
	course, err := s.courses.GetByName(ctx, req.CourseName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	exists, err := s.papers.Exists(ctx, course.ID, models.SheetType(req.SheetType), req.AssignmentNumber)
	if err != nil {
		return err
	}
	if !exists {
		return ErrQuestionPaperNotFound
	}

	return nil
}

func (s *evaluationService) checkAssignmentNumber(sheetType string, number *int) error {
	t := models.SheetType(sheetType)
	if !t.Valid() {
		return ErrInvalidSheetType
	}
	if t.RequiresAssignmentNumber() && number == nil {
		return ErrAssignmentNumberRequired
	}
	return nil
}

// EvaluateSheet runs the full pipeline for one student's sheet and publishes
// the terminal event. The returned error is for the caller's logging only; the
// failure has already been reported on the teacher channel.
func (s *evaluationService) EvaluateSheet(ctx context.Context, req dto.EvaluateSheetRequest, teacher string) error {
	ctx, span := s.tracer.Start(ctx, "evaluation.sheet", trace.WithAttributes(
		attribute.String("student", req.StudentUsername),
		attribute.String("course", req.CourseName),
		attribute.String("sheet_type", req.SheetType),
	))
	defer span.End()

	started := time.Now()
	total, err := s.evaluateOne(ctx, req)
	observability.EvaluationDuration().WithLabelValues(req.SheetType).Observe(time.Since(started).Seconds())

	if err != nil {
		observability.EvaluationsTotal().WithLabelValues(req.SheetType, "failure").Inc()
		s.logger.Error().Err(err).
			Str("student", req.StudentUsername).
			Str("course", req.CourseName).
			Str("sheet_type", req.SheetType).
			Msg("evaluation failed")
		s.publisher.Publish(ctx, notify.EvaluationChannel(teacher), dto.Event{
			Type:             failureEventType(req.SheetType),
			StudentUsername:  req.StudentUsername,
			CourseName:       req.CourseName,
			SheetType:        req.SheetType,
			AssignmentNumber: req.AssignmentNumber,
			Message:          userFacingReason(err),
		})
		return err
	}

	observability.EvaluationsTotal().WithLabelValues(req.SheetType, "success").Inc()
	event := dto.Event{
		Type:             successEventType(req.SheetType),
		StudentUsername:  req.StudentUsername,
		CourseName:       req.CourseName,
		SheetType:        req.SheetType,
		AssignmentNumber: req.AssignmentNumber,
	}
	// Exam sheets report the sheet total as totalMarks; assignments report marks.
	if models.SheetType(req.SheetType) == models.SheetTypeAssignment {
		event.Marks = &total
	} else {
		event.TotalMarks = &total
	}
	s.publisher.Publish(ctx, notify.EvaluationChannel(teacher), event)
	return nil
}

// EvaluateCourse evaluates every enrolled student sequentially. One subject's
// failure is reported on the progress channel and never stops the loop; the
// terminal complete event is emitted exactly once.
func (s *evaluationService) EvaluateCourse(ctx context.Context, req dto.BulkEvaluateRequest, teacher string) error {
	ctx, span := s.tracer.Start(ctx, "evaluation.course", trace.WithAttributes(
		attribute.String("course", req.CourseName),
		attribute.String("sheet_type", req.SheetType),
	))
	defer span.End()

	course, err := s.courses.GetByName(ctx, req.CourseName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrCourseNotFound
		}
		s.publisher.Publish(ctx, notify.TeacherChannel(teacher), dto.Event{
			Type:       dto.EventBulkEvaluationFatal,
			CourseName: req.CourseName,
			SheetType:  req.SheetType,
			Message:    userFacingReason(err),
		})
		return err
	}

	enrolments, err := s.enrols.ListByCourse(ctx, course.ID)
	if err != nil {
		s.publisher.Publish(ctx, notify.TeacherChannel(teacher), dto.Event{
			Type:       dto.EventBulkEvaluationFatal,
			CourseName: req.CourseName,
			SheetType:  req.SheetType,
			Message:    userFacingReason(err),
		})
		return err
	}

	total := len(enrolments)
	for i, enrolment := range enrolments {
		single := dto.EvaluateSheetRequest{
			StudentUsername:  enrolment.Student.Username,
			CourseName:       req.CourseName,
			SheetType:        req.SheetType,
			AssignmentNumber: req.AssignmentNumber,
		}
		err := s.EvaluateSheet(ctx, single, teacher)

		progress := (i + 1) * 100 / total
		event := dto.Event{
			Type:            dto.EventBulkEvaluateProgress,
			StudentUsername: enrolment.Student.Username,
			RollNo:          enrolment.Student.RollNo,
			CourseName:      req.CourseName,
			SheetType:       req.SheetType,
			Progress:        &progress,
		}
		if err != nil {
			event.Message = userFacingReason(err)
		}
		s.publisher.Publish(ctx, notify.TeacherChannel(teacher), event)
	}

	s.publisher.Publish(ctx, notify.TeacherChannel(teacher), dto.Event{
		Type:             dto.EventBulkEvaluationComplete,
		CourseName:       req.CourseName,
		SheetType:        req.SheetType,
		AssignmentNumber: req.AssignmentNumber,
	})
	return nil
}

func (s *evaluationService) Scores(ctx context.Context, req dto.EvaluateSheetRequest) ([]dto.AnswerScoreResponse, error) {
	enrolment, _, err := s.resolveEnrolment(ctx, req.StudentUsername, req.CourseName)
	if err != nil {
		return nil, err
	}

	sheetType := models.SheetType(req.SheetType)
	if sheetType == models.SheetTypeAssignment {
		if req.AssignmentNumber == nil {
			return nil, ErrAssignmentNumberRequired
		}
		submission, err := s.enrols.GetAssignmentSubmission(ctx, enrolment.ID, *req.AssignmentNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSubmissionNotFound
			}
			return nil, err
		}
		scores, err := s.enrols.ListAssignmentScores(ctx, submission.ID)
		if err != nil {
			return nil, err
		}
		return dto.NewAnswerScoreResponseSlice(scores), nil
	}

	scores, err := s.enrols.ListScores(ctx, enrolment.ID, sheetType)
	if err != nil {
		return nil, err
	}
	return dto.NewAnswerScoreResponseSlice(scores), nil
}

func (s *evaluationService) ParsedAnswers(ctx context.Context, req dto.EvaluateSheetRequest) ([]dto.ParsedAnswerResponse, error) {
	_, text, err := s.resolveSheetText(ctx, req)
	if err != nil {
		return nil, err
	}

	answers := answersheet.Parse(text)
	out := make([]dto.ParsedAnswerResponse, 0, len(answers))
	for _, answer := range answers {
		out = append(out, dto.ParsedAnswerResponse{Label: answer.Label, Text: answer.Text})
	}
	return out, nil
}

// evaluateOne performs resolve, parse, score and transactional persist for one
// sheet, returning the obtained total.
func (s *evaluationService) evaluateOne(ctx context.Context, req dto.EvaluateSheetRequest) (float64, error) {
	target, text, err := s.resolveSheetText(ctx, req)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptySubmission
	}

	course, err := s.courses.GetByName(ctx, req.CourseName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCourseNotFound
		}
		return 0, err
	}

	sheetType := models.SheetType(req.SheetType)
	paper, err := s.papers.Get(ctx, course.ID, sheetType, req.AssignmentNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrQuestionPaperNotFound
		}
		return 0, err
	}

	answers := answersheet.Parse(text)

	questions := make([]models.Question, len(paper.Questions))
	copy(questions, paper.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questionNumber(questions[i]) < questionNumber(questions[j])
	})

	var (
		scores []models.AnswerScore
		total  float64
	)
	for _, question := range questions {
		label := "Ans" + question.Number
		answerText := answers.Get(label)

		result, err := s.scorer.Score(ctx, question.CorrectAnswer, answerText, question.Marks)
		if err != nil {
			return 0, fmt.Errorf("score question %s: %w", label, err)
		}

		total += result.Score
		scores = append(scores, models.AnswerScore{
			QuestionLabel: label,
			ObtainedMarks: result.Score,
			TotalMarks:    question.Marks,
			AnswerText:    answerText,
			Feedback:      scoring.Feedback(result.Entailment, result.Neutral, result.Contradiction),
		})
	}

	if sheetType == models.SheetTypeAssignment {
		err = s.enrols.ReplaceAssignmentScores(ctx, target.submissionID, scores, total)
	} else {
		err = s.enrols.ReplaceScores(ctx, target.enrolmentID, sheetType, scores, total)
	}
	if err != nil {
		return 0, fmt.Errorf("persist scores: %w", err)
	}

	return total, nil
}

// scoreTarget names the row the score set belongs to.
type scoreTarget struct {
	enrolmentID  uint
	submissionID uint
}

func (s *evaluationService) resolveEnrolment(ctx context.Context, username, courseName string) (models.Enrolment, models.Course, error) {
	student, err := s.students.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrolment{}, models.Course{}, ErrStudentNotFound
		}
		return models.Enrolment{}, models.Course{}, err
	}

	course, err := s.courses.GetByName(ctx, courseName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrolment{}, models.Course{}, ErrCourseNotFound
		}
		return models.Enrolment{}, models.Course{}, err
	}

	enrolment, err := s.enrols.GetByStudentAndCourse(ctx, student.ID, course.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Enrolment{}, models.Course{}, ErrEnrolmentNotFound
		}
		return models.Enrolment{}, models.Course{}, err
	}

	return enrolment, course, nil
}

func (s *evaluationService) resolveSheetText(ctx context.Context, req dto.EvaluateSheetRequest) (scoreTarget, string, error) {
	enrolment, _, err := s.resolveEnrolment(ctx, req.StudentUsername, req.CourseName)
	if err != nil {
		return scoreTarget{}, "", err
	}

	sheetType := models.SheetType(req.SheetType)
	if sheetType == models.SheetTypeAssignment {
		if req.AssignmentNumber == nil {
			return scoreTarget{}, "", ErrAssignmentNumberRequired
		}
		submission, err := s.enrols.GetAssignmentSubmission(ctx, enrolment.ID, *req.AssignmentNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return scoreTarget{}, "", ErrSubmissionNotFound
			}
			return scoreTarget{}, "", err
		}
		return scoreTarget{enrolmentID: enrolment.ID, submissionID: submission.ID}, submission.SheetText, nil
	}

	return scoreTarget{enrolmentID: enrolment.ID}, enrolment.SheetText(sheetType), nil
}

func questionNumber(q models.Question) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Number))
	if err != nil {
		return 0
	}
	return n
}

func successEventType(sheetType string) string {
	switch models.SheetType(sheetType) {
	case models.SheetTypeMidterm:
		return dto.EventMidtermEvaluationSuccess
	case models.SheetTypeEndterm:
		return dto.EventEndtermEvaluationSuccess
	default:
		return dto.EventAssignmentEvaluationSuccess
	}
}

func failureEventType(sheetType string) string {
	switch models.SheetType(sheetType) {
	case models.SheetTypeMidterm:
		return dto.EventMidtermEvaluationFailure
	case models.SheetTypeEndterm:
		return dto.EventEndtermEvaluationFailure
	default:
		return dto.EventAssignmentEvaluationFailure
	}
}

// userFacingReason collapses internal errors into a short message safe to push
// to the teacher channel.
func userFacingReason(err error) string {
	switch {
	case errors.Is(err, ErrStudentNotFound),
		errors.Is(err, ErrCourseNotFound),
		errors.Is(err, ErrEnrolmentNotFound),
		errors.Is(err, ErrQuestionPaperNotFound),
		errors.Is(err, ErrSubmissionNotFound),
		errors.Is(err, ErrEmptySubmission),
		errors.Is(err, ErrAssignmentNumberRequired):
		return err.Error()
	case errors.Is(err, scoring.ErrTimeout):
		return "scoring service timed out"
	case errors.Is(err, scoring.ErrUnavailable), errors.Is(err, scoring.ErrMalformed):
		return "scoring service unavailable"
	default:
		return "evaluation failed"
	}
}
