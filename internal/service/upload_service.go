package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/models"
	"github.com/autoeval/autoeval-go-api/internal/notify"
	"github.com/autoeval/autoeval-go-api/internal/observability"
	"github.com/autoeval/autoeval-go-api/internal/ocr"
	"github.com/autoeval/autoeval-go-api/internal/repository"
)

var (
	// ErrUploadTooLarge indicates a file exceeded the configured size limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrNoFiles indicates an upload request without any files.
	ErrNoFiles = errors.New("at least one file is required")
	// ErrMalformedArchive indicates the bulk archive could not be read at all.
	ErrMalformedArchive = errors.New("archive is malformed")
)

var allowedSheetMimes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/webp":      {},
	"image/tiff":      {},
	"application/pdf": {},
}

// FileStorage abstracts archival of the original scans.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates scanned sheets, extracts their text and stores it on
// the owning enrolment or assignment submission.
type UploadService interface {
	ValidateSheetRequest(ctx context.Context, req dto.UploadSheetRequest) error
	ValidateBulkRequest(ctx context.Context, req dto.BulkUploadRequest) error
	ReadFiles(headers []*multipart.FileHeader) ([]ocr.File, error)
	ProcessSheet(ctx context.Context, req dto.UploadSheetRequest, files []ocr.File, teacher string) error
	ProcessBulk(ctx context.Context, req dto.BulkUploadRequest, archive []byte, teacher string) error
}

type uploadService struct {
	students  repository.StudentRepository
	courses   repository.CourseRepository
	papers    repository.QuestionPaperRepository
	enrols    repository.EnrolmentRepository
	extractor ocr.Client
	storage   FileStorage
	publisher notify.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	maxSize   int64
	tracer    trace.Tracer
}

// NewUploadService builds the upload pipeline. Storage may be nil when no
// archival backend is configured; the pipeline then keeps only the extracted
// text.
func NewUploadService(
	students repository.StudentRepository,
	courses repository.CourseRepository,
	papers repository.QuestionPaperRepository,
	enrols repository.EnrolmentRepository,
	extractor ocr.Client,
	storage FileStorage,
	publisher notify.Publisher,
	validate *validator.Validate,
	maxSizeMB int,
	logger zerolog.Logger,
) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		students:  students,
		courses:   courses,
		papers:    papers,
		enrols:    enrols,
		extractor: extractor,
		storage:   storage,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "upload_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		tracer:    otel.Tracer("upload-service"),
	}
}

func (s *uploadService) ValidateSheetRequest(ctx context.Context, req dto.UploadSheetRequest) error {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return err
	}
	return s.checkSheetType(req.SheetType, req.AssignmentNumber)
}

func (s *uploadService) ValidateBulkRequest(ctx context.Context, req dto.BulkUploadRequest) error {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return err
	}
	return s.checkSheetType(req.SheetType, req.AssignmentNumber)
}

func (s *uploadService) checkSheetType(sheetType string, number *int) error {
	t := models.SheetType(sheetType)
	if !t.Valid() {
		return ErrInvalidSheetType
	}
	if t.RequiresAssignmentNumber() && number == nil {
		return ErrAssignmentNumberRequired
	}
	return nil
}

// ReadFiles buffers and validates the multipart files before the request is
// accepted, so rejections are still synchronous.
func (s *uploadService) ReadFiles(headers []*multipart.FileHeader) ([]ocr.File, error) {
	if len(headers) == 0 {
		return nil, ErrNoFiles
	}

	files := make([]ocr.File, 0, len(headers))
	for _, header := range headers {
		if header.Size > s.maxSize {
			observability.UploadsRejected().WithLabelValues("size").Inc()
			return nil, fmt.Errorf("%w: %s", ErrUploadTooLarge, header.Filename)
		}

		handle, err := header.Open()
		if err != nil {
			return nil, err
		}

		buf := bytes.NewBuffer(nil)
		_, err = io.Copy(buf, io.LimitReader(handle, s.maxSize+1))
		_ = handle.Close()
		if err != nil {
			return nil, err
		}
		if int64(buf.Len()) > s.maxSize {
			observability.UploadsRejected().WithLabelValues("size").Inc()
			return nil, fmt.Errorf("%w: %s", ErrUploadTooLarge, header.Filename)
		}

		if err := checkSheetMime(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("%w: %s", err, header.Filename)
		}

		files = append(files, ocr.File{Name: header.Filename, Content: buf.Bytes()})
	}

	return files, nil
}

func checkSheetMime(content []byte) error {
	mime := mimetype.Detect(content)
	base, _, _ := strings.Cut(mime.String(), ";")
	if _, ok := allowedSheetMimes[strings.TrimSpace(base)]; !ok {
		observability.UploadsRejected().WithLabelValues("type").Inc()
		return ErrUploadTypeNotAllowed
	}
	return nil
}

// ProcessSheet runs OCR and text storage for one student's scans and publishes
// the terminal upload event.
func (s *uploadService) ProcessSheet(ctx context.Context, req dto.UploadSheetRequest, files []ocr.File, teacher string) error {
	ctx, span := s.tracer.Start(ctx, "upload.sheet", trace.WithAttributes(
		attribute.String("roll_no", req.RollNo),
		attribute.String("course", req.CourseName),
		attribute.String("sheet_type", req.SheetType),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	err := s.processOne(ctx, req, files)
	if err != nil {
		s.logger.Error().Err(err).
			Str("roll_no", req.RollNo).
			Str("course", req.CourseName).
			Str("sheet_type", req.SheetType).
			Msg("sheet upload failed")
		s.publisher.Publish(ctx, notify.UploadChannel(teacher), dto.Event{
			Type:             uploadFailureEventType(req.SheetType),
			RollNo:           req.RollNo,
			CourseName:       req.CourseName,
			SheetType:        req.SheetType,
			AssignmentNumber: req.AssignmentNumber,
			Message:          uploadFacingReason(err),
		})
		return err
	}

	s.publisher.Publish(ctx, notify.UploadChannel(teacher), dto.Event{
		Type:             uploadSuccessEventType(req.SheetType),
		RollNo:           req.RollNo,
		CourseName:       req.CourseName,
		SheetType:        req.SheetType,
		AssignmentNumber: req.AssignmentNumber,
	})
	return nil
}

// ProcessBulk unpacks the archive and runs the single-sheet pipeline per
// top-level folder, treating the folder name as the roll number.
func (s *uploadService) ProcessBulk(ctx context.Context, req dto.BulkUploadRequest, archive []byte, teacher string) error {
	ctx, span := s.tracer.Start(ctx, "upload.bulk", trace.WithAttributes(
		attribute.String("course", req.CourseName),
		attribute.String("sheet_type", req.SheetType),
	))
	defer span.End()

	batches, err := unpackArchive(archive)
	if err != nil {
		observability.UploadsRejected().WithLabelValues("archive").Inc()
		s.logger.Error().Err(err).Str("course", req.CourseName).Msg("bulk upload archive unreadable")
		s.publisher.Publish(ctx, notify.TeacherChannel(teacher), dto.Event{
			Type:       dto.EventBulkUploadFatal,
			CourseName: req.CourseName,
			SheetType:  req.SheetType,
			Message:    "archive could not be read",
		})
		return err
	}

	rollNos := make([]string, 0, len(batches))
	for rollNo := range batches {
		rollNos = append(rollNos, rollNo)
	}
	sort.Strings(rollNos)

	total := len(rollNos)
	for i, rollNo := range rollNos {
		single := dto.UploadSheetRequest{
			RollNo:           rollNo,
			CourseName:       req.CourseName,
			SheetType:        req.SheetType,
			AssignmentNumber: req.AssignmentNumber,
		}
		err := s.ProcessSheet(ctx, single, batches[rollNo], teacher)

		progress := (i + 1) * 100 / total
		event := dto.Event{
			Type:       dto.EventBulkUploadProgress,
			RollNo:     rollNo,
			CourseName: req.CourseName,
			SheetType:  req.SheetType,
			Progress:   &progress,
		}
		if err != nil {
			event.Message = uploadFacingReason(err)
		}
		s.publisher.Publish(ctx, notify.TeacherChannel(teacher), event)
	}

	s.publisher.Publish(ctx, notify.TeacherChannel(teacher), dto.Event{
		Type:             dto.EventBulkUploadComplete,
		CourseName:       req.CourseName,
		SheetType:        req.SheetType,
		AssignmentNumber: req.AssignmentNumber,
	})
	return nil
}

func (s *uploadService) processOne(ctx context.Context, req dto.UploadSheetRequest, files []ocr.File) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	for _, file := range files {
		if err := checkSheetMime(file.Content); err != nil {
			return fmt.Errorf("%w: %s", err, file.Name)
		}
	}

	student, err := s.students.GetByRollNo(ctx, req.RollNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	course, err := s.courses.GetByName(ctx, req.CourseName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	enrolment, err := s.enrols.GetByStudentAndCourse(ctx, student.ID, course.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEnrolmentNotFound
		}
		return err
	}

	sheetType := models.SheetType(req.SheetType)
	if sheetType == models.SheetTypeAssignment {
		// Assignments without an answer key cannot be evaluated later, so the
		// upload is rejected rather than stored.
		exists, err := s.papers.Exists(ctx, course.ID, sheetType, req.AssignmentNumber)
		if err != nil {
			return err
		}
		if !exists {
			return ErrQuestionPaperNotFound
		}
	}

	text, err := s.extractor.ExtractText(ctx, files)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	if sheetType == models.SheetTypeAssignment {
		if _, err := s.enrols.UpsertAssignmentSubmission(ctx, enrolment.ID, *req.AssignmentNumber, text); err != nil {
			return fmt.Errorf("store submission: %w", err)
		}
	} else {
		if err := s.enrols.SaveSheetText(ctx, enrolment.ID, sheetType, text); err != nil {
			return fmt.Errorf("store sheet text: %w", err)
		}
	}

	s.archive(ctx, req, files)
	return nil
}

// archive stores the original scans for audit. Failures are logged, not
// surfaced; the extracted text has already been persisted.
func (s *uploadService) archive(ctx context.Context, req dto.UploadSheetRequest, files []ocr.File) {
	if s.storage == nil {
		return
	}
	for _, file := range files {
		name := fmt.Sprintf("%s/%s/%s/%s", req.CourseName, req.SheetType, req.RollNo, file.Name)
		if _, err := s.storage.Upload(ctx, name, bytes.NewReader(file.Content)); err != nil {
			s.logger.Warn().Err(err).Str("file", file.Name).Msg("failed to archive scan")
		}
	}
}

// unpackArchive groups zip entries by their top-level folder name. Entries at
// the archive root and empty folders are ignored.
func unpackArchive(archive []byte) (map[string][]ocr.File, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	batches := make(map[string][]ocr.File)
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		clean := path.Clean(strings.ReplaceAll(entry.Name, `\`, "/"))
		parts := strings.Split(clean, "/")
		if len(parts) < 2 || parts[0] == "" || parts[0] == ".." || parts[0] == "." {
			continue
		}
		rollNo := parts[0]

		handle, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		content, err := io.ReadAll(handle)
		_ = handle.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}

		batches[rollNo] = append(batches[rollNo], ocr.File{Name: path.Base(clean), Content: content})
	}

	return batches, nil
}

func uploadSuccessEventType(sheetType string) string {
	switch models.SheetType(sheetType) {
	case models.SheetTypeMidterm:
		return dto.EventMidtermUploadSuccess
	case models.SheetTypeEndterm:
		return dto.EventEndtermUploadSuccess
	default:
		return dto.EventAssignmentUploadSuccess
	}
}

func uploadFailureEventType(sheetType string) string {
	switch models.SheetType(sheetType) {
	case models.SheetTypeMidterm:
		return dto.EventMidtermUploadFailure
	case models.SheetTypeEndterm:
		return dto.EventEndtermUploadFailure
	default:
		return dto.EventAssignmentUploadFailure
	}
}

func uploadFacingReason(err error) string {
	switch {
	case errors.Is(err, ErrStudentNotFound),
		errors.Is(err, ErrCourseNotFound),
		errors.Is(err, ErrEnrolmentNotFound),
		errors.Is(err, ErrQuestionPaperNotFound),
		errors.Is(err, ErrUploadTypeNotAllowed),
		errors.Is(err, ErrUploadTooLarge),
		errors.Is(err, ErrNoFiles):
		return err.Error()
	case errors.Is(err, ocr.ErrUnavailable), errors.Is(err, ocr.ErrMalformed):
		return "text extraction failed"
	default:
		return "upload failed"
	}
}
