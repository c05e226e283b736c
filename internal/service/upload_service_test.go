package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/models"
	"github.com/autoeval/autoeval-go-api/internal/ocr"
)

// pngHeader is enough of a real PNG for content-type detection.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type extractorStub struct {
	text    string
	err     error
	batches [][]ocr.File
}

func (e *extractorStub) ExtractText(_ context.Context, files []ocr.File) (string, error) {
	e.batches = append(e.batches, files)
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

type storageStub struct {
	mu    sync.Mutex
	names []string
}

func (s *storageStub) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	return "https://files.example.com/" + name, nil
}

type uploadFixture struct {
	students  *studentRepoStub
	courses   *courseRepoStub
	papers    *paperRepoStub
	enrols    *enrolRepoStub
	extractor *extractorStub
	storage   *storageStub
	publisher *publisherStub
	svc       UploadService
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	f := &uploadFixture{
		students:  &studentRepoStub{students: make(map[string]models.Student)},
		courses:   &courseRepoStub{courses: make(map[string]models.Course)},
		papers:    &paperRepoStub{},
		enrols:    newEnrolRepoStub(),
		extractor: &extractorStub{text: "Ans1 extracted answer"},
		storage:   &storageStub{},
		publisher: newPublisherStub(),
	}
	f.svc = NewUploadService(f.students, f.courses, f.papers, f.enrols, f.extractor, f.storage, f.publisher, validator.New(), 10, testLogger())

	f.courses.courses["Physics"] = models.Course{ID: 1, Name: "Physics"}
	f.students.students["s.rao"] = models.Student{ID: 1, Username: "s.rao", RollNo: "21CS042"}
	f.enrols.enrolments = append(f.enrols.enrolments, models.Enrolment{
		ID:        1,
		StudentID: 1,
		CourseID:  1,
		Student:   models.Student{ID: 1, Username: "s.rao", RollNo: "21CS042"},
	})
	return f
}

func midtermUpload(rollNo string) dto.UploadSheetRequest {
	return dto.UploadSheetRequest{RollNo: rollNo, CourseName: "Physics", SheetType: "MIDTERM"}
}

func TestProcessSheetStoresExtractedText(t *testing.T) {
	f := newUploadFixture(t)

	files := []ocr.File{{Name: "page1.png", Content: pngHeader}}
	err := f.svc.ProcessSheet(context.Background(), midtermUpload("21CS042"), files, "prof.kumar")
	require.NoError(t, err)

	require.Equal(t, "Ans1 extracted answer", f.enrols.enrolments[0].MidtermSheetText)
	require.Equal(t, []string{"Physics/MIDTERM/21CS042/page1.png"}, f.storage.names)

	events := f.publisher.on("uploads/prof.kumar")
	require.Len(t, events, 1)
	require.Equal(t, dto.EventMidtermUploadSuccess, events[0].Type)
	require.Equal(t, "21CS042", events[0].RollNo)
}

func TestProcessSheetUnknownRollNo(t *testing.T) {
	f := newUploadFixture(t)

	files := []ocr.File{{Name: "page1.png", Content: pngHeader}}
	err := f.svc.ProcessSheet(context.Background(), midtermUpload("99XX000"), files, "prof.kumar")
	require.ErrorIs(t, err, ErrStudentNotFound)

	events := f.publisher.on("uploads/prof.kumar")
	require.Len(t, events, 1)
	require.Equal(t, dto.EventMidtermUploadFailure, events[0].Type)
	require.Equal(t, "student not found", events[0].Message)
}

func TestProcessSheetRejectsDisallowedType(t *testing.T) {
	f := newUploadFixture(t)

	files := []ocr.File{{Name: "notes.txt", Content: []byte("plain text, not a scan")}}
	err := f.svc.ProcessSheet(context.Background(), midtermUpload("21CS042"), files, "prof.kumar")
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Empty(t, f.extractor.batches, "rejected files must not reach the extractor")
}

func TestProcessSheetAssignmentRequiresPaper(t *testing.T) {
	f := newUploadFixture(t)

	one := 1
	req := dto.UploadSheetRequest{RollNo: "21CS042", CourseName: "Physics", SheetType: "ASSIGNMENT", AssignmentNumber: &one}
	files := []ocr.File{{Name: "page1.png", Content: pngHeader}}

	err := f.svc.ProcessSheet(context.Background(), req, files, "prof.kumar")
	require.ErrorIs(t, err, ErrQuestionPaperNotFound)

	f.papers.papers = append(f.papers.papers, models.QuestionPaper{
		CourseID: 1, SheetType: models.SheetTypeAssignment, AssignmentNumber: &one,
	})
	require.NoError(t, f.svc.ProcessSheet(context.Background(), req, files, "prof.kumar"))

	submission, err := f.enrols.GetAssignmentSubmission(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Equal(t, "Ans1 extracted answer", submission.SheetText)
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	w := zip.NewWriter(buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestProcessBulkGroupsByFolder(t *testing.T) {
	f := newUploadFixture(t)
	f.students.students["b.two"] = models.Student{ID: 2, Username: "b.two", RollNo: "21CS043"}
	f.enrols.enrolments = append(f.enrols.enrolments, models.Enrolment{
		ID: 2, StudentID: 2, CourseID: 1,
		Student: models.Student{ID: 2, Username: "b.two", RollNo: "21CS043"},
	})

	archive := buildZip(t, map[string][]byte{
		"21CS042/page1.png": pngHeader,
		"21CS042/page2.png": pngHeader,
		"21CS043/page1.png": pngHeader,
		"stray-root.png":    pngHeader,
	})

	req := dto.BulkUploadRequest{CourseName: "Physics", SheetType: "MIDTERM"}
	require.NoError(t, f.svc.ProcessBulk(context.Background(), req, archive, "prof.kumar"))

	require.Len(t, f.extractor.batches, 2)
	require.Len(t, f.extractor.batches[0], 2, "both pages of the first folder in one OCR call")

	progress := f.publisher.on("teacher/prof.kumar")
	require.Len(t, progress, 3)
	require.Equal(t, dto.EventBulkUploadProgress, progress[0].Type)
	require.Equal(t, "21CS042", progress[0].RollNo)
	require.Equal(t, 50, *progress[0].Progress)
	require.Equal(t, 100, *progress[1].Progress)
	require.Equal(t, dto.EventBulkUploadComplete, progress[2].Type)
}

func TestProcessBulkIsolatesUnknownStudents(t *testing.T) {
	f := newUploadFixture(t)

	archive := buildZip(t, map[string][]byte{
		"21CS042/page1.png": pngHeader,
		"99XX000/page1.png": pngHeader,
	})

	req := dto.BulkUploadRequest{CourseName: "Physics", SheetType: "MIDTERM"}
	require.NoError(t, f.svc.ProcessBulk(context.Background(), req, archive, "prof.kumar"))

	require.Equal(t, "Ans1 extracted answer", f.enrols.enrolments[0].MidtermSheetText)

	progress := f.publisher.on("teacher/prof.kumar")
	require.Len(t, progress, 3)
	require.Equal(t, "student not found", progress[1].Message)
	require.Equal(t, dto.EventBulkUploadComplete, progress[2].Type)
}

func TestProcessBulkMalformedArchive(t *testing.T) {
	f := newUploadFixture(t)

	req := dto.BulkUploadRequest{CourseName: "Physics", SheetType: "MIDTERM"}
	err := f.svc.ProcessBulk(context.Background(), req, []byte("not a zip"), "prof.kumar")
	require.ErrorIs(t, err, ErrMalformedArchive)

	progress := f.publisher.on("teacher/prof.kumar")
	require.Len(t, progress, 1)
	require.Equal(t, dto.EventBulkUploadFatal, progress[0].Type)
}
