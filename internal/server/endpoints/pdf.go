package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/pdftext"
	"github.com/jackzampolin/textscan/internal/results"
	"github.com/jackzampolin/textscan/internal/svcctx"
)

// NoFileMessage is returned when an upload carries no file.
const NoFileMessage = "Error: No file uploaded!"

// pdfField is the multipart field holding the uploaded PDF.
const pdfField = "pdf"

// UploadPDFEndpoint handles POST /api/pdf.
type UploadPDFEndpoint struct{}

var _ api.Endpoint = (*UploadPDFEndpoint)(nil)

func (e *UploadPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pdf", e.handler
}

func (e *UploadPDFEndpoint) RequiresInit() bool { return true }

func (e *UploadPDFEndpoint) Group() string { return "pdf" }

// handler godoc
//
//	@Summary		Extract text from a PDF
//	@Description	Reads the text layer of every page, falling back to OCR for pages without one
//	@Tags			pdf
//	@Accept			mpfd
//	@Produce		json
//	@Param			pdf	formData	file	true	"PDF file"
//	@Success		200	{object}	results.Report
//	@Failure		400	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/pdf [post]
func (e *UploadPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 64 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	src, fh, err := r.FormFile(pdfField)
	if err != nil || fh.Filename == "" {
		writeError(w, http.StatusBadRequest, NoFileMessage)
		return
	}
	defer src.Close()

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", fh.Filename))
		return
	}

	ctx := r.Context()
	pipeline := svcctx.PipelineFrom(ctx)
	store := svcctx.ResultsFrom(ctx)
	homeDir := svcctx.HomeFrom(ctx)
	if pipeline == nil || store == nil || homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf pipeline not initialized")
		return
	}
	logger := svcctx.LoggerFrom(ctx)

	path := homeDir.UploadPath(uuid.New().String())
	if err := saveUpload(src, path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(path)

	res, err := pipeline.Process(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, pdftext.ErrNoData):
			writeError(w, http.StatusUnprocessableEntity, pdftext.NoDataMessage)
		case errors.Is(err, pdftext.ErrInvalidPDF):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error("pdf extraction failed", "file", fh.Filename, "error", err)
			writeError(w, statusFor(err), err.Error())
		}
		return
	}

	report, err := store.SavePDF(results.Report{
		Source:   fh.Filename,
		Rows:     res.Rows,
		Lines:    res.Lines(),
		Pages:    res.Pages,
		OCRPages: res.OCRPages,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("pdf processed", "file", fh.Filename, "pages", res.Pages, "ocr_pages", len(res.OCRPages), "rows", len(res.Rows))
	writeJSON(w, http.StatusOK, report)
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return dst.Close()
}

func (e *UploadPDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Extract text from a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp results.Report
			if err := client.Upload(cmd.Context(), "/api/pdf", pdfField, args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PDFResultsEndpoint handles GET /api/pdf/results.
type PDFResultsEndpoint struct{}

var _ api.Endpoint = (*PDFResultsEndpoint)(nil)

func (e *PDFResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pdf/results", e.handler
}

func (e *PDFResultsEndpoint) RequiresInit() bool { return true }

func (e *PDFResultsEndpoint) Group() string { return "pdf" }

// handler godoc
//
//	@Summary	Latest PDF extraction
//	@Tags		pdf
//	@Produce	json
//	@Success	200	{object}	results.Report
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/pdf/results [get]
func (e *PDFResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.ResultsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store not initialized")
		return
	}
	report, ok := store.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no PDF has been processed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (e *PDFResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Show the latest PDF extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp results.Report
			if err := client.Get(cmd.Context(), "/api/pdf/results", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
