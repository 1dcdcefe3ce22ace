package endpoints

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/svcctx"
)

// DownloadFileEndpoint handles GET /api/files/{name}.
type DownloadFileEndpoint struct{}

var _ api.Endpoint = (*DownloadFileEndpoint)(nil)

func (e *DownloadFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/files/{name}", e.handler
}

func (e *DownloadFileEndpoint) RequiresInit() bool { return true }

func (e *DownloadFileEndpoint) Group() string { return "files" }

// handler godoc
//
//	@Summary		Download a result file
//	@Description	Serves processed_results.csv, detected_text.txt or webcam_detected_text.txt as an attachment
//	@Tags			files
//	@Produce		octet-stream
//	@Param			name	path		string	true	"File name"
//	@Success		200		{file}		file
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/files/{name} [get]
func (e *DownloadFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.ResultsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store not initialized")
		return
	}

	name := r.PathValue("name")
	f, err := store.Open(name)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveAttachment(w, r, name, st.ModTime(), f)
}

// serveAttachment serves content with a download disposition. Range and
// conditional requests are handled by http.ServeContent.
func serveAttachment(w http.ResponseWriter, r *http.Request, name string, modTime time.Time, content io.ReadSeeker) {
	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, modTime, content)
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func (e *DownloadFileEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a result file",
		Long: `Download a result file from the server's working directory.

Known files: processed_results.csv, detected_text.txt, webcam_detected_text.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return download(cmd, client, http.MethodGet, "/api/files/"+args[0], out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write to this path (default: the server's file name, - for stdout)")
	return cmd
}

// download writes an attachment to out, to the suggested file name when
// out is empty, or to stdout when out is "-".
func download(cmd *cobra.Command, client *api.Client, method, path, out string) error {
	if out == "-" {
		_, err := client.Download(cmd.Context(), method, path, cmd.OutOrStdout())
		return err
	}

	tmp, err := os.CreateTemp(".", ".textscan-download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	name, err := client.Download(cmd.Context(), method, path, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if out == "" {
		out = filepath.Base(name)
		if out == "." || out == string(filepath.Separator) {
			out = filepath.Base(path)
		}
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", out)
	return nil
}
