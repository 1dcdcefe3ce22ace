package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/svcctx"
)

// PreviewEndpoint handles GET /api/preview, a websocket carrying annotated
// JPEG frames as binary messages and session events as JSON.
type PreviewEndpoint struct{}

var _ api.Endpoint = (*PreviewEndpoint)(nil)

func (e *PreviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/preview", e.handler
}

func (e *PreviewEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Live preview stream
//	@Description	Websocket stream of annotated frames. Pass session to follow one session, omit it to follow all.
//	@Tags			sessions
//	@Param			session	query	string	false	"Session ID"
//	@Success		101
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/preview [get]
func (e *PreviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	hub := svcctx.HubFrom(r.Context())
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "preview not initialized")
		return
	}

	topic := r.URL.Query().Get("session")
	if topic != "" {
		sessions := svcctx.SessionsFrom(r.Context())
		if sessions == nil {
			writeError(w, http.StatusServiceUnavailable, "session manager not initialized")
			return
		}
		if _, err := sessions.Get(topic); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	hub.ServeWS(w, r, topic)
}

func (e *PreviewEndpoint) Command(_ func() string) *cobra.Command {
	return nil // browser only
}
