package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/config"
	"github.com/jackzampolin/textscan/internal/svcctx"
)

// ConfigResponse is the effective server configuration.
type ConfigResponse struct {
	File   string         `json:"file,omitempty"`
	Config *config.Config `json:"config"`
}

// GetConfigEndpoint handles GET /api/config.
type GetConfigEndpoint struct{}

var _ api.Endpoint = (*GetConfigEndpoint)(nil)

func (e *GetConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/config", e.handler
}

func (e *GetConfigEndpoint) RequiresInit() bool { return false }

func (e *GetConfigEndpoint) Group() string { return "config" }

// handler godoc
//
//	@Summary	Effective configuration
//	@Tags		config
//	@Produce	json
//	@Success	200	{object}	ConfigResponse
//	@Failure	503	{object}	ErrorResponse
//	@Router		/api/config [get]
func (e *GetConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusServiceUnavailable, "config not loaded")
		return
	}
	writeJSON(w, http.StatusOK, ConfigResponse{File: cm.ConfigFileUsed(), Config: cm.Get()})
}

func (e *GetConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the server's effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ConfigResponse
			if err := client.Get(cmd.Context(), "/api/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
