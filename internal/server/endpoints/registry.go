package endpoints

import (
	"github.com/jackzampolin/textscan/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// PDF extraction
		&UploadPDFEndpoint{},
		&PDFResultsEndpoint{},

		// Result downloads
		&DownloadFileEndpoint{},

		// Detection sessions
		&StartSessionEndpoint{},
		&ListSessionsEndpoint{},
		&GetSessionEndpoint{},
		&CaptureSessionEndpoint{},
		&StopSessionEndpoint{},
		&SaveSessionEndpoint{},
		&PreviewEndpoint{},

		// Configuration
		&GetConfigEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}
