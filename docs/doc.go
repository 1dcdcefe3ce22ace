// Package docs provides generated OpenAPI documentation.
//
// textscan API
//
//	@title			textscan API
//	@version		1.0
//	@description	Text extraction from PDFs and live camera frames: PDF upload with OCR fallback, webcam detection sessions and result downloads.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/textscan
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

import _ "embed"

//go:generate swag init -g ../cmd/textscan/serve.go -o ./swagger --outputTypes json --parseDependency --parseInternal

// SwaggerJSON is the generated OpenAPI document, built into the binary.
//
//go:embed swagger/swagger.json
var SwaggerJSON []byte
