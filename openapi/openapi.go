// Package openapi carries the API description for embedding into release
// builds (see the embed_openapi build tag in internal/api).
package openapi

import _ "embed"

//go:embed openapi.yaml
var Spec []byte
