//go:build embed_openapi

package api

import "ecomap/openapi"

func openAPILoad() ([]byte, error) { return openapi.Spec, nil }
