package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/text-to-dashboard/internal/api/response"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/Rrens/text-to-dashboard/internal/superset"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// decodeAndValidate reads a JSON body into dst and validates it. On failure the
// error response is already written and false is returned.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make(map[string]string)
			for _, e := range validationErrors {
				switch e.Tag() {
				case "required":
					fields[e.Field()] = "field is required"
				case "min":
					fields[e.Field()] = "must be at least " + e.Param()
				case "max":
					fields[e.Field()] = "must be at most " + e.Param() + " characters"
				default:
					fields[e.Field()] = "validation failed on " + e.Tag()
				}
			}
			response.BadRequest(w, fields)
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}

	return true
}

// serviceError maps pipeline errors onto HTTP statuses
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *superset.APIError

	switch {
	case errors.Is(err, llm.ErrProviderNotFound), errors.Is(err, llm.ErrProviderNotConfigured):
		response.BadRequest(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(r.Context().Err(), context.DeadlineExceeded):
		response.GatewayTimeout(w, err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		response.NotFound(w, err.Error())
	case errors.Is(err, llm.ErrParse), errors.As(err, &apiErr):
		response.BadGateway(w, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, err.Error())
	}
}
