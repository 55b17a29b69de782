package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
	"github.com/Sumatoshi-tech/heatmap/pkg/render"
)

// Query parameters.
const (
	paramMode    = "mode"
	paramOverlay = "overlay"
	paramRecent  = "recent"
	paramSupport = "support"
)

var (
	errRouteNotFound = errors.New("route not found")
	errBadParameter  = errors.New("invalid query parameter")
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleProjects(rw http.ResponseWriter, hr *http.Request) {
	query := hr.URL.Query()
	def := project.DefaultFilter()

	recent, err := boolParam(query, paramRecent, def.Recent)
	if err != nil {
		s.writeError(rw, hr, http.StatusBadRequest, err)

		return
	}

	support, err := boolParam(query, paramSupport, def.Support)
	if err != nil {
		s.writeError(rw, hr, http.StatusBadRequest, err)

		return
	}

	list := render.NewProjectList(s.source.Catalog(), project.Filter{Recent: recent, Support: support})

	s.writeJSON(rw, hr, http.StatusOK, list)
}

func (s *Server) handleCalendar(rw http.ResponseWriter, hr *http.Request) {
	key := mux.Vars(hr)["key"]

	view, err := s.viewFromRequest(hr, key)
	if err != nil {
		s.writeError(rw, hr, statusFor(err), err)

		return
	}

	s.writeJSON(rw, hr, http.StatusOK, render.NewSnapshot(view, s.projectOf(key)))
}

func (s *Server) handleDay(rw http.ResponseWriter, hr *http.Request) {
	vars := mux.Vars(hr)

	date, err := calendar.ParseDate(vars["date"])
	if err != nil {
		s.writeError(rw, hr, http.StatusBadRequest, err)

		return
	}

	view, err := s.viewFromRequest(hr, vars["key"])
	if err != nil {
		s.writeError(rw, hr, statusFor(err), err)

		return
	}

	s.writeJSON(rw, hr, http.StatusOK, render.NewDaySnapshot(view, date))
}

func (s *Server) handlePage(rw http.ResponseWriter, hr *http.Request) {
	key := mux.Vars(hr)["key"]

	view, err := s.viewFromRequest(hr, key)
	if err != nil {
		s.writeError(rw, hr, statusFor(err), err)

		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")

	err = render.HTML(rw, view, s.projectOf(key))
	if err != nil {
		s.logger.ErrorContext(hr.Context(), "render page failed", "project", key, "error", err)
	}
}

// viewFromRequest resolves the view of key in the mode and overlay state
// named by the query, fetching file changes when the mode needs them.
func (s *Server) viewFromRequest(hr *http.Request, key string) (*calendar.View, error) {
	query := hr.URL.Query()

	mode := s.opts.DefaultMode

	if name := query.Get(paramMode); name != "" {
		parsed, err := calendar.ParseMode(name)
		if err != nil {
			return nil, err
		}

		mode = parsed
	}

	overlay, err := boolParam(query, paramOverlay, s.opts.ShowTemperature)
	if err != nil {
		return nil, err
	}

	return s.view(hr.Context(), key, mode, overlay)
}

func (s *Server) view(ctx context.Context, key string, mode calendar.Mode, overlay bool) (*calendar.View, error) {
	ctrl := calendar.NewModeController(calendar.ProviderFunc(s.calendar), calendar.ControllerOptions{
		Mode:    mode,
		Overlay: overlay,
		Logger:  s.logger,
	})

	return ctrl.SelectProject(ctx, key)
}

// projectOf returns the catalog entry of key, or a bare entry when the
// catalog has none.
func (s *Server) projectOf(key string) project.Project {
	if p, ok := s.source.Catalog().Lookup(key); ok {
		return p
	}

	return project.Project{Metadata: project.Metadata{Name: key}}
}

func boolParam(query url.Values, name string, def bool) (bool, error) {
	raw := query.Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", errBadParameter, name, raw)
	}

	return v, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, calendar.ErrUnknownProject):
		return http.StatusNotFound
	case errors.Is(err, calendar.ErrUnknownMode), errors.Is(err, calendar.ErrInvalidDate), errors.Is(err, errBadParameter):
		return http.StatusBadRequest
	case errors.Is(err, calendar.ErrFileChangeFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(rw http.ResponseWriter, hr *http.Request, code int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	err := render.WriteJSON(rw, body)
	if err != nil {
		s.logger.ErrorContext(hr.Context(), "failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(rw http.ResponseWriter, hr *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.WarnContext(hr.Context(), "request failed", "path", hr.URL.Path, "status", code, "error", err)
	}

	s.writeJSON(rw, hr, code, errorBody{Error: err.Error()})
}
