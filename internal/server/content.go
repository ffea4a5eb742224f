package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lowercasename/eggcms/internal/notify"
	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

// Error codes in {"error": {"code", "message"}} responses.
const (
	codeNotFound   = "NOT_FOUND"
	codeBadRequest = "BAD_REQUEST"
	codeInternal   = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func notFound(c echo.Context, message string) error {
	return errorJSON(c, http.StatusNotFound, codeNotFound, message)
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := codeInternal
		switch {
		case he.Code == http.StatusNotFound:
			code = codeNotFound
		case he.Code < http.StatusInternalServerError:
			code = codeBadRequest
		}
		_ = errorJSON(c, he.Code, code, fmt.Sprint(he.Message))
		return
	}
	_ = s.storeError(c, err)
}

// storeError maps a repository failure onto a response.
func (s *Server) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidValue), errors.Is(err, types.ErrInvalidID):
		return errorJSON(c, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, types.ErrSchemaNotFound), errors.Is(err, types.ErrNotTableBacked):
		return notFound(c, err.Error())
	default:
		s.log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Content operation failed")
		return errorJSON(c, http.StatusInternalServerError, codeInternal, "Internal server error")
	}
}

// lookup resolves the :schema path parameter to a queryable schema.
func (s *Server) lookup(c echo.Context) (*schema.Definition, bool) {
	return schema.Find(s.schemas, c.Param("schema"))
}

func includeDrafts(c echo.Context) bool {
	return c.QueryParam("drafts") == "true"
}

func decodeBody(c echo.Context) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func (s *Server) notify(c echo.Context, def *schema.Definition, action types.Action, id string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(c.Request().Context(), notify.NewEvent(action, def.Name, id, s.now()))
}

// handleList serves GET /api/content/:schema. Singletons return their row,
// or an empty object before the first write.
func (s *Server) handleList(c echo.Context) error {
	name := c.Param("schema")
	def, ok := s.lookup(c)
	if !ok {
		return notFound(c, fmt.Sprintf("Schema '%s' not found", name))
	}
	ctx := c.Request().Context()

	if def.Kind == schema.KindSingleton {
		item, ok, err := s.store.GetSingleton(ctx, def)
		if err != nil {
			return s.storeError(c, err)
		}
		if !ok {
			return c.JSON(http.StatusOK, map[string]any{"data": map[string]any{}})
		}
		return c.JSON(http.StatusOK, map[string]any{"data": item})
	}

	items, err := s.store.List(ctx, def, includeDrafts(c))
	if err != nil {
		return s.storeError(c, err)
	}
	if items == nil {
		items = []*types.Item{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]int{"total": len(items)},
	})
}

// handleGet serves GET /api/content/:schema/:id. Drafts are hidden unless
// drafts=true is given.
func (s *Server) handleGet(c echo.Context) error {
	def, ok := s.lookup(c)
	if !ok || def.Kind == schema.KindSingleton {
		return notFound(c, "Not found")
	}
	item, ok, err := s.store.Get(c.Request().Context(), def, c.Param("id"))
	if err != nil {
		return s.storeError(c, err)
	}
	if !ok || (item.IsDraft() && !includeDrafts(c)) {
		return notFound(c, "Item not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"data": item})
}

// handleCreate serves POST /api/content/:schema. For a singleton it upserts
// and always notifies.
func (s *Server) handleCreate(c echo.Context) error {
	name := c.Param("schema")
	def, ok := s.lookup(c)
	if !ok {
		return notFound(c, fmt.Sprintf("Schema '%s' not found", name))
	}
	body, err := decodeBody(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, codeBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	if def.Kind == schema.KindSingleton {
		item, err := s.store.UpsertSingleton(ctx, def, body)
		if err != nil {
			return s.storeError(c, err)
		}
		s.notify(c, def, types.ActionUpdate, "")
		return c.JSON(http.StatusOK, map[string]any{"data": item})
	}

	item, err := s.store.Create(ctx, def, schema.DeriveSlugs(def, body))
	if err != nil {
		return s.storeError(c, err)
	}
	if notify.ShouldNotify(def, types.ActionCreate, item) {
		s.notify(c, def, types.ActionCreate, item.ID)
	}
	return c.JSON(http.StatusCreated, map[string]any{"data": item})
}

// handleUpdate serves PUT /api/content/:schema/:id as a partial update.
func (s *Server) handleUpdate(c echo.Context) error {
	def, ok := s.lookup(c)
	if !ok || def.Kind == schema.KindSingleton {
		return notFound(c, "Not found")
	}
	body, err := decodeBody(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, codeBadRequest, err.Error())
	}

	item, ok, err := s.store.Update(c.Request().Context(), def, c.Param("id"), body)
	if err != nil {
		return s.storeError(c, err)
	}
	if !ok {
		return notFound(c, "Item not found")
	}
	if notify.ShouldNotify(def, types.ActionUpdate, item) {
		s.notify(c, def, types.ActionUpdate, item.ID)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": item})
}

// handleDelete serves DELETE /api/content/:schema/:id. The row is read
// first so deleting a draft does not notify.
func (s *Server) handleDelete(c echo.Context) error {
	def, ok := s.lookup(c)
	if !ok || def.Kind == schema.KindSingleton {
		return notFound(c, "Not found")
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	existing, _, err := s.store.Get(ctx, def, id)
	if err != nil {
		return s.storeError(c, err)
	}
	deleted, err := s.store.Delete(ctx, def, id)
	if err != nil {
		return s.storeError(c, err)
	}
	if !deleted {
		return notFound(c, "Item not found")
	}
	if notify.ShouldNotify(def, types.ActionDelete, existing) {
		s.notify(c, def, types.ActionDelete, id)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": map[string]bool{"success": true}})
}

func (s *Server) handleMediaList(c echo.Context) error {
	if s.media == nil {
		return c.JSON(http.StatusOK, map[string]any{"data": []*types.Media{}, "meta": map[string]int{"total": 0}})
	}
	items, err := s.media.List(c.Request().Context())
	if err != nil {
		return s.storeError(c, err)
	}
	if items == nil {
		items = []*types.Media{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]int{"total": len(items)},
	})
}

func (s *Server) handleMediaGet(c echo.Context) error {
	if s.media == nil {
		return notFound(c, "Media not found")
	}
	m, ok, err := s.media.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.storeError(c, err)
	}
	if !ok {
		return notFound(c, "Media not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"data": m})
}
