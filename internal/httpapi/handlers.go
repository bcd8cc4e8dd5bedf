package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/catalog"
	"github.com/Skufu/neurorisk/internal/db"
)

type fieldView struct {
	catalog.FieldSpec
	Placeholder string `json:"placeholder"`
}

type testView struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Fallback bool        `json:"fallback"`
	Fields   []fieldView `json:"fields"`
}

func newTestView(t *catalog.Test) testView {
	fields := make([]fieldView, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, fieldView{FieldSpec: f, Placeholder: f.Placeholder()})
	}
	return testView{ID: t.ID, Name: t.Name, Fallback: t.Fallback, Fields: fields}
}

type assessRequest struct {
	Values map[string]string `json:"values"`
}

type createFormRequest struct {
	Test string `json:"test"`
}

type changeFieldRequest struct {
	Value string `json:"value"`
}

type formResponse struct {
	ID    uuid.UUID            `json:"id"`
	State assessment.FormState `json:"state"`
}

func (h *handler) readyz(c *gin.Context) {
	status, err := db.Status(c.Request.Context(), h.db, 2*time.Second)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": status})
}

func (h *handler) listTests(c *gin.Context) {
	tests := h.catalog.Tests()
	out := make([]testView, 0, len(tests))
	for _, t := range tests {
		out = append(out, newTestView(t))
	}
	c.JSON(http.StatusOK, gin.H{"tests": out})
}

func (h *handler) getTest(c *gin.Context) {
	t, ok := h.lookupTest(c, c.Param("test"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newTestView(t))
}

// assess scores a complete set of values without keeping any form state.
func (h *handler) assess(c *gin.Context) {
	t, ok := h.lookupTest(c, c.Param("test"))
	if !ok {
		return
	}

	var req assessRequest
	if !bindJSON(c, &req) {
		return
	}

	values := make(map[string]string, len(t.Fields))
	for key, raw := range req.Values {
		if _, ok := t.Field(key); !ok {
			abortJSON(c, http.StatusBadRequest, "invalid_payload", fmt.Sprintf("unknown field %q", key))
			return
		}
		values[key], _ = assessment.Sanitize(raw)
	}

	nums, err := assessment.Prepare(t, values)
	if err != nil {
		writeError(c, err)
		return
	}

	ra, err := h.engine.ComputeRisk(c.Request.Context(), t, nums)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ra)
}

func (h *handler) createForm(c *gin.Context) {
	var req createFormRequest
	if !bindJSON(c, &req) {
		return
	}
	t, ok := h.lookupTest(c, req.Test)
	if !ok {
		return
	}

	id, f, err := h.sessions.Create(t)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Debug().Str("form_id", id.String()).Str("test", t.ID).Msg("form opened")
	c.JSON(http.StatusCreated, formResponse{ID: id, State: f.State()})
}

func (h *handler) getForm(c *gin.Context) {
	id, f, ok := h.lookupForm(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formResponse{ID: id, State: f.State()})
}

func (h *handler) changeField(c *gin.Context) {
	_, f, ok := h.lookupForm(c)
	if !ok {
		return
	}

	var req changeFieldRequest
	if !bindJSON(c, &req) {
		return
	}

	fb, err := f.Change(c.Param("key"), req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *handler) submitForm(c *gin.Context) {
	id, f, ok := h.lookupForm(c)
	if !ok {
		return
	}

	if _, err := f.Submit(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, formResponse{ID: id, State: f.State()})
}

func (h *handler) resetForm(c *gin.Context) {
	id, f, ok := h.lookupForm(c)
	if !ok {
		return
	}
	f.Reset()
	c.JSON(http.StatusOK, formResponse{ID: id, State: f.State()})
}

func (h *handler) deleteForm(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || !h.sessions.Delete(id) {
		abortJSON(c, http.StatusNotFound, "not_found", "unknown form")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) lookupTest(c *gin.Context, id string) (*catalog.Test, bool) {
	t, ok := h.catalog.Test(id)
	if !ok {
		abortJSON(c, http.StatusNotFound, "not_found", fmt.Sprintf("unknown test %q", id))
		return nil, false
	}
	return t, true
}

func (h *handler) lookupForm(c *gin.Context) (uuid.UUID, *assessment.Form, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortJSON(c, http.StatusNotFound, "not_found", "unknown form")
		return uuid.Nil, nil, false
	}
	f, ok := h.sessions.Get(id)
	if !ok {
		abortJSON(c, http.StatusNotFound, "not_found", "unknown form")
		return uuid.Nil, nil, false
	}
	return id, f, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return false
		}
		abortJSON(c, http.StatusBadRequest, "invalid_payload", err.Error())
		return false
	}
	return true
}
