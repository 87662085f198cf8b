package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/Brownie44l1/modnet-matting/internal/matting"
)

func (h *Handler) example(name string) (Example, bool) {
	for _, ex := range h.examples {
		if ex.Name == name {
			return ex, true
		}
	}
	return Example{}, false
}

func (h *Handler) ListExamples(c *gin.Context) {
	examples := h.examples
	if examples == nil {
		examples = []Example{}
	}
	c.JSON(http.StatusOK, gin.H{"examples": examples})
}

func (h *Handler) ExampleImage(c *gin.Context) {
	ex, ok := h.example(c.Param("name"))
	if !ok {
		h.writeError(c, http.StatusNotFound, errors.Errorf("unknown example %q", c.Param("name")))
		return
	}
	c.File(ex.Path)
}

// RunExample matts a preset image with its own threshold unless the
// request carries one.
func (h *Handler) RunExample(c *gin.Context) {
	ex, ok := h.example(c.Param("name"))
	if !ok {
		h.writeError(c, http.StatusNotFound, errors.Errorf("unknown example %q", c.Param("name")))
		return
	}

	var form matteForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, http.StatusBadRequest, err)
		return
	}

	img, err := matting.Open(ex.Path)
	if err != nil {
		h.writeError(c, 0, err)
		return
	}
	h.respond(c, img, form, form.threshold(ex.Threshold))
}
