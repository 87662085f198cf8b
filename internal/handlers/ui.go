package handlers

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	title       = "Background remover"
	description = "Removes the background of a portrait. Upload an image or pick one of the examples, " +
		"then move the cutoff: pixels whose mask value is above it are kept."
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index.html").Parse(indexHTML))

// Index serves the upload form.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":            title,
		"Description":      description,
		"DefaultThreshold": h.defaultThreshold,
		"Examples":         h.examples,
	})
}
