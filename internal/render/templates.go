package render

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
)

const previewLen = 300

type Templates struct {
	templates *template.Template
	envConfig *models.EnvConfig
	fs        fs.FS
}

func (tmpls *Templates) RenderHTML(w http.ResponseWriter, tmplName string, data interface{}) {
	tmpls.RenderHTMLStatus(w, http.StatusOK, tmplName, data)
}

func (tmpls *Templates) RenderHTMLStatus(w http.ResponseWriter, status int, tmplName string, data interface{}) {
	// Reload templates every time when developing locally.
	if tmpls.envConfig.Debug {
		if err := tmpls.load(); err != nil {
			log.Error().Err(err).Msg("Reloading templates")
		}
	}
	buff := bytes.NewBuffer([]byte{})
	err := tmpls.templates.ExecuteTemplate(buff, tmplName, data)
	if err != nil && tmplName != "404" {
		log.Error().Err(err).Str("template", tmplName).Msg("Rendering template")
		tmpls.RenderHTMLStatus(w, http.StatusInternalServerError, "404", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buff.Bytes())
}

func markdown(s string) template.HTML {
	var b bytes.Buffer
	goldmark.Convert([]byte(s), &b)
	return template.HTML(b.String())
}
func markdownPreview(s string) template.HTML {
	i := strings.Index(s, "\n\n")
	if i < 0 || i > previewLen {
		i = len(s)
	}
	return markdown(utils.Truncate(s[:i], previewLen))
}
func date(t time.Time) string {
	return t.Format("Jan 2, 2006 15:04")
}

func (tmpls *Templates) load() error {
	t, err := template.New("").Funcs(template.FuncMap{
		"markdown":        markdown,
		"markdownPreview": markdownPreview,
		"truncate":        utils.Truncate,
		"date":            date,
	}).ParseFS(tmpls.fs, "templates/*.html")
	if err != nil {
		return err
	}
	tmpls.templates = t
	return nil
}

// SetFS replaces the filesystem templates are read from and parses them.
// It panics if they don't parse.
func (tmpls *Templates) SetFS(fsys fs.FS) {
	tmpls.fs = fsys
	if err := tmpls.load(); err != nil {
		panic(err)
	}
}

func GetTemplates(envConfig *models.EnvConfig, fsys fs.FS) Templates {
	tmpls := Templates{envConfig: envConfig}
	tmpls.SetFS(fsys)
	return tmpls
}
