package api

import (
	"html/template"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/unicode/norm"

	"snipbin/cfg"
	"snipbin/pkg/domain"
	"snipbin/svc/render"
	"snipbin/svc/svc"
	"snipbin/svc/util"
)

type Hdl struct {
	paste     *svc.Paste
	cfg       *cfg.Cfg
	templates *template.Template
	languages []string
}

type indexData struct {
	Pastes    []*domain.Paste
	Languages []string
	Body      string
	Language  string
	Error     string
}

type pasteData struct {
	Paste     *domain.Paste
	Highlight render.Result
}

func NewHdl(p *svc.Paste, c *cfg.Cfg, t *template.Template) *Hdl {
	return &Hdl{paste: p, cfg: c, templates: t, languages: render.Languages()}
}

func (h *Hdl) Index(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	pastes, err := h.paste.RecentFeed(r.Context(), h.cfg.RecentLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list recent pastes")
		h.errorPage(w, err)
		return
	}
	h.renderIndex(w, http.StatusOK, indexData{Pastes: pastes, Languages: h.languages})
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	// Double the paste cap leaves headroom for form encoding overhead.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxPasteSize*2)
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("invalid form submission")
		h.renderIndex(w, http.StatusBadRequest, indexData{
			Languages: h.languages,
			Error:     "invalid or oversized submission",
		})
		return
	}
	body := sanitizeBody(r.PostFormValue("body"))
	language := strings.TrimSpace(r.PostFormValue("language"))
	paste, err := h.paste.Create(r.Context(), domain.CreateParams{
		Body:     body,
		Language: language,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBodyRequired),
			errors.Is(err, domain.ErrLanguageRequired),
			errors.Is(err, domain.ErrPasteTooLarge):
			log.Warn().Err(err).Msg("rejected paste submission")
			pastes, _ := h.paste.RecentFeed(r.Context(), h.cfg.RecentLimit)
			h.renderIndex(w, domain.Status(err), indexData{
				Pastes:    pastes,
				Languages: h.languages,
				Body:      body,
				Language:  language,
				Error:     domain.ToResp(err).Error.Msg,
			})
			return
		default:
			log.Error().Err(err).Msg("failed to create paste")
			h.errorPage(w, err)
			return
		}
	}
	log.Info().
		Str("paste_id", paste.ID).
		Str("language", paste.Language).
		Int("size", len(paste.Body)).
		Msg("paste created")
	http.Redirect(w, r, "/"+paste.ID, http.StatusSeeOther)
}

func (h *Hdl) ShowPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	id := chi.URLParam(r, "id")
	paste, err := h.paste.Retrieve(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			h.notFound(w)
			return
		}
		log.Error().Err(err).Str("paste_id", id).Msg("failed to retrieve paste")
		h.errorPage(w, err)
		return
	}
	log.Info().Str("paste_id", id).Msg("paste viewed")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pasteData{
		Paste:     paste,
		Highlight: render.Highlight(paste.Body, paste.Language),
	}
	if err := h.templates.ExecuteTemplate(w, "paste.html.tmpl", data); err != nil {
		log.Error().Err(err).Msg("render paste page")
	}
}

func (h *Hdl) RawPaste(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	paste, err := h.paste.Retrieve(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal server error", domain.Status(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(paste.Body))
}

func (h *Hdl) NotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w)
}

func (h *Hdl) renderIndex(w http.ResponseWriter, status int, data indexData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "index.html.tmpl", data); err != nil {
		util.Error().Err(err).Msg("render index page")
	}
}

func (h *Hdl) notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := h.templates.ExecuteTemplate(w, "notfound.html.tmpl", nil); err != nil {
		util.Error().Err(err).Msg("render 404 page")
	}
}

func (h *Hdl) errorPage(w http.ResponseWriter, err error) {
	status := domain.Status(err)
	msg := domain.ToResp(err).Error.Msg
	if status >= 500 {
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if terr := h.templates.ExecuteTemplate(w, "error.html.tmpl", map[string]string{"Message": msg}); terr != nil {
		util.Error().Err(terr).Msg("render error page")
	}
}

// sanitizeBody normalizes the submission without altering what the author
// meant: NFC normalization, invalid UTF-8 dropped, control characters
// other than newline and tab stripped. Escaping is the template layer's
// job, not storage's.
func sanitizeBody(s string) string {
	s = norm.NFC.String(s)
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
