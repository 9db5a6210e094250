package web

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/config"
	"github.com/hpungsan/snaplabel/internal/content"
	"github.com/hpungsan/snaplabel/internal/errors"
	"github.com/hpungsan/snaplabel/internal/imaging"
	"github.com/hpungsan/snaplabel/internal/inference"
	"github.com/hpungsan/snaplabel/internal/session"
	"github.com/hpungsan/snaplabel/internal/thumbnail"
	"github.com/hpungsan/snaplabel/internal/view"
)

// sessionCookie carries the session ID.
const sessionCookie = "snaplabel_session"

// uploadAccept is the file input accept list for uploads.
const uploadAccept = ".jpg,.jpeg,.png,.webp,.tiff,.tif,image/jpeg,image/png,image/webp,image/tiff"

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	cfg      *config.Config
	sessions *session.Manager
	provider inference.Provider
	renderer *Renderer
	logger   *zap.Logger
}

// HandleIndex handles GET /: render the page, classifying the held image if any.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := IndexPageData{
		PageData: PageData{
			Title:   "Image classifier",
			Version: h.renderer.version,
		},
		Accept:    uploadAccept,
		ModelID:   h.cfg.ModelID,
		ModelPath: h.cfg.ModelPath,
		HasImage:  sess.HasImage(),
		ImageURL:  "/image",
		Saved:     r.URL.Query().Get("saved"),
	}

	// The vocabulary drives both the editor and the panel, so a missing
	// model stops the whole page.
	predictor, err := h.provider.Predictor(r.Context())
	if err != nil {
		h.logger.Error("model unavailable", zap.Error(err))
		data.Error = errorView(err)
		h.renderer.renderPageStatus(w, r, errors.From(err).Status, "index", data)
		return
	}
	data.Vocabulary = predictor.Vocabulary()

	edit, err := h.editForm(r, sess.Registry(), view.SelectLabel(data.Vocabulary, r.URL.Query().Get("edit"), ""))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Edit = edit

	if !data.HasImage {
		h.renderer.renderPage(w, r, "index", data)
		return
	}

	res, err := sess.Classify(r.Context(), h.provider)
	if err != nil {
		data.Decoded = !errors.Is(err, errors.ErrDecode)
		data.Error = errorView(err)
		h.renderer.renderPageStatus(w, r, errors.From(err).Status, "index", data)
		return
	}

	data.Decoded = true
	data.Result = res
	data.Predicted = res.Prediction.Label
	data.Rows = view.Rows(res.Vocabulary, res.Prediction.Probs, res.Prediction.Label)
	data.InfoLabel = view.SelectLabel(res.Vocabulary, r.URL.Query().Get("label"), res.Prediction.Label)

	lc, err := sess.Registry().Get(r.Context(), data.InfoLabel)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Panel = view.BuildPanel(data.InfoLabel, lc)

	h.renderer.renderPage(w, r, "index", data)
}

// HandleUpload handles POST /image: hold a camera snapshot or uploaded file.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid or oversized form data"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("image is required"))
		return
	}
	defer file.Close()

	source := r.FormValue("source")
	if source != "camera" && !imaging.AllowedExtension(header.Filename) {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("unsupported file type (allowed: jpg, png, jpeg, webp, tiff)"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("failed to read image"))
		return
	}
	if int64(len(data)) > h.cfg.MaxUploadBytes {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("image exceeds the upload limit"))
		return
	}
	if len(data) == 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("image is empty"))
		return
	}

	sess.Hold(data)
	h.logger.Debug("image held",
		zap.String("session", sess.ID()),
		zap.String("source", source),
		zap.Int("bytes", len(data)),
	)

	// JSON request: classify right away
	if wantsJSON(r) {
		res, err := sess.Classify(r.Context(), h.provider)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"label": res.Prediction.Label,
			"index": res.Prediction.Index,
			"rows":  view.Rows(res.Vocabulary, res.Prediction.Probs, res.Prediction.Label),
		})
		return
	}

	h.redirect(w, r, "/")
}

// HandleImage handles GET /image: the session's held image bytes.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.existingSession(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	held := sess.Held()
	if held == nil {
		h.renderer.renderError(w, r, errors.NewNotFound("held image"))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(held))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(held)
}

// HandleGetContent handles GET /labels/{label}/content.
func (h *Handlers) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	label, err := labelParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	sess, err := h.session(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	lc, err := sess.Registry().Get(r.Context(), label)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, contentJSON(label, lc))
}

// HandleSetContent handles POST /labels/{label}/content: replace a label's content.
// Form fields text, image and video may each repeat up to three times.
func (h *Handlers) HandleSetContent(w http.ResponseWriter, r *http.Request) {
	label, err := labelParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	sess, err := h.session(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	reg := sess.Registry()
	if err := reg.Set(r.Context(), label, r.PostForm["text"], r.PostForm["image"], r.PostForm["video"]); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		lc, err := reg.Get(r.Context(), label)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, contentJSON(label, lc))
		return
	}

	q := url.Values{}
	q.Set("edit", label)
	q.Set("saved", label)
	if info := r.FormValue("info_label"); info != "" {
		q.Set("label", info)
	}
	h.redirect(w, r, "/?"+q.Encode())
}

// HandleThumbnail handles GET /thumbnail?url=: resolve a video thumbnail.
func (h *Handlers) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if strings.TrimSpace(raw) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("url is required"))
		return
	}
	id, _ := thumbnail.VideoID(raw)
	thumb, ok := thumbnail.Resolve(raw)
	renderJSON(w, http.StatusOK, map[string]any{
		"url":       raw,
		"video_id":  id,
		"thumbnail": thumb,
		"found":     ok,
	})
}

// HandleEndSession handles POST /session/end: clear held image and label content.
func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := h.sessions.End(r.Context(), c.Value); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"ended": true})
		return
	}
	h.redirect(w, r, "/")
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"status":   "ok",
		"version":  h.renderer.version,
		"sessions": h.sessions.Len(),
	}
	if l, ok := h.provider.(*inference.Loader); ok {
		out["model_loaded"] = l.Loaded()
	}
	renderJSON(w, http.StatusOK, out)
}

// session returns the caller's session, starting one when the cookie is
// missing, unknown or expired. The cookie is refreshed on every call.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	sess, err := h.existingSession(r)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		sess, err = h.sessions.Create(r.Context())
		if err != nil {
			return nil, err
		}
	}
	h.setSessionCookie(w, sess.ID())
	return sess, nil
}

// setSessionCookie (re)issues the session cookie so it lives as long as the
// idle TTL measured from this request.
func (h *Handlers) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   h.cfg.SessionTTLMinutes * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// existingSession returns the caller's session without creating one.
func (h *Handlers) existingSession(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, errors.NewNotFound("session")
	}
	return h.sessions.Get(r.Context(), c.Value)
}

// editForm loads label's content into three slots per kind.
func (h *Handlers) editForm(r *http.Request, reg content.Registry, label string) (EditForm, error) {
	form := EditForm{Label: label}
	if label == "" {
		return form, nil
	}
	lc, err := reg.Get(r.Context(), label)
	if err != nil {
		return form, err
	}
	copy(form.Texts[:], lc.Texts())
	copy(form.Images[:], lc.Images())
	copy(form.Videos[:], lc.Videos())
	return form, nil
}

// redirect sends the browser to target after a POST.
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, target string) {
	// HTMX request: redirect via HX-Redirect header
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// labelParam returns the unescaped {label} path segment.
func labelParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "label")
	label, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.NewInvalidRequest("invalid label")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return "", errors.NewInvalidRequest("label is required")
	}
	return label, nil
}

// contentJSON is the wire shape of one label's content.
func contentJSON(label string, lc content.LabelContent) map[string]any {
	return map[string]any{
		"label":  label,
		"texts":  lc.Texts(),
		"images": lc.Images(),
		"videos": lc.Videos(),
	}
}
