package demo

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// maxFormBytes bounds the body of POST /api/text.
const maxFormBytes = 8 << 10

type Handler struct {
	svc     *Service
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// NewHandler routes the demo endpoints. metrics may be nil.
func NewHandler(svc *Service, logger *slog.Logger, metrics http.Handler) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{svc: svc, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("GET /api/data", h.data)
	h.mux.HandleFunc("POST /api/setup", h.setup)
	h.mux.HandleFunc("POST /api/text", h.updateText)
	h.mux.HandleFunc("POST /api/destroy", h.destroy)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	if metrics != nil {
		h.mux.Handle("GET /metrics", metrics)
	}
	h.handler = Chain(h.mux, RequestID(logger), AccessLog(logger), Recover(logger))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	data := h.svc.LoadData(r.Context(), r.Header.Get("Cookie"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTemplate.Execute(w, data); err != nil {
		loggerFrom(r.Context(), h.logger).Error("failed to render page", "error", err)
	}
}

func (h *Handler) data(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, h.svc.LoadData(r.Context(), r.Header.Get("Cookie")))
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	cookie, err := h.svc.RecordPageLoad(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Add("Set-Cookie", cookie)
	h.writeJSON(w, r, map[string]string{"newCookie": cookie})
}

func (h *Handler) updateText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	newText, err := readNewText(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cookie, err := h.svc.UpdateText(r.Context(), r.Header.Get("Cookie"), newText)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Add("Set-Cookie", cookie)
	h.writeJSON(w, r, map[string]string{"newCookie": cookie})
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request) {
	cookie, err := h.svc.DestroySession(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Add("Set-Cookie", cookie)
	h.writeJSON(w, r, map[string]string{"destroyedCookie": cookie})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// readNewText accepts {"newText": "..."} or a form field of the same name.
func readNewText(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			NewText string `json:"newText"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		return body.NewText, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("newText"), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context(), h.logger).Error("failed to write response", "error", err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	loggerFrom(r.Context(), h.logger).Error("request failed", "error", err, "path", r.URL.Path)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
