// Package web отдаёт дашборд графика ТО: страницу, фрагмент таблицы для живого поиска
// и формы создания, редактирования и удаления.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"pmSchedule/internal/client/scheduleapi"
	"pmSchedule/internal/dashboard"
	"pmSchedule/internal/dashboard/form"
	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

var staticRoot = mustSub(staticFS, "static")

const NotFoundMessage = "ไม่พบใบงานที่ต้องการ"

var pageTmpl = template.Must(
	template.New("page.html").
		Funcs(template.FuncMap{
			"statusDone":    func() string { return string(schedule.StatusDone) },
			"statusPending": func() string { return string(schedule.StatusPending) },
		}).
		ParseFS(templatesFS, "templates/*.html"),
)

type pageData struct {
	dashboard.Page
	ChartJSON     template.JS
	DeleteMessage string
	// Flash - сообщение об ошибке над таблицей (неудачное удаление, неизвестный id)
	Flash string
}

type Handler struct {
	dash *dashboard.Dashboard
}

func New(dash *dashboard.Dashboard) *Handler {
	return &Handler{dash: dash}
}

func (h *Handler) Routes(r chi.Router) {
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))))

	r.Get("/", h.Index)
	r.Get("/table", h.TableFragment)
	r.Get("/tasks/new", h.NewTask)
	r.Post("/tasks", h.SaveTask)
	r.Get("/tasks/{id}/edit", h.EditTask)
	r.Get("/tasks/{id}/delete", h.ConfirmDelete)
	r.Post("/tasks/{id}/delete", h.DeleteTask)
}

// Index - первичная загрузка: список всегда запрашивается заново
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	_, err := h.dash.Refresh(r.Context())
	page := h.dash.Render(r.URL.Query().Get("q"), err)
	h.render(w, http.StatusOK, pageData{Page: page})
}

// TableFragment перефильтровывает текущий снимок, к API не обращается
func (h *Handler) TableFragment(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	if !h.dash.Store().Snapshot().Loaded() {
		if _, err := h.dash.Refresh(r.Context()); err != nil {
			h.renderTemplate(w, http.StatusOK, "rows", h.dash.Render(query, err).Table)
			return
		}
	}
	h.renderTemplate(w, http.StatusOK, "rows", h.dash.Table(query))
}

func (h *Handler) NewTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	page := h.current(r.Context(), r.URL.Query().Get("q"))
	page.Dialog = h.dash.OpenCreate()
	h.render(w, http.StatusOK, pageData{Page: page})
}

func (h *Handler) EditTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	page := h.current(r.Context(), r.URL.Query().Get("q"))
	id, ok := pathID(r)
	if !ok {
		h.render(w, http.StatusNotFound, pageData{Page: page, Flash: NotFoundMessage})
		return
	}

	dialog, err := h.dash.OpenEdit(id)
	if err != nil {
		logger.Warn("HTTP: Запись для редактирования не найдена", zap.Int64("task_id", id))
		h.render(w, http.StatusNotFound, pageData{Page: page, Flash: NotFoundMessage})
		return
	}
	page.Dialog = dialog
	h.render(w, http.StatusOK, pageData{Page: page})
}

// SaveTask - отправка формы. Скрытое поле id выбирает обновление вместо создания.
func (h *Handler) SaveTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if err := r.ParseForm(); err != nil {
		logger.Warn("HTTP: Ошибка разбора формы", zap.Error(err))
		http.Error(w, "неверная форма", http.StatusBadRequest)
		return
	}

	dialog, err := h.dash.Save(r.Context(), valuesFromForm(r))
	if err != nil {
		page := h.current(r.Context(), "")
		page.Dialog = dialog
		h.render(w, failureStatus(err), pageData{Page: page})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	page := h.current(r.Context(), "")
	id, ok := pathID(r)
	if !ok {
		h.render(w, http.StatusNotFound, pageData{Page: page, Flash: NotFoundMessage})
		return
	}

	task, err := h.dash.ConfirmDelete(id)
	if err != nil {
		h.render(w, http.StatusNotFound, pageData{Page: page, Flash: NotFoundMessage})
		return
	}
	page.ConfirmDelete = &task
	h.render(w, http.StatusOK, pageData{Page: page})
}

// DeleteTask удаляет только при confirm=yes, иначе просто возвращает на главную
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := pathID(r)
	if !ok {
		http.Error(w, "неверный id", http.StatusBadRequest)
		return
	}

	confirmed := r.PostFormValue("confirm") == "yes"
	if err := h.dash.Delete(r.Context(), id, confirmed); err != nil {
		page := h.current(r.Context(), "")
		h.render(w, failureStatus(err), pageData{Page: page, Flash: dashboard.DeleteFailedMessage(err)})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// current рисует страницу из имеющегося снимка, загружая его только при первом обращении
func (h *Handler) current(ctx context.Context, query string) dashboard.Page {
	var err error
	if !h.dash.Store().Snapshot().Loaded() {
		_, err = h.dash.Refresh(ctx)
	}
	return h.dash.Render(query, err)
}

func (h *Handler) render(w http.ResponseWriter, status int, data pageData) {
	chartJSON, err := data.Summary.Chart.JSON()
	if err != nil {
		logger.Error("HTTP: Ошибка сериализации диаграммы", err)
		chartJSON = "{}"
	}
	data.ChartJSON = template.JS(chartJSON)
	data.DeleteMessage = dashboard.DeleteConfirmMessage

	h.renderTemplate(w, status, "page.html", data)
}

// renderTemplate сначала пишет в буфер, чтобы ошибка шаблона не оставила полстраницы
func (h *Handler) renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("HTTP: Ошибка шаблона", err, zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("HTTP: Ошибка записи ответа", zap.Error(err))
	}
}

func valuesFromForm(r *http.Request) form.Values {
	return form.Values{
		ID:          r.PostFormValue("id"),
		MachineType: r.PostFormValue("machineType"),
		Task:        r.PostFormValue("task"),
		Frequency:   r.PostFormValue("frequency"),
		DueDate:     r.PostFormValue("dueDate"),
		Status:      r.PostFormValue("status"),
		Assignee:    r.PostFormValue("assignee"),
	}
}

func failureStatus(err error) int {
	var (
		validationErr *form.ValidationError
		mutationErr   *scheduleapi.MutationError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scheduleapi.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &mutationErr) && mutationErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.As(err, &mutationErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// mustSub паникует, если каталога нет во встроенной файловой системе, как template.Must
func mustSub(fsys fs.FS, dir string) fs.FS {
	if _, err := fs.Stat(fsys, dir); err != nil {
		panic(fmt.Sprintf("web: встроенный каталог %q: %v", dir, err))
	}
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("web: встроенный каталог %q: %v", dir, err))
	}
	return sub
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
