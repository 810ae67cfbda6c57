package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"pmSchedule/internal/handlers/dto"
	"pmSchedule/internal/logger"
	"pmSchedule/internal/models/schedule"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type ScheduleHandler struct {
	ScheduleService ScheduleService
}

func NewScheduleHandler(scheduleService ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		ScheduleService: scheduleService,
	}
}

// Routes монтирует ресурс /api/schedule
func (s *ScheduleHandler) Routes(r chi.Router) {
	r.Get("/", s.ListTasks)
	r.Post("/", s.PostTask)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.GetTaskByID)
		r.Put("/", s.UpdateTaskByID)
		r.Delete("/", s.DeleteTaskByID)
	})
}

func (s *ScheduleHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.ScheduleService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Хранилище недоступно", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("error", err.Error()))
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("time", time.Now().UTC().Format(time.RFC3339)))
}

func (s *ScheduleHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	tasks, err := s.ScheduleService.ListTasks(r.Context())
	if err != nil {
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "list_tasks"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithValue(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (s *ScheduleHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	draft, ok := s.decodeTask(w, r)
	if !ok {
		return
	}

	logger.Info("HTTP: Вызов сервиса создания задачи")
	created, err := s.ScheduleService.CreateTask(r.Context(), draft)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "create_task"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.Int64("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithValue(w, http.StatusCreated, dto.FromTask(created))
}

func (s *ScheduleHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	task, err := s.ScheduleService.GetTask(r.Context(), id)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка в Service", err,
			zap.String("operation", "get_task"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.Int64("task_id", task.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithValue(w, http.StatusOK, dto.FromTask(task))
}

// UpdateTaskByID - полная замена записи (PUT)
func (s *ScheduleHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	replacement, ok := s.decodeTask(w, r)
	if !ok {
		return
	}

	updated, err := s.ScheduleService.UpdateTask(r.Context(), id, schedule.Replace(replacement)...)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка в Service", err,
			zap.String("operation", "update_task"),
			zap.Int64("task_id", id))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithValue(w, http.StatusOK, dto.FromTask(updated))
}

func (s *ScheduleHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.ScheduleService.DeleteTask(r.Context(), id); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка в Service", err,
			zap.String("operation", "delete_task"),
			zap.Int64("task_id", id))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (s *ScheduleHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idParam := chi.URLParam(r, "id")
	id, ok := parseID(idParam)
	if !ok {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("id", idParam),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверный id: "+idParam)
		return 0, false
	}
	return id, true
}

func (s *ScheduleHandler) decodeTask(w http.ResponseWriter, r *http.Request) (schedule.Task, bool) {
	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return schedule.Task{}, false
	}

	var request dto.TaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return schedule.Task{}, false
	}

	if field := missingField(request); field != "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", field),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))

		handleBusinessError(w, validationError(field, "обязательное поле"))
		return schedule.Task{}, false
	}

	task, err := request.ToTask()
	if err != nil {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "dueDate"),
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		handleBusinessError(w, validationError("dueDate", err.Error()))
		return schedule.Task{}, false
	}
	return task, true
}
