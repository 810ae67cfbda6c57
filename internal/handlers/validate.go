package handlers

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"pmSchedule/internal/handlers/dto"
)

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// missingField возвращает первое пустое обязательное поле
func missingField(request dto.TaskRequest) string {
	switch {
	case strings.TrimSpace(request.MachineType) == "":
		return "machineType"
	case strings.TrimSpace(request.Task) == "":
		return "task"
	case strings.TrimSpace(request.DueDate) == "":
		return "dueDate"
	}
	return ""
}
