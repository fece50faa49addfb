package slots

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type SlotHandler struct {
	generator *Generator
}

func NewSlotHandler(db *gorm.DB) *SlotHandler {
	return &SlotHandler{generator: NewGenerator(db)}
}

func (h *SlotHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/doctors/{doctorId}/slots", h.GetSlots).Methods("GET")
}

func (h *SlotHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseUint(mux.Vars(r)["doctorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	duration := DefaultSlotMinutes
	if v := r.URL.Query().Get("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil || duration <= 0 {
			http.Error(w, "Invalid duration", http.StatusBadRequest)
			return
		}
	}

	schedule, err := h.generator.DaySchedule(uint(doctorID), date, duration)
	if err != nil {
		http.Error(w, "Error generating slots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(schedule)
}
