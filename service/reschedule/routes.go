package reschedule

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/utils"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"github.com/gorilla/mux"
)

type RescheduleHandler struct {
	coordinator *Coordinator
}

func NewRescheduleHandler(coordinator *Coordinator) *RescheduleHandler {
	return &RescheduleHandler{coordinator: coordinator}
}

func (h *RescheduleHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reschedule-requests", utils.AuthMiddleware(h.ProposeReschedule)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/reschedule-requests", h.GetRequests).Methods("GET")
	router.HandleFunc("/reschedule-requests/{id:[0-9]+}/approve", utils.AuthMiddleware(h.ApproveReschedule)).Methods("POST")
	router.HandleFunc("/reschedule-requests/{id:[0-9]+}/reject", utils.AuthMiddleware(h.RejectReschedule)).Methods("POST")
}

func (h *RescheduleHandler) ProposeReschedule(w http.ResponseWriter, r *http.Request) {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		AppointmentID uint   `json:"appointment_id"`
		NewDate       string `json:"new_date"`
		NewStartTime  string `json:"new_start_time"`
		Reason        string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	newDate, err := time.Parse("2006-01-02", body.NewDate)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	request, err := h.coordinator.Propose(body.AppointmentID, actorID, newDate, body.NewStartTime, body.Reason)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

func (h *RescheduleHandler) GetRequests(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	requests, err := h.coordinator.ListForAppointment(uint(appointmentID))
	if err != nil {
		http.Error(w, "Error retrieving reschedule requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment_id": appointmentID,
		"requests":       requests,
	})
}

func (h *RescheduleHandler) ApproveReschedule(w http.ResponseWriter, r *http.Request) {
	requestID, actorID, ok := requestParams(w, r)
	if !ok {
		return
	}

	request, err := h.coordinator.Approve(requestID, actorID)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(request)
}

func (h *RescheduleHandler) RejectReschedule(w http.ResponseWriter, r *http.Request) {
	requestID, actorID, ok := requestParams(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	request, err := h.coordinator.Reject(requestID, actorID, body.Notes)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(request)
}

func requestParams(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	requestID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return 0, 0, false
	}

	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}
	return uint(requestID), actorID, true
}
