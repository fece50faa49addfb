package appointment

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/utils"
	"github.com/sabrisabah/Nutrition-Mays-sub000/service/scheduling"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type AppointmentHandler struct {
	db     *gorm.DB
	ledger *Ledger
}

func NewAppointmentHandler(db *gorm.DB, ledger *Ledger) *AppointmentHandler {
	return &AppointmentHandler{db: db, ledger: ledger}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments", utils.AuthMiddleware(h.BookAppointment)).Methods("POST")
	router.HandleFunc("/appointments", h.GetAllAppointments).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}", h.GetAppointment).Methods("GET")
	router.HandleFunc("/appointments/doctor/{doctorId}", h.GetDoctorAppointments).Methods("GET")
	router.HandleFunc("/appointments/patient/{patientId}", h.GetPatientAppointments).Methods("GET")

	router.HandleFunc("/appointments/{id:[0-9]+}/confirm", utils.AuthMiddleware(h.ConfirmAppointment)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/complete", utils.AuthMiddleware(h.CompleteAppointment)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/no-show", utils.AuthMiddleware(h.MarkNoShow)).Methods("POST")
	router.HandleFunc("/appointments/{id:[0-9]+}/payment", utils.AuthMiddleware(h.RecordPayment)).Methods("PATCH")
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var bookingRequest struct {
		DoctorID        uint   `json:"doctor_id"`
		Date            string `json:"date"`
		StartTime       string `json:"start_time"`
		DurationMinutes int    `json:"duration_minutes"`
		Type            string `json:"type"`
		ChiefComplaint  string `json:"chief_complaint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", bookingRequest.Date)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	appointment, err := h.ledger.Create(CreateRequest{
		PatientID:       actorID,
		DoctorID:        bookingRequest.DoctorID,
		Date:            date,
		StartTime:       bookingRequest.StartTime,
		DurationMinutes: bookingRequest.DurationMinutes,
		Type:            bookingRequest.Type,
		ChiefComplaint:  bookingRequest.ChiefComplaint,
	})
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	h.db.Preload("Patient").Preload("Doctor").First(appointment, appointment.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Preload("Patient").Preload("Doctor")

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if date := r.URL.Query().Get("date"); date != "" {
		query = query.Where("date = ?", date)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("date DESC, start_time DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.Preload("Patient").Preload("Doctor").First(&appointment, appointmentID).Error; err != nil {
		scheduling.WriteError(w, scheduling.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) GetDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	h.listForParty(w, r, "doctorId", "doctor_id", "Patient")
}

func (h *AppointmentHandler) GetPatientAppointments(w http.ResponseWriter, r *http.Request) {
	h.listForParty(w, r, "patientId", "patient_id", "Doctor")
}

func (h *AppointmentHandler) listForParty(w http.ResponseWriter, r *http.Request, pathVar, column, preload string) {
	partyID, err := strconv.ParseUint(mux.Vars(r)[pathVar], 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Where(column+" = ?", partyID).Preload(preload)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("date DESC, start_time DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AppointmentHandler) ConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, actorID, ok := h.transitionParams(w, r)
	if !ok {
		return
	}

	appointment, err := h.ledger.Confirm(appointmentID, actorID)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, actorID, ok := h.transitionParams(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// body is optional for cancellation
	json.NewDecoder(r.Body).Decode(&body)

	appointment, err := h.ledger.Cancel(appointmentID, actorID, body.Reason)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, actorID, ok := h.transitionParams(w, r)
	if !ok {
		return
	}

	var body struct {
		Notes           string `json:"notes"`
		Recommendations string `json:"recommendations"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	appointment, err := h.ledger.Complete(appointmentID, actorID, body.Notes, body.Recommendations)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	appointmentID, actorID, ok := h.transitionParams(w, r)
	if !ok {
		return
	}

	appointment, err := h.ledger.MarkNoShow(appointmentID, actorID)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	appointmentID, actorID, ok := h.transitionParams(w, r)
	if !ok {
		return
	}

	var body struct {
		Amount    float64 `json:"amount"`
		Method    string  `json:"method"`
		Reference string  `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.ledger.RecordPayment(appointmentID, actorID, body.Amount, body.Method, body.Reference)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payment)
}

func (h *AppointmentHandler) transitionParams(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	appointmentID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return 0, 0, false
	}

	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}
	return uint(appointmentID), actorID, true
}
