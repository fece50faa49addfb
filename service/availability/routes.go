package availability

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

type AvailabilityHandler struct {
	store     *Store
	directory scheduling.UserDirectory
}

func NewAvailabilityHandler(db *gorm.DB, directory scheduling.UserDirectory) *AvailabilityHandler {
	return &AvailabilityHandler{store: NewStore(db), directory: directory}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/doctors/{doctorId}/availability", utils.AuthMiddleware(h.CreateWindow)).Methods("POST")
	router.HandleFunc("/doctors/{doctorId}/availability", h.GetWindows).Methods("GET")
	router.HandleFunc("/doctors/{doctorId}/availability/{id}", utils.AuthMiddleware(h.UpdateWindow)).Methods("PUT")
	router.HandleFunc("/doctors/{doctorId}/availability/{id}", utils.AuthMiddleware(h.DeleteWindow)).Methods("DELETE")

	router.HandleFunc("/doctors/{doctorId}/unavailability", utils.AuthMiddleware(h.CreateUnavailability)).Methods("POST")
	router.HandleFunc("/doctors/{doctorId}/unavailability", h.GetUnavailability).Methods("GET")
	router.HandleFunc("/doctors/{doctorId}/unavailability/{id}", utils.AuthMiddleware(h.DeleteUnavailability)).Methods("DELETE")
}

// canManage allows the doctor themself or an admin.
func (h *AvailabilityHandler) canManage(r *http.Request, doctorID uint) bool {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		return false
	}
	if actorID == doctorID {
		return true
	}
	actor, err := h.directory.Get(actorID)
	if err != nil {
		return false
	}
	return actor.Role == models.RoleAdmin
}

type windowRequest struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Enabled   *bool  `json:"enabled"`
}

func (h *AvailabilityHandler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, doctorID) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	window, err := h.store.SetWindow(doctorID, req.Weekday, req.StartTime, req.EndTime, enabled)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(window)
}

func (h *AvailabilityHandler) GetWindows(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	weekday := -1
	if v := r.URL.Query().Get("weekday"); v != "" {
		weekday, err = strconv.Atoi(v)
		if err != nil || weekday < 0 || weekday > 6 {
			http.Error(w, "Invalid weekday", http.StatusBadRequest)
			return
		}
	}
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"

	windows, err := h.store.ListWindows(doctorID, weekday, includeDisabled)
	if err != nil {
		http.Error(w, "Error retrieving availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctor_id": doctorID,
		"windows":   windows,
	})
}

func (h *AvailabilityHandler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}
	windowID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid window ID", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, doctorID) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	window, err := h.store.UpdateWindow(doctorID, windowID, req.StartTime, req.EndTime, enabled)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(window)
}

func (h *AvailabilityHandler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}
	windowID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid window ID", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, doctorID) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	if err := h.store.DeleteWindow(doctorID, windowID); err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Availability window deleted successfully",
	})
}

type unavailabilityRequest struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Reason   string    `json:"reason"`
}

func (h *AvailabilityHandler) CreateUnavailability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, doctorID) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	var req unavailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	blocked, err := h.store.AddUnavailability(doctorID, req.StartsAt, req.EndsAt, req.Reason)
	if err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(blocked)
}

func (h *AvailabilityHandler) GetUnavailability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		http.Error(w, "Invalid date range. Use from=YYYY-MM-DD&to=YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ranges, err := h.store.ListUnavailability(doctorID, from, to)
	if err != nil {
		http.Error(w, "Error retrieving unavailability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctor_id": doctorID,
		"ranges":    ranges,
	})
}

func (h *AvailabilityHandler) DeleteUnavailability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := pathID(r, "doctorId")
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}
	rangeID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid range ID", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, doctorID) {
		scheduling.WriteError(w, scheduling.ErrPermissionDenied)
		return
	}

	if err := h.store.DeleteUnavailability(doctorID, rangeID); err != nil {
		scheduling.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Unavailability range deleted successfully",
	})
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(id), err
}

// queryRange defaults to the next 30 days when from/to are omitted.
func queryRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// inclusive end date
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}
